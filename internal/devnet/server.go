package devnet

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
)

// Server serves a devnet Backend over Ethereum JSON-RPC on HTTP.
type Server struct {
	addr        string
	rpc         *rpc.Server
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
}

// NewServer creates a JSON-RPC server for backend listening on addr.
// metrics may be nil, in which case /metrics is not served.
func NewServer(addr string, backend *Backend, metrics *Metrics, allowedIPs []string) (*Server, error) {
	s := &Server{
		addr:        addr,
		rpc:         rpc.NewServer(),
		logger:      klog.WithComponent("devnet-rpc"),
		allowedNets: parseAllowedIPs(allowedIPs),
	}
	if err := s.rpc.RegisterName("eth", NewEthAPI(backend)); err != nil {
		return nil, fmt.Errorf("register eth api: %w", err)
	}
	if err := s.rpc.RegisterName("net", &NetAPI{b: backend}); err != nil {
		return nil, fmt.Errorf("register net api: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", s.filter(s.rpc))
	if metrics != nil {
		mux.Handle("/metrics", s.filter(metrics.Handler()))
	}

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Devnet RPC listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// URL returns the HTTP endpoint of the server.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.rpc.Stop()
	return err
}

// filter rejects requests from addresses outside the allow list.
func (s *Server) filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedNets) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ip := net.ParseIP(host)
			if ip == nil || !s.isIPAllowed(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
