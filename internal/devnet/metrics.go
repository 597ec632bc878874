package devnet

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes devnet contract activity to Prometheus.
type Metrics struct {
	registry  *prometheus.Registry
	calls     *prometheus.CounterVec
	reverts   *prometheus.CounterVec
	transfers prometheus.Counter
	utxos     prometheus.Gauge
	blocks    prometheus.Gauge
}

// NewMetrics creates the devnet metrics on their own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "utxo_devnet_contract_calls_total",
			Help: "Contract calls executed, by method.",
		}, []string{"method"}),
		reverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "utxo_devnet_contract_reverts_total",
			Help: "Contract calls that reverted, by method and error.",
		}, []string{"method", "error"}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "utxo_devnet_transfers_total",
			Help: "Committed transfers.",
		}),
		utxos: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "utxo_devnet_utxos",
			Help: "Number of UTXOs created so far.",
		}),
		blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "utxo_devnet_block_number",
			Help: "Current devnet block number.",
		}),
	}
	m.registry.MustRegister(m.calls, m.reverts, m.transfers, m.utxos, m.blocks)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeCall(method string, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method).Inc()
	if err != nil {
		name := "internal"
		if re, ok := err.(*RevertError); ok {
			name = re.Name
			if name == "" {
				name = "unknown"
			}
		}
		m.reverts.WithLabelValues(method, name).Inc()
	}
}

func (m *Metrics) observeTransfer(l *Ledger) {
	if m == nil {
		return
	}
	m.transfers.Inc()
	m.observeLength(l)
}

func (m *Metrics) observeLength(l *Ledger) {
	if m == nil {
		return
	}
	if n, err := l.Length(); err == nil {
		f, _ := new(big.Float).SetInt(n).Float64()
		m.utxos.Set(f)
	}
}

func (m *Metrics) observeBlock(n uint64) {
	if m == nil {
		return
	}
	m.blocks.Set(float64(n))
}
