package storage

import (
	"errors"
	"testing"
)

func TestPrefixDB_Isolation(t *testing.T) {
	inner := NewMemory()
	ledger := NewPrefixDB(inner, []byte("ledger/"))
	chain := NewPrefixDB(inner, []byte("chain/"))

	if err := ledger.Put([]byte("key"), []byte("fromLedger")); err != nil {
		t.Fatal(err)
	}
	if err := chain.Put([]byte("key"), []byte("fromChain")); err != nil {
		t.Fatal(err)
	}

	got, err := ledger.Get([]byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fromLedger" {
		t.Fatalf("ledger.Get = %q, want %q", got, "fromLedger")
	}

	got, err = chain.Get([]byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fromChain" {
		t.Fatalf("chain.Get = %q, want %q", got, "fromChain")
	}

	if _, err := ledger.Get([]byte("chain/key")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ledger should not see chain's raw key, err = %v", err)
	}
}

func TestPrefixDB_ForEachStripsPrefix(t *testing.T) {
	db := NewPrefixDB(NewMemory(), []byte("ledger/"))

	db.Put([]byte("u/2"), []byte("v2"))
	db.Put([]byte("u/1"), []byte("v1"))
	db.Put([]byte("a/1"), []byte("v3"))

	var keys []string
	err := db.ForEach([]byte("u/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(keys) != 2 || keys[0] != "u/1" || keys[1] != "u/2" {
		t.Fatalf("ForEach keys = %v, want [u/1 u/2]", keys)
	}
}

func TestPrefixDB_ForEachStopEarly(t *testing.T) {
	db := NewPrefixDB(NewMemory(), []byte("p/"))
	for _, k := range []string{"k0", "k1", "k2", "k3", "k4"} {
		db.Put([]byte(k), []byte("v"))
	}

	count := 0
	stopErr := errors.New("stop")
	err := db.ForEach(nil, func(key, value []byte) error {
		count++
		if count >= 3 {
			return stopErr
		}
		return nil
	})
	if err != stopErr {
		t.Fatalf("ForEach err = %v, want stopErr", err)
	}
	if count != 3 {
		t.Fatalf("ForEach called %d times, want 3", count)
	}
}

func TestPrefixDB_Batch(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("ns/"))

	b := db.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if ok, _ := inner.Has([]byte("ns/a")); !ok {
		t.Fatal("inner DB missing prefixed key ns/a")
	}
	if ok, _ := inner.Has([]byte("a")); ok {
		t.Fatal("batch wrote an unprefixed key")
	}
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	inner := NewMemory()
	dbA := NewPrefixDB(inner, []byte("a/"))
	dbB := NewPrefixDB(inner, []byte("b/"))

	dbA.Put([]byte("k1"), []byte("v1"))
	dbA.Put([]byte("k2"), []byte("v2"))
	dbB.Put([]byte("k1"), []byte("other"))

	if err := dbA.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	for _, k := range []string{"k1", "k2"} {
		if ok, _ := dbA.Has([]byte(k)); ok {
			t.Fatalf("A still has %q after DeleteAll", k)
		}
	}
	got, err := dbB.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("B.Get after A.DeleteAll: %v", err)
	}
	if string(got) != "other" {
		t.Fatalf("B.Get = %q, want %q", got, "other")
	}
}
