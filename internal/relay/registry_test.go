package relay

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestRegistry_AddNormalizes(t *testing.T) {
	r := NewRegistry()

	if !r.Add("a", []string{" btcusdt", "EthUsdt", ""}) {
		t.Fatal("Add should report new symbols")
	}

	want := []string{"BTCUSDT", "ETHUSDT"}
	if got := r.Symbols(); !reflect.DeepEqual(got, want) {
		t.Errorf("Symbols() = %v, want %v", got, want)
	}
	if !r.Has("btcusdt") {
		t.Error("Has should be case-insensitive")
	}
}

func TestRegistry_AddIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Add("a", []string{"BTCUSDT"})
	before := r.Snapshot()

	if r.Add("a", []string{"btcusdt"}) {
		t.Error("second Add of the same pair should not change the key set")
	}
	if after := r.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("snapshot changed: before %v, after %v", before, after)
	}
	if r.Pairs() != 1 {
		t.Errorf("Pairs() = %d, want 1", r.Pairs())
	}
}

func TestRegistry_RemovePrunes(t *testing.T) {
	r := NewRegistry()
	r.Add("a", []string{"BTCUSDT", "ETHUSDT"})
	r.Add("b", []string{"BTCUSDT"})

	if r.Remove("a", []string{"BTCUSDT"}) {
		t.Error("BTCUSDT still has b, key set should not change")
	}
	if !r.Remove("a", []string{"ETHUSDT"}) {
		t.Error("ETHUSDT lost its last subscriber, key set should change")
	}
	if r.Has("ETHUSDT") {
		t.Error("ETHUSDT should be pruned")
	}
	if r.Remove("a", []string{"DOGEUSDT"}) {
		t.Error("removing an unknown symbol should be a no-op")
	}
}

func TestRegistry_RemoveConnSweeps(t *testing.T) {
	r := NewRegistry()
	r.Add("a", []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})
	r.Add("b", []string{"BTCUSDT"})

	if !r.RemoveConn("a") {
		t.Error("RemoveConn should report pruned symbols")
	}

	want := map[string][]string{"BTCUSDT": {"b"}}
	if got := r.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
	if r.RemoveConn("a") {
		t.Error("second RemoveConn should be a no-op")
	}
}

// Random operation sequences must keep every key backed by a non-empty set
// and leave no trace of a disconnected connection.
func TestRegistry_RandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"btcusdt", "ETHUSDT", "solusdt", "XRPUSDT", "dogeusdt"}
	conns := []string{"c1", "c2", "c3", "c4"}

	pick := func() []string {
		n := rng.Intn(len(symbols)) + 1
		out := make([]string, n)
		for i := range out {
			out[i] = symbols[rng.Intn(len(symbols))]
		}
		return out
	}

	r := NewRegistry()
	for i := 0; i < 2000; i++ {
		conn := conns[rng.Intn(len(conns))]
		switch rng.Intn(3) {
		case 0:
			r.Add(conn, pick())
		case 1:
			r.Remove(conn, pick())
		case 2:
			r.RemoveConn(conn)
			for sym, ids := range r.Snapshot() {
				for _, id := range ids {
					if id == conn {
						t.Fatalf("step %d: %s still subscribed to %s after disconnect", i, conn, sym)
					}
				}
			}
		}

		for sym, set := range r.subs {
			if len(set) == 0 {
				t.Fatalf("step %d: symbol %s has empty set", i, sym)
			}
		}
	}
}

func TestRegistry_PairsAndLen(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		r.Add(fmt.Sprintf("c%d", i), []string{"BTCUSDT", "ETHUSDT"})
	}

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if r.Pairs() != 6 {
		t.Errorf("Pairs() = %d, want 6", r.Pairs())
	}
	if got := r.Subscribers("btcusdt"); !reflect.DeepEqual(got, []string{"c0", "c1", "c2"}) {
		t.Errorf("Subscribers() = %v", got)
	}
}
