package ring

import (
	"net"
	"testing"

	"magma.io/errors"
	"magma.io/key"
)

func node(name string, start, stop byte) *Node {
	var lo, hi key.Key
	lo[key.Size-1] = start
	hi[key.Size-1] = stop
	return &Node{Name: name, IP: net.ParseIP("127.0.0.1"), Port: 12000, Start: lo, Stop: hi}
}

func TestEmptyRingLookup(t *testing.T) {
	r := New()
	if _, ok := r.Lookup(key.Hash("/")); ok {
		t.Errorf("Lookup on empty ring returned ok=true")
	}
}

func TestInsertSingleCoversWholeSpace(t *testing.T) {
	r := New()
	n := node("n0", 0, 255)
	n.Stop = key.Max
	if err := r.Insert(n); err != nil {
		t.Fatal(err)
	}
	if r.Participants() != 1 {
		t.Errorf("Participants() = %d, want 1", r.Participants())
	}
	got, ok := r.Lookup(key.Hash("/anything"))
	if !ok || got != n {
		t.Errorf("Lookup = %v, %v, want n0, true", got, ok)
	}
}

func TestInsertSplitsOwner(t *testing.T) {
	r := New()
	n0 := node("n0", 0, 255)
	r.Insert(n0)

	var mid key.Key
	mid[key.Size-1] = 128
	n1 := &Node{Name: "n1", IP: net.ParseIP("127.0.0.2"), Port: 12001, Start: mid, Stop: n0.Stop}
	if err := r.Insert(n1); err != nil {
		t.Fatal(err)
	}
	if r.Participants() != 2 {
		t.Errorf("Participants() = %d, want 2", r.Participants())
	}

	var below, above key.Key
	below[key.Size-1] = 100
	above[key.Size-1] = 200
	if got, _ := r.Lookup(below); got != n0 {
		t.Errorf("Lookup(below split) = %v, want n0", got.Name)
	}
	if got, _ := r.Lookup(above); got != n1 {
		t.Errorf("Lookup(above split) = %v, want n1", got.Name)
	}
}

func TestInsertRejectsZeroPort(t *testing.T) {
	n := node("bad", 0, 255)
	n.Port = 0
	r := New()
	if err := r.Insert(n); !errors.Match(errors.Invalid, err) {
		t.Errorf("Insert(zero port): got %v, want Invalid", err)
	}
}

func TestRemoveMergesIntoSuccessor(t *testing.T) {
	r := New()
	n0 := node("n0", 0, 255)
	r.Insert(n0)
	var mid key.Key
	mid[key.Size-1] = 128
	n1 := &Node{Name: "n1", IP: net.ParseIP("127.0.0.2"), Port: 12001, Start: mid, Stop: n0.Stop}
	r.Insert(n1)

	if err := r.Remove(n0); err != nil {
		t.Fatal(err)
	}
	if r.Participants() != 1 {
		t.Errorf("Participants() = %d, want 1", r.Participants())
	}
	var below key.Key
	below[key.Size-1] = 10
	got, ok := r.Lookup(below)
	if !ok || got != n1 {
		t.Errorf("after Remove, Lookup(below) = %v, %v, want n1, true", got, ok)
	}
}

func TestHandleSwapIsolatesReaders(t *testing.T) {
	h := NewHandle(New())
	old := h.Load()
	r2 := New()
	r2.Insert(node("n0", 0, 255))
	h.Swap(r2)
	if h.Load() != r2 {
		t.Errorf("Load() after Swap did not return the new ring")
	}
	if old.Participants() != 0 {
		t.Errorf("old ring snapshot mutated after Swap")
	}
}

func TestAppendLinksDisjointRangesWithoutSplitting(t *testing.T) {
	r := New()
	n0 := node("n0", 0, 127)
	n1 := node("n1", 128, 255)
	if err := r.Append(n0); err != nil {
		t.Fatal(err)
	}
	if err := r.Append(n1); err != nil {
		t.Fatal(err)
	}
	if r.Participants() != 2 {
		t.Fatalf("Participants() = %d, want 2", r.Participants())
	}

	var below, above key.Key
	below[key.Size-1] = 100
	above[key.Size-1] = 200
	if got, ok := r.Lookup(below); !ok || got != n0 {
		t.Errorf("Lookup(below split) = %v, %v, want n0, true", got, ok)
	}
	if got, ok := r.Lookup(above); !ok || got != n1 {
		t.Errorf("Lookup(above split) = %v, %v, want n1, true", got, ok)
	}
	nodes := r.Nodes()
	if len(nodes) != 2 || nodes[0] != n0 || nodes[1] != n1 {
		t.Errorf("Nodes() = %v, want [n0 n1] in Append order", nodes)
	}
}

func TestBuildAssemblesTopologyTransferOrder(t *testing.T) {
	n0 := node("n0", 0, 127)
	n1 := node("n1", 128, 255)
	r, err := Build([]*Node{n0, n1})
	if err != nil {
		t.Fatal(err)
	}
	if r.Participants() != 2 {
		t.Fatalf("Participants() = %d, want 2", r.Participants())
	}
	var below, above key.Key
	below[key.Size-1] = 10
	above[key.Size-1] = 250
	if got, ok := r.Lookup(below); !ok || got != n0 {
		t.Errorf("Lookup(below) = %v, %v, want n0, true", got, ok)
	}
	if got, ok := r.Lookup(above); !ok || got != n1 {
		t.Errorf("Lookup(above) = %v, %v, want n1, true", got, ok)
	}
}

func TestNodesWalksCycleInOrder(t *testing.T) {
	r := New()
	n0 := node("n0", 0, 255)
	r.Insert(n0)
	var mid key.Key
	mid[key.Size-1] = 128
	n1 := &Node{Name: "n1", IP: net.ParseIP("127.0.0.2"), Port: 12001, Start: mid, Stop: n0.Stop}
	r.Insert(n1)

	nodes := r.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("Nodes() len = %d, want 2", len(nodes))
	}
	if nodes[0].Name != "n0" || nodes[1].Name != "n1" {
		t.Errorf("Nodes() = %v, want [n0 n1]", nodes)
	}
}
