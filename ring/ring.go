// Package ring implements MAGMA's in-memory ring topology (the "lava"):
// a doubly-linked cycle of node descriptors ("volcanoes"), each owning a
// contiguous key range, plus the atomic install/swap discipline a router
// uses to read a consistent snapshot while a topology refresh is under
// way. The map/mutex discipline follows upspin.io/bind's dial registries;
// the splice arithmetic is MAGMA's own, grounded in mount.magma.c's
// notion of inserting a node at its hashed position and splitting the
// range it lands in.
package ring // import "magma.io/ring"

import (
	"net"
	"strconv"
	"sync/atomic"

	"magma.io/errors"
	"magma.io/key"
)

// Node is a single participant in the ring (a "volcano"): its network
// address and the key range [Start, Stop] it owns.
type Node struct {
	Name string
	FQDN string
	IP   net.IP
	Port uint16

	Start key.Key
	Stop  key.Key

	next *Node
	prev *Node
}

// Addr returns the node's dialable address.
func (n *Node) Addr() string {
	return net.JoinHostPort(n.IP.String(), strconv.Itoa(int(n.Port)))
}

// Next returns n's successor in the cycle.
func (n *Node) Next() *Node { return n.next }

// Prev returns n's predecessor in the cycle.
func (n *Node) Prev() *Node { return n.prev }

// Ring is the full topology: a cycle of Nodes whose ranges tile the key
// space exactly once, no gaps, no overlaps (spec §3 invariants).
type Ring struct {
	first        *Node
	last         *Node
	participants int
}

// New returns an empty ring.
func New() *Ring {
	return &Ring{}
}

// Participants returns the number of nodes currently in the ring.
func (r *Ring) Participants() int {
	return r.participants
}

// Nodes returns the ring's nodes in cycle order, for topology transfer.
func (r *Ring) Nodes() []*Node {
	out := make([]*Node, 0, r.participants)
	if r.first == nil {
		return out
	}
	for n := r.first; ; n = n.next {
		out = append(out, n)
		if n == r.last {
			break
		}
	}
	return out
}

// Lookup returns the unique node whose range contains k. A key exactly
// equal to a boundary belongs to the node whose Start it matches (§4.2
// tie-break). Lookup is O(participants); acceptable for the small rings
// (tens of nodes) this spec targets.
func (r *Ring) Lookup(k key.Key) (*Node, bool) {
	if r.first == nil {
		return nil, false
	}
	for n := r.first; ; n = n.next {
		if key.InRange(k, n.Start, n.Stop) {
			return n, true
		}
		if n == r.last {
			break
		}
	}
	return nil, false
}

// Insert splices n into the cycle at its computed predecessor/successor,
// splitting whichever existing node's range currently contains n.Start
// to make room for it. n's Stop must already be set by the caller (the
// node announcing its own range at JOIN); Insert only validates and
// links it.
func (r *Ring) Insert(n *Node) error {
	const op = "ring.Insert"
	if n.Port == 0 {
		return errors.E(op, errors.Invalid, errors.Str("zero port"))
	}
	if r.first == nil {
		n.next, n.prev = n, n
		r.first, r.last = n, n
		r.participants = 1
		return nil
	}
	owner, ok := r.Lookup(n.Start)
	if !ok {
		return errors.E(op, errors.Invalid, errors.Str("no owner for insertion point"))
	}
	if owner == n {
		return errors.E(op, errors.Exist, errors.Str("node already present"))
	}
	// Split owner's range: owner keeps [owner.Start, n.Start-1], n takes
	// [n.Start, n.Stop]. The caller (JOIN handler) is responsible for
	// telling the displaced owner its new Stop out of band; here we only
	// maintain the tiling invariant in this ring's view.
	owner.Stop = prevKey(n.Start)
	n.prev = owner
	n.next = owner.next
	owner.next.prev = n
	owner.next = n
	if owner == r.last {
		r.last = n
	}
	r.participants++
	return nil
}

// Append links n into the cycle as the new r.last, taking n.Start/n.Stop
// exactly as given rather than splitting an existing owner's range. Unlike
// Insert, Append does not require n.Start to fall inside an existing
// node's range — it is for reassembling a ring from a topology transfer
// (§4.3 TRANSMIT_TOPOLOGY), whose descriptors already carry final,
// disjoint ranges computed by the sender. Insert remains the live-JOIN
// operation that splits an owner to make room for a newcomer.
func (r *Ring) Append(n *Node) error {
	const op = "ring.Append"
	if n.Port == 0 {
		return errors.E(op, errors.Invalid, errors.Str("zero port"))
	}
	if r.first == nil {
		n.next, n.prev = n, n
		r.first, r.last = n, n
		r.participants = 1
		return nil
	}
	n.prev = r.last
	n.next = r.first
	r.last.next = n
	r.first.prev = n
	r.last = n
	r.participants++
	return nil
}

// Build assembles a fresh Ring from nodes, an ordered slice of cycle
// descriptors as received from a topology transfer, linking each with
// Append in the given order. It is the counterpart to Nodes, which
// produces the same ordered slice for transfer on the sending side.
func Build(nodes []*Node) (*Ring, error) {
	r := New()
	for _, n := range nodes {
		if err := r.Append(n); err != nil {
			return nil, errors.E("ring.Build", err)
		}
	}
	return r, nil
}

// Remove unlinks n from the cycle, merging its range into its successor
// (§4.2 remove).
func (r *Ring) Remove(n *Node) error {
	const op = "ring.Remove"
	if r.first == nil {
		return errors.E(op, errors.NotExist, errors.Str("empty ring"))
	}
	if r.participants == 1 {
		if r.first != n {
			return errors.E(op, errors.NotExist, errors.Str("node not in ring"))
		}
		r.first, r.last = nil, nil
		r.participants = 0
		return nil
	}
	n.next.Start = n.Start
	n.prev.next = n.next
	n.next.prev = n.prev
	if n == r.first {
		r.first = n.next
	}
	if n == r.last {
		r.last = n.prev
	}
	n.next, n.prev = nil, nil
	r.participants--
	return nil
}

func prevKey(k key.Key) key.Key {
	var out key.Key = k
	for i := len(out) - 1; i >= 0; i-- {
		out[i]--
		if out[i] != 0xff {
			break
		}
	}
	return out
}

// Handle wraps an atomically-swapped *Ring pointer, giving readers a
// stable snapshot across a concurrent topology refresh without holding
// any lock (spec §5 "Installed ring"): Load once, keep using the
// returned *Ring/*Node graph; Go's garbage collector retires the old
// cycle once the last reader drops its reference.
type Handle struct {
	p atomic.Value
}

// NewHandle returns a Handle installed with r (which may be nil).
func NewHandle(r *Ring) *Handle {
	h := &Handle{}
	if r == nil {
		r = New()
	}
	h.p.Store(r)
	return h
}

// Load returns the currently installed ring.
func (h *Handle) Load() *Ring {
	return h.p.Load().(*Ring)
}

// Swap installs r as the new active ring (replace_atomically, §4.2).
func (h *Handle) Swap(r *Ring) {
	h.p.Store(r)
}
