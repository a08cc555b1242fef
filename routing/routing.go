// Package routing implements MAGMA's routing & connection layer (§4.4):
// resolving a path to its owning node via the ring, and a process-wide
// cache of reusable transport endpoints keyed by peer address. The
// connection cache's dial-or-reuse discipline (a racing concurrent dial
// is discarded in favour of the cached winner, not waited on), including
// ping-freshness and dead-endpoint eviction, is
// grounded directly on upspin.io/bind's reachableService (bind/bind.go);
// topology-refresh coalescing, which the teacher hand-rolls with its own
// inflightDial, is instead done with the real
// golang.org/x/sync/singleflight package here.
package routing // import "magma.io/routing"

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"magma.io/errors"
	"magma.io/key"
	"magma.io/log"
	"magma.io/ring"
	"magma.io/wire"
)

// pingFreshnessDuration bounds how often Connect re-verifies a cached
// endpoint is alive, mirroring bind.pingFreshnessDuration.
var pingFreshnessDuration = 5 * time.Minute

// connKey identifies one cache entry: a peer's dialable address.
// Mirrors bind.dialKey, simplified to the single address dimension
// routing needs (MAGMA has one transport kind per peer, not a matrix of
// context x endpoint).
type connKey struct {
	addr string
}

// conn wraps one transport endpoint to a peer, serializing request/reply
// pairs on it (§8 Invariant 5: at most one in-flight exchange per cache
// entry) and tracking liveness the way bind.dialedService does.
type conn struct {
	addr string
	pc   net.Conn

	mu       sync.Mutex
	lastPing time.Time
	dead     bool

	nextTxn uint16
}

// Exchange performs one request/response round trip over the
// connection: encode, send, await the reply matching the request's
// transaction id, decode (§4.5 step 4, §5 "Ordering guarantees").
func (c *conn) Exchange(ctx context.Context, h wire.RequestHeader, payload []byte) (wire.ResponseHeader, []byte, error) {
	const op = "routing.conn.Exchange"
	c.mu.Lock()
	defer c.mu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		c.pc.SetDeadline(dl)
	} else {
		c.pc.SetDeadline(time.Time{})
	}

	c.nextTxn++
	h.TransactionID = c.nextTxn

	frame, err := wire.EncodeRequest(h, payload)
	if err != nil {
		return wire.ResponseHeader{}, nil, errors.E(op, err)
	}
	if _, err := c.pc.Write(frame); err != nil {
		return wire.ResponseHeader{}, nil, errors.E(op, errors.IO, err)
	}

	buf := make([]byte, 65536)
	n, err := c.pc.Read(buf)
	if err != nil {
		return wire.ResponseHeader{}, nil, errors.E(op, errors.IO, err)
	}
	respH, respPayload, err := wire.DecodeResponse(buf[:n])
	if err != nil {
		return wire.ResponseHeader{}, nil, errors.E(op, err)
	}
	if respH.TransactionID != h.TransactionID {
		return wire.ResponseHeader{}, nil, errors.E(op, errors.IO, errors.Str("transaction id mismatch"))
	}
	if respH.Op != h.Op {
		return wire.ResponseHeader{}, nil, errors.E(op, errors.IO, errors.Str("opcode mismatch"))
	}
	return respH, respPayload, nil
}

// ping issues a lightweight HEARTBEAT exchange, but only if the
// connection is not already known dead and its last successful ping is
// older than pingFreshnessDuration (mirrors bind.dialedService.ping).
func (c *conn) ping() bool {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return false
	}
	if c.lastPing.Add(pingFreshnessDuration).After(time.Now()) {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	h := wire.RequestHeader{Op: wire.HEARTBEAT, TTL: 1}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := c.Exchange(ctx, h, nil); err != nil {
		c.mu.Lock()
		c.dead = true
		c.mu.Unlock()
		return false
	}
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
	return true
}

// Invalidate marks the connection dead and closes its transport. The
// Router evicts it from the cache on network error or on a
// remote-reported err_no other than ENOENT (§4.4, §7 kind 4); ENOENT is
// a legitimate outcome and must not invalidate the connection.
func (c *conn) Invalidate() {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
	c.pc.Close()
}

// Router resolves paths to owning nodes and maintains the connection
// cache and installed ring.
type Router struct {
	ring *ring.Handle

	mu    sync.Mutex
	conns map[connKey]*conn

	dialer func(addr string) (net.Conn, error)

	refreshGroup singleflight.Group
}

// New returns a Router with an empty installed ring. dial, if nil,
// defaults to a UDP dial of the peer's address (§6 "Transport. UDP by
// default").
func New(dial func(addr string) (net.Conn, error)) *Router {
	if dial == nil {
		dial = func(addr string) (net.Conn, error) {
			return net.Dial("udp", addr)
		}
	}
	return &Router{
		ring:   ring.NewHandle(ring.New()),
		conns:  make(map[connKey]*conn),
		dialer: dial,
	}
}

// Ring returns the currently installed ring.
func (r *Router) Ring() *ring.Handle {
	return r.ring
}

// RoutePath resolves path to its owning node: lookup(hash(path)) against
// the currently installed ring (§4.4). It returns a protocol error only
// when the ring has no owner for the computed key (including when the
// ring is empty).
func (r *Router) RoutePath(path string) (*ring.Node, error) {
	const op = "routing.RoutePath"
	n, ok := r.ring.Load().Lookup(key.Hash(path))
	if !ok {
		return nil, errors.E(op, errors.IO, errors.Str("no owner: empty or unseeded ring"))
	}
	return n, nil
}

// Connect acquires a live connection to n, reusing a cached one if it
// pings healthy, or dialing a fresh one otherwise (grounded on
// bind.reachableService's cache-or-dial loop, with dead entries evicted
// and retried rather than the single-flight-per-dial-key machinery the
// teacher hand-rolls for its richer dialCache matrix — MAGMA's cache is
// keyed by address alone, so a plain mutex-guarded map suffices).
func (r *Router) Connect(n *ring.Node) (*conn, error) {
	const op = "routing.Connect"
	addr := n.Addr()
	ck := connKey{addr: addr}

	for attempt := 0; attempt < 10; attempt++ {
		r.mu.Lock()
		c, cached := r.conns[ck]
		r.mu.Unlock()

		if cached {
			if c.ping() {
				return c, nil
			}
			r.mu.Lock()
			delete(r.conns, ck)
			r.mu.Unlock()
			continue
		}

		pc, err := r.dialer(addr)
		if err != nil {
			return nil, errors.E(op, errors.IO, err)
		}
		c = &conn{addr: addr, pc: pc, lastPing: time.Now()}

		r.mu.Lock()
		existing, raced := r.conns[ck]
		if raced {
			r.mu.Unlock()
			pc.Close()
			c = existing
		} else {
			r.conns[ck] = c
			r.mu.Unlock()
		}
		return c, nil
	}
	return nil, errors.E(op, errors.IO, fmt.Errorf("too many attempts connecting to %s", addr))
}

// Invalidate evicts and closes the cached connection to n, if any.
func (r *Router) Invalidate(n *ring.Node) {
	ck := connKey{addr: n.Addr()}
	r.mu.Lock()
	c, ok := r.conns[ck]
	delete(r.conns, ck)
	r.mu.Unlock()
	if ok {
		c.Invalidate()
	}
}

// Refresh rebuilds the installed ring from bootstrap by looping
// TRANSMIT_TOPOLOGY. Guarded by a singleflight group: a concurrent
// Refresh call for the same bootstrap address coalesces onto the
// in-flight call's result instead of performing its own network loop
// (§4.4 "Topology refresh", §5 "Refresh mutex").
func (r *Router) Refresh(ctx context.Context, bootstrap string) error {
	const op = "routing.Refresh"
	_, err, _ := r.refreshGroup.Do(bootstrap, func() (interface{}, error) {
		newRing, err := r.fetchTopology(ctx, bootstrap)
		if err != nil {
			log.Chan(log.ChannelRouting, "routing: refresh from %s failed: %v", bootstrap, err)
			return nil, err
		}
		r.ring.Swap(newRing)
		log.Chan(log.ChannelRouting, "routing: installed new ring with %d node(s)", newRing.Participants())
		return nil, nil
	})
	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

// fetchTopology performs the TRANSMIT_TOPOLOGY paging loop against
// bootstrap, assembling a new ring without touching the installed one.
// On any per-page failure (zero port, abnormal status, negative res)
// the partial ring is discarded and the error is returned, leaving the
// installed ring unchanged by the caller.
func (r *Router) fetchTopology(ctx context.Context, bootstrap string) (*ring.Ring, error) {
	const op = "routing.fetchTopology"
	pc, err := r.dialer(bootstrap)
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	defer pc.Close()

	newRing := ring.New()
	var offset uint32
	var txn uint16
	for {
		if dl, ok := ctx.Deadline(); ok {
			pc.SetDeadline(dl)
		}
		txn++
		h := wire.RequestHeader{Op: wire.TRANSMIT_TOPOLOGY, TransactionID: txn, TTL: 1}
		payload := make([]byte, 4)
		payload[0] = byte(offset >> 24)
		payload[1] = byte(offset >> 16)
		payload[2] = byte(offset >> 8)
		payload[3] = byte(offset)
		frame, err := wire.EncodeRequest(h, payload)
		if err != nil {
			return nil, errors.E(op, err)
		}
		if _, err := pc.Write(frame); err != nil {
			return nil, errors.E(op, errors.IO, err)
		}

		buf := make([]byte, 65536)
		n, err := pc.Read(buf)
		if err != nil {
			return nil, errors.E(op, errors.IO, err)
		}
		respH, respPayload, err := wire.DecodeResponse(buf[:n])
		if err != nil {
			return nil, errors.E(op, err)
		}
		if respH.Status != wire.Normal || respH.Res < 0 {
			return nil, errors.E(op, errors.IO, errors.Str("abnormal status assembling topology"))
		}
		page, err := wire.DecodeTopologyPage(respPayload)
		if err != nil {
			return nil, errors.E(op, err)
		}
		for _, node := range page.Nodes {
			if err := newRing.Append(node); err != nil {
				return nil, errors.E(op, err)
			}
		}
		if !page.MoreNodesWaiting {
			break
		}
		offset = page.Offset
	}
	return newRing, nil
}
