package routing

import (
	"context"
	"net"
	"testing"
	"time"

	"magma.io/key"
	"magma.io/ring"
	"magma.io/wire"
)

// fakeServer answers requests on the server side of a net.Pipe whose
// client side every test dial returns.
type fakeServer struct {
	side net.Conn
}

// serve runs a minimal HEARTBEAT/GETATTR/TRANSMIT_TOPOLOGY responder on
// one pipe endpoint, enough to drive Router.Connect/Exchange/Refresh in
// tests without real sockets.
func (s *fakeServer) serve(t *testing.T, nodes []*ring.Node) {
	go func() {
		buf := make([]byte, 65536)
		for {
			n, err := s.side.Read(buf)
			if err != nil {
				return
			}
			h, payload, err := wire.DecodeRequest(buf[:n])
			if err != nil {
				return
			}
			switch h.Op {
			case wire.HEARTBEAT:
				resp := wire.ResponseHeader{Op: h.Op, TransactionID: h.TransactionID, Status: wire.Normal, Res: 0}
				frame, _ := wire.EncodeResponse(resp, nil)
				s.side.Write(frame)
			case wire.GETATTR:
				_ = payload
				resp := wire.ResponseHeader{Op: h.Op, TransactionID: h.TransactionID, Status: wire.Normal, Res: 0}
				frame, _ := wire.EncodeResponse(resp, nil)
				s.side.Write(frame)
			case wire.TRANSMIT_TOPOLOGY:
				page := wire.TopologyPage{Nodes: nodes, MoreNodesWaiting: false}
				body, _ := wire.EncodeTopologyPage(page)
				resp := wire.ResponseHeader{Op: h.Op, TransactionID: h.TransactionID, Status: wire.Normal, Res: 0}
				frame, _ := wire.EncodeResponse(resp, body)
				s.side.Write(frame)
			default:
				resp := wire.ResponseHeader{Op: h.Op, TransactionID: h.TransactionID, Status: wire.Normal, Res: -1, ErrNo: 2}
				frame, _ := wire.EncodeResponse(resp, nil)
				s.side.Write(frame)
			}
		}
	}()
}

func newTestRouter(t *testing.T, nodes []*ring.Node) (*Router, *fakeServer) {
	client, server := net.Pipe()
	fs := &fakeServer{side: server}
	fs.serve(t, nodes)
	r := New(func(addr string) (net.Conn, error) {
		return client, nil
	})
	return r, fs
}

func TestConnectReusesCachedConnection(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	n := &ring.Node{Name: "n0", IP: net.ParseIP("127.0.0.1"), Port: 12000, Start: key.Zero, Stop: key.Max}

	c1, err := r.Connect(n)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := r.Connect(n)
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Errorf("Connect did not reuse cached connection")
	}
}

func TestExchangeRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	n := &ring.Node{Name: "n0", IP: net.ParseIP("127.0.0.1"), Port: 12000, Start: key.Zero, Stop: key.Max}
	c, err := r.Connect(n)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, _, err := c.Exchange(ctx, wire.RequestHeader{Op: wire.GETATTR, TTL: 2}, []byte("/a"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Res != 0 {
		t.Errorf("Exchange GETATTR = %+v, want Res 0", resp)
	}
}

func TestRefreshInstallsRing(t *testing.T) {
	remote := &ring.Node{Name: "n0", IP: net.ParseIP("127.0.0.1"), Port: 12000, Start: key.Zero, Stop: key.Max}
	r, _ := newTestRouter(t, []*ring.Node{remote})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Refresh(ctx, "bootstrap:12000"); err != nil {
		t.Fatal(err)
	}
	if got := r.Ring().Load().Participants(); got != 1 {
		t.Errorf("Participants() after Refresh = %d, want 1", got)
	}
}

func TestRefreshInstallsMultiNodeRing(t *testing.T) {
	var mid, beforeMid key.Key
	mid[0] = 0x80
	beforeMid[0] = 0x7f
	for i := 1; i < key.Size; i++ {
		beforeMid[i] = 0xff
	}
	n0 := &ring.Node{Name: "n0", IP: net.ParseIP("127.0.0.1"), Port: 12000, Start: key.Zero, Stop: beforeMid}
	n1 := &ring.Node{Name: "n1", IP: net.ParseIP("127.0.0.1"), Port: 12001, Start: mid, Stop: key.Max}
	r, _ := newTestRouter(t, []*ring.Node{n0, n1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Refresh(ctx, "bootstrap:12000"); err != nil {
		t.Fatal(err)
	}
	installed := r.Ring().Load()
	if got := installed.Participants(); got != 2 {
		t.Fatalf("Participants() after Refresh = %d, want 2", got)
	}
	owner, ok := installed.Lookup(key.Zero)
	if !ok || owner.Name != "n0" {
		t.Errorf("Lookup(Zero) = %+v, %v, want n0", owner, ok)
	}
	owner, ok = installed.Lookup(key.Max)
	if !ok || owner.Name != "n1" {
		t.Errorf("Lookup(Max) = %+v, %v, want n1", owner, ok)
	}
}

func TestRoutePathEmptyRingFails(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	if _, err := r.RoutePath("/a"); err == nil {
		t.Errorf("RoutePath on empty ring: expected error")
	}
}
