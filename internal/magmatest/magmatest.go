// Package magmatest is an in-process integration-test harness: a
// loopback UDP listener that answers a scripted set of opcodes, and a
// helper to build a single-node in-memory ring around it. Grounded on
// the teacher's upbox in-process test harness pattern (spinning up real
// listeners in-process rather than mocking the network layer), adapted
// from upbox's multi-process Upspin constellation down to MAGMA's
// single-node routing/wire-protocol surface.
package magmatest // import "magma.io/internal/magmatest"

import (
	"net"
	"strconv"
	"testing"

	"magma.io/key"
	"magma.io/ring"
	"magma.io/wire"
)

// Responder computes a response for a decoded request. It is called
// synchronously for every datagram the Node receives.
type Responder func(h wire.RequestHeader, payload []byte) (wire.ResponseHeader, []byte)

// Node is a loopback UDP listener standing in for one MAGMA node.
type Node struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

// StartNode starts a loopback UDP listener that answers every request
// with respond, and returns it along with its dialable address. The
// listener is closed automatically when t completes.
func StartNode(t *testing.T, respond Responder) *Node {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("magmatest: listen: %v", err)
	}
	n := &Node{conn: conn, addr: conn.LocalAddr().(*net.UDPAddr)}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 65536)
		for {
			size, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			h, payload, err := wire.DecodeRequest(buf[:size])
			if err != nil {
				continue
			}
			respH, respPayload := respond(h, payload)
			respH.TransactionID = h.TransactionID
			respH.Op = h.Op
			frame, err := wire.EncodeResponse(respH, respPayload)
			if err != nil {
				continue
			}
			conn.WriteToUDP(frame, from)
		}
	}()
	return n
}

// Addr returns the node's dialable host:port.
func (n *Node) Addr() string {
	return n.addr.String()
}

// SingleNodeRing returns a *ring.Node covering the whole key space and
// pointed at addr, the shape a one-node TRANSMIT_TOPOLOGY reply would
// carry.
func SingleNodeRing(name, addr string) *ring.Node {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		panic(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		panic(err)
	}
	return &ring.Node{
		Name:  name,
		IP:    net.ParseIP(host),
		Port:  uint16(port),
		Start: key.Zero,
		Stop:  key.Max,
	}
}
