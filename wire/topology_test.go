package wire

import (
	"net"
	"testing"

	"magma.io/key"
	"magma.io/ring"
)

func TestTopologyPageRoundTrip(t *testing.T) {
	n := &ring.Node{
		Name:  "n0",
		FQDN:  "n0.example.com",
		IP:    net.ParseIP("127.0.0.1"),
		Port:  12000,
		Start: key.Zero,
		Stop:  key.Max,
	}
	page := TopologyPage{Nodes: []*ring.Node{n}, MoreNodesWaiting: true, Offset: 1}
	b, err := EncodeTopologyPage(page)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeTopologyPage(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Nodes) != 1 || got.Nodes[0].Name != "n0" || got.Nodes[0].Port != 12000 {
		t.Errorf("decoded nodes = %+v", got.Nodes)
	}
	if !got.MoreNodesWaiting || got.Offset != 1 {
		t.Errorf("decoded page = %+v, want MoreNodesWaiting=true Offset=1", got)
	}
}

func TestTopologyPageRejectsZeroPort(t *testing.T) {
	n := &ring.Node{Name: "bad", IP: net.ParseIP("127.0.0.1"), Port: 0, Start: key.Zero, Stop: key.Max}
	b, err := EncodeTopologyPage(TopologyPage{Nodes: []*ring.Node{n}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeTopologyPage(b); err == nil {
		t.Errorf("DecodeTopologyPage with zero-port descriptor: expected error")
	}
}
