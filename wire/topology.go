package wire

import (
	"net"

	proto "github.com/golang/protobuf/proto"

	"magma.io/errors"
	"magma.io/key"
	"magma.io/ring"
	"magma.io/wire/topologypb"
)

// TopologyPage is the decoded TRANSMIT_TOPOLOGY reply body: a batch of
// node descriptors plus the continuation flag (§4.3 "TRANSMIT_TOPOLOGY
// paging"). The wire encoding is protobuf (wire/topologypb), since this
// is the one body the spec calls out as paged and structurally
// repetitive, unlike the fixed-field headers encoded with
// encoding/binary.
type TopologyPage struct {
	Nodes            []*ring.Node
	MoreNodesWaiting bool
	Offset           uint32
}

// EncodeTopologyPage marshals p into its protobuf wire form.
func EncodeTopologyPage(p TopologyPage) ([]byte, error) {
	const op = "wire.EncodeTopologyPage"
	pb := &topologypb.TopologyPage{
		MoreNodesWaiting: p.MoreNodesWaiting,
		Offset:           p.Offset,
	}
	for _, n := range p.Nodes {
		pb.Nodes = append(pb.Nodes, &topologypb.NodeDescriptor{
			Name:     n.Name,
			Fqdn:     n.FQDN,
			IpAddr:   []byte(n.IP.To4()),
			Port:     uint32(n.Port),
			StartKey: n.Start[:],
			StopKey:  n.Stop[:],
		})
	}
	b, err := proto.Marshal(pb)
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return b, nil
}

// DecodeTopologyPage unmarshals a TRANSMIT_TOPOLOGY reply body. A
// descriptor with Port == 0 is a fatal transport error during topology
// assembly (§4.3): the caller must abort the refresh and leave the
// previous ring intact.
func DecodeTopologyPage(b []byte) (TopologyPage, error) {
	const op = "wire.DecodeTopologyPage"
	var pb topologypb.TopologyPage
	if err := proto.Unmarshal(b, &pb); err != nil {
		return TopologyPage{}, errors.E(op, errors.IO, err)
	}
	p := TopologyPage{
		MoreNodesWaiting: pb.MoreNodesWaiting,
		Offset:           pb.Offset,
	}
	for _, d := range pb.Nodes {
		if d.Port == 0 {
			return TopologyPage{}, errors.E(op, errors.IO, errors.Str("zero-port descriptor in topology page"))
		}
		var start, stop key.Key
		copy(start[:], d.StartKey)
		copy(stop[:], d.StopKey)
		p.Nodes = append(p.Nodes, &ring.Node{
			Name:  d.Name,
			FQDN:  d.Fqdn,
			IP:    net.IP(d.IpAddr),
			Port:  uint16(d.Port),
			Start: start,
			Stop:  stop,
		})
	}
	return p, nil
}
