// Code generated by protoc-gen-go style for MAGMA's TRANSMIT_TOPOLOGY
// page body. DO NOT EDIT unless regenerating: see topology.proto.
//
// source: topology.proto
package topologypb // import "magma.io/wire/topologypb"

import (
	proto "github.com/golang/protobuf/proto"
)

// NodeDescriptor mirrors ring.Node's wire-visible fields: the fields a
// TRANSMIT_TOPOLOGY page transmits about one participant.
type NodeDescriptor struct {
	Name                 string  `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Fqdn                 string  `protobuf:"bytes,2,opt,name=fqdn,proto3" json:"fqdn,omitempty"`
	IpAddr               []byte  `protobuf:"bytes,3,opt,name=ip_addr,json=ipAddr,proto3" json:"ip_addr,omitempty"`
	Port                 uint32  `protobuf:"varint,4,opt,name=port,proto3" json:"port,omitempty"`
	StartKey             []byte  `protobuf:"bytes,5,opt,name=start_key,json=startKey,proto3" json:"start_key,omitempty"`
	StopKey              []byte  `protobuf:"bytes,6,opt,name=stop_key,json=stopKey,proto3" json:"stop_key,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *NodeDescriptor) Reset()         { *m = NodeDescriptor{} }
func (m *NodeDescriptor) String() string { return proto.CompactTextString(m) }
func (*NodeDescriptor) ProtoMessage()    {}

func (m *NodeDescriptor) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

func (m *NodeDescriptor) GetFqdn() string {
	if m != nil {
		return m.Fqdn
	}
	return ""
}

func (m *NodeDescriptor) GetIpAddr() []byte {
	if m != nil {
		return m.IpAddr
	}
	return nil
}

func (m *NodeDescriptor) GetPort() uint32 {
	if m != nil {
		return m.Port
	}
	return 0
}

func (m *NodeDescriptor) GetStartKey() []byte {
	if m != nil {
		return m.StartKey
	}
	return nil
}

func (m *NodeDescriptor) GetStopKey() []byte {
	if m != nil {
		return m.StopKey
	}
	return nil
}

// TopologyPage is one page of a paged TRANSMIT_TOPOLOGY transfer
// (§4.3 "TRANSMIT_TOPOLOGY paging"): a batch of descriptors plus the
// continuation flag the client loops on with an offset.
type TopologyPage struct {
	Nodes                []*NodeDescriptor `protobuf:"bytes,1,rep,name=nodes,proto3" json:"nodes,omitempty"`
	MoreNodesWaiting     bool              `protobuf:"varint,2,opt,name=more_nodes_waiting,json=moreNodesWaiting,proto3" json:"more_nodes_waiting,omitempty"`
	Offset               uint32            `protobuf:"varint,3,opt,name=offset,proto3" json:"offset,omitempty"`
	XXX_NoUnkeyedLiteral struct{}          `json:"-"`
	XXX_unrecognized     []byte            `json:"-"`
	XXX_sizecache        int32             `json:"-"`
}

func (m *TopologyPage) Reset()         { *m = TopologyPage{} }
func (m *TopologyPage) String() string { return proto.CompactTextString(m) }
func (*TopologyPage) ProtoMessage()    {}

func (m *TopologyPage) GetNodes() []*NodeDescriptor {
	if m != nil {
		return m.Nodes
	}
	return nil
}

func (m *TopologyPage) GetMoreNodesWaiting() bool {
	if m != nil {
		return m.MoreNodesWaiting
	}
	return false
}

func (m *TopologyPage) GetOffset() uint32 {
	if m != nil {
		return m.Offset
	}
	return 0
}

func init() {
	proto.RegisterType((*NodeDescriptor)(nil), "topologypb.NodeDescriptor")
	proto.RegisterType((*TopologyPage)(nil), "topologypb.TopologyPage")
}
