// Package wire implements MAGMA's request/response wire protocol: the
// fixed binary headers of §3, the opcode catalogue and TTL-forwarding
// rules of §4.3, and per-opcode body encode/decode. Headers use a
// big-endian fixed-field layout written with encoding/binary, the literal
// byte layout a packet dissector depends on (unlike magma.io/errors'
// MarshalBinary, which uses varint-encoded fields); the header/body split and one-call-one-
// round-trip shape follow upspin.io/rpc's Invoke (rpc/client.go).
package wire // import "magma.io/wire"

import (
	"encoding/binary"
	"io"

	"magma.io/errors"
)

// Opcode identifies the operation a request/response frame performs.
type Opcode uint8

// The opcode catalogue of §4.3: filesystem ops 1-33, ring ops 100-117,
// control 252-254.
const (
	GETATTR Opcode = 1
	READLINK Opcode = 2

	MKNOD    Opcode = 4
	MKDIR    Opcode = 5
	SYMLINK  Opcode = 6
	UNLINK   Opcode = 7
	RMDIR    Opcode = 8
	RENAME   Opcode = 9
	LINK     Opcode = 10
	CHMOD    Opcode = 11
	CHOWN    Opcode = 12
	TRUNCATE Opcode = 13
	UTIME    Opcode = 14
	OPEN     Opcode = 15
	READ     Opcode = 16
	WRITE    Opcode = 17

	STATFS Opcode = 18

	READDIR          Opcode = 27
	READDIR_EXTENDED Opcode = 32
	READDIR_OFFSET   Opcode = 33

	JOIN               Opcode = 100
	FINISH_JOIN        Opcode = 101
	TRANSMIT_TOPOLOGY  Opcode = 105
	TRANSMIT_KEY       Opcode = 110
	GET_KEY            Opcode = 113
	PUT_KEY            Opcode = 114
	DROP_KEY           Opcode = 115
	GET_KEY_CONTENT    Opcode = 116
	NETWORK_BUILT      Opcode = 117

	SHUTDOWN  Opcode = 253
	HEARTBEAT Opcode = 254
)

func (op Opcode) String() string {
	switch op {
	case GETATTR:
		return "GETATTR"
	case READLINK:
		return "READLINK"
	case MKNOD:
		return "MKNOD"
	case MKDIR:
		return "MKDIR"
	case SYMLINK:
		return "SYMLINK"
	case UNLINK:
		return "UNLINK"
	case RMDIR:
		return "RMDIR"
	case RENAME:
		return "RENAME"
	case LINK:
		return "LINK"
	case CHMOD:
		return "CHMOD"
	case CHOWN:
		return "CHOWN"
	case TRUNCATE:
		return "TRUNCATE"
	case UTIME:
		return "UTIME"
	case OPEN:
		return "OPEN"
	case READ:
		return "READ"
	case WRITE:
		return "WRITE"
	case STATFS:
		return "STATFS"
	case READDIR:
		return "READDIR"
	case READDIR_EXTENDED:
		return "READDIR_EXTENDED"
	case READDIR_OFFSET:
		return "READDIR_OFFSET"
	case JOIN:
		return "JOIN"
	case FINISH_JOIN:
		return "FINISH_JOIN"
	case TRANSMIT_TOPOLOGY:
		return "TRANSMIT_TOPOLOGY"
	case TRANSMIT_KEY:
		return "TRANSMIT_KEY"
	case GET_KEY:
		return "GET_KEY"
	case PUT_KEY:
		return "PUT_KEY"
	case DROP_KEY:
		return "DROP_KEY"
	case GET_KEY_CONTENT:
		return "GET_KEY_CONTENT"
	case NETWORK_BUILT:
		return "NETWORK_BUILT"
	case SHUTDOWN:
		return "SHUTDOWN"
	case HEARTBEAT:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}

// Flags is the response-borne bit field of §3/§4.3.
type Flags uint16

// RefreshTopology signals that the client's installed ring is stale and
// should be refreshed after the current operation completes (§4.3).
const RefreshTopology Flags = 1 << 0

// Status is the transport-level completion status of a response (§3).
type Status uint8

// Normal is the only non-error transport status. magmafs.Binding.Readdir
// retries a page on the same connection when a reply carries any other
// value; the other Binding verbs do not inspect Status and treat the
// reply by its Res field alone.
const Normal Status = 0

// Close, used in a READDIR_EXTENDED reply's res field, indicates
// end-of-directory (§4.3 "READDIR_EXTENDED paging").
const Close int32 = -2

const (
	requestHeaderSize  = 1 + 2 + 2 + 2 + 2 + 2 + 4
	responseHeaderSize = 1 + 2 + 1 + 4 + 4 + 2 + 4
)

// RequestHeader is the fixed header preceding every request's payload
// (§3 "Request header (fixed)").
type RequestHeader struct {
	Op            Opcode
	TransactionID uint16
	TTL           uint16
	UID           uint16
	GID           uint16
	Flags         Flags
	PayloadLen    uint32
}

// MarshalBinary encodes h in the big-endian layout the packet dissector
// expects.
func (h RequestHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, requestHeaderSize)
	b[0] = byte(h.Op)
	binary.BigEndian.PutUint16(b[1:3], h.TransactionID)
	binary.BigEndian.PutUint16(b[3:5], h.TTL)
	binary.BigEndian.PutUint16(b[5:7], h.UID)
	binary.BigEndian.PutUint16(b[7:9], h.GID)
	binary.BigEndian.PutUint16(b[9:11], uint16(h.Flags))
	binary.BigEndian.PutUint32(b[11:15], h.PayloadLen)
	return b, nil
}

// UnmarshalBinary decodes b into h. b must be at least requestHeaderSize
// bytes; a short read is a transport framing error (§7 kind 3).
func (h *RequestHeader) UnmarshalBinary(b []byte) error {
	const op = "wire.RequestHeader.UnmarshalBinary"
	if len(b) < requestHeaderSize {
		return errors.E(op, errors.IO, errors.Str("short read"))
	}
	h.Op = Opcode(b[0])
	h.TransactionID = binary.BigEndian.Uint16(b[1:3])
	h.TTL = binary.BigEndian.Uint16(b[3:5])
	h.UID = binary.BigEndian.Uint16(b[5:7])
	h.GID = binary.BigEndian.Uint16(b[7:9])
	h.Flags = Flags(binary.BigEndian.Uint16(b[9:11]))
	h.PayloadLen = binary.BigEndian.Uint32(b[11:15])
	return nil
}

// ResponseHeader is the fixed header preceding every response's payload
// (§3 "Response header (fixed)").
type ResponseHeader struct {
	Op            Opcode
	TransactionID uint16
	Status        Status
	Res           int32
	ErrNo         int32
	Flags         Flags
	PayloadLen    uint32
}

// Failed reports whether the response carries a remote-reported failure
// (§7 kind 4: Res == -1 with a valid ErrNo).
func (h ResponseHeader) Failed() bool {
	return h.Res == -1
}

// MarshalBinary encodes h in the big-endian layout the packet dissector
// expects.
func (h ResponseHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, responseHeaderSize)
	b[0] = byte(h.Op)
	binary.BigEndian.PutUint16(b[1:3], h.TransactionID)
	b[3] = byte(h.Status)
	binary.BigEndian.PutUint32(b[4:8], uint32(h.Res))
	binary.BigEndian.PutUint32(b[8:12], uint32(h.ErrNo))
	binary.BigEndian.PutUint16(b[12:14], uint16(h.Flags))
	binary.BigEndian.PutUint32(b[14:18], h.PayloadLen)
	return b, nil
}

// UnmarshalBinary decodes b into h.
func (h *ResponseHeader) UnmarshalBinary(b []byte) error {
	const op = "wire.ResponseHeader.UnmarshalBinary"
	if len(b) < responseHeaderSize {
		return errors.E(op, errors.IO, errors.Str("short read"))
	}
	h.Op = Opcode(b[0])
	h.TransactionID = binary.BigEndian.Uint16(b[1:3])
	h.Status = Status(b[3])
	h.Res = int32(binary.BigEndian.Uint32(b[4:8]))
	h.ErrNo = int32(binary.BigEndian.Uint32(b[8:12]))
	h.Flags = Flags(binary.BigEndian.Uint16(b[12:14]))
	h.PayloadLen = binary.BigEndian.Uint32(b[14:18])
	return nil
}

// Frame is a decoded request or response: a header plus its raw,
// not-yet-opcode-decoded payload.
type Frame struct {
	Request  *RequestHeader
	Response *ResponseHeader
	Payload  []byte
}

// EncodeRequest serializes a request header and payload into a single
// datagram.
func EncodeRequest(h RequestHeader, payload []byte) ([]byte, error) {
	h.PayloadLen = uint32(len(payload))
	hb, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(hb, payload...), nil
}

// DecodeRequest splits a received datagram into a request header and
// payload.
func DecodeRequest(b []byte) (RequestHeader, []byte, error) {
	const op = "wire.DecodeRequest"
	var h RequestHeader
	if err := h.UnmarshalBinary(b); err != nil {
		return h, nil, errors.E(op, err)
	}
	payload := b[requestHeaderSize:]
	if uint32(len(payload)) < h.PayloadLen {
		return h, nil, errors.E(op, errors.IO, errors.Str("truncated payload"))
	}
	return h, payload[:h.PayloadLen], nil
}

// EncodeResponse serializes a response header and payload into a single
// datagram.
func EncodeResponse(h ResponseHeader, payload []byte) ([]byte, error) {
	h.PayloadLen = uint32(len(payload))
	hb, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(hb, payload...), nil
}

// DecodeResponse splits a received datagram into a response header and
// payload.
func DecodeResponse(b []byte) (ResponseHeader, []byte, error) {
	const op = "wire.DecodeResponse"
	var h ResponseHeader
	if err := h.UnmarshalBinary(b); err != nil {
		return h, nil, errors.E(op, err)
	}
	payload := b[responseHeaderSize:]
	if uint32(len(payload)) < h.PayloadLen {
		return h, nil, errors.E(op, errors.IO, errors.Str("truncated payload"))
	}
	return h, payload[:h.PayloadLen], nil
}

// ErrTTLExceeded is the error for a mutating request that reaches TTL 0
// at a node that is not the path's current owner (§4.3 "TTL"). Forward
// itself does not return it; it reports that case by returning false.
var ErrTTLExceeded = errors.E(errors.IO, errors.Str("ttl exceeded forwarding to owner"))

// Forward decrements ttl for a hop to another node, reporting whether
// forwarding may proceed. A request arriving with TTL 0 at a non-owner
// must fail rather than forward (§4.3).
func Forward(ttl uint16) (uint16, bool) {
	if ttl == 0 {
		return 0, false
	}
	return ttl - 1, true
}

// WriteFull writes all of b to w, for stream transports where a single
// Write may not consume the whole buffer. Nothing in this module calls
// it; routing's transport is one datagram per request.
func WriteFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// ReadFull reads exactly len(b) bytes from r, the length-prefixed
// streaming idiom upspin.io/rpc's decodeStream uses for its framed
// records (rpc/client.go). Nothing in this module calls it: routing
// reads each reply as one datagram, and a TRANSMIT_TOPOLOGY page is a
// single protobuf payload.
func ReadFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	return err
}
