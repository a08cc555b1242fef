package wire

import (
	"testing"
	"time"
)

func TestRequestHeaderRoundTrip(t *testing.T) {
	h := RequestHeader{Op: GETATTR, TransactionID: 42, TTL: 2, UID: 1000, GID: 1000, Flags: 0, PayloadLen: 5}
	b, err := h.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	b = append(b, []byte("/path")...)
	var got RequestHeader
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Errorf("round trip = %+v, want %+v", got, h)
	}
}

func TestResponseHeaderRoundTrip(t *testing.T) {
	h := ResponseHeader{Op: READ, TransactionID: 7, Status: Normal, Res: 1024, ErrNo: 0, Flags: RefreshTopology, PayloadLen: 1024}
	b, err := h.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var got ResponseHeader
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Errorf("round trip = %+v, want %+v", got, h)
	}
	if !got.Failed() && got.Res == -1 {
		t.Errorf("Failed() inconsistent with Res")
	}
}

func TestResponseHeaderFailed(t *testing.T) {
	h := ResponseHeader{Res: -1, ErrNo: 2}
	if !h.Failed() {
		t.Errorf("Failed() = false, want true for Res == -1")
	}
}

func TestEncodeDecodeRequest(t *testing.T) {
	h := RequestHeader{Op: MKDIR, TransactionID: 1, TTL: 2}
	payload := []byte("/a/b")
	frame, err := EncodeRequest(h, payload)
	if err != nil {
		t.Fatal(err)
	}
	gotH, gotPayload, err := DecodeRequest(frame)
	if err != nil {
		t.Fatal(err)
	}
	if gotH.Op != MKDIR || string(gotPayload) != "/a/b" {
		t.Errorf("decode = %+v %q, want MKDIR /a/b", gotH, gotPayload)
	}
}

func TestForwardDecrementsUntilExceeded(t *testing.T) {
	ttl, ok := Forward(2)
	if !ok || ttl != 1 {
		t.Errorf("Forward(2) = %d, %v, want 1, true", ttl, ok)
	}
	ttl, ok = Forward(1)
	if !ok || ttl != 0 {
		t.Errorf("Forward(1) = %d, %v, want 0, true", ttl, ok)
	}
	_, ok = Forward(0)
	if ok {
		t.Errorf("Forward(0) = ok true, want false")
	}
}

func TestStatRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	s := Stat{Inode: 7, Size: 4096, Blocks: 8, Atime: now, Mtime: now, Ctime: now, Mode: 0755, Nlink: 1, UID: 1000, GID: 1000, Rdev: 0, Blksize: 4096}
	b, err := s.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var got Stat
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Errorf("round trip = %+v, want %+v", got, s)
	}
}

func TestDirEntryRoundTrip(t *testing.T) {
	d := DirEntry{Stat: Stat{Inode: 3, Mode: 0644}, Name: "file.txt"}
	b, err := d.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var got DirEntry
	n, err := got.UnmarshalBinary(b)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(b) {
		t.Errorf("consumed %d, want %d", n, len(b))
	}
	if got.Name != d.Name || got.Inode != d.Inode {
		t.Errorf("round trip = %+v, want %+v", got, d)
	}
}

func TestSealOpenJoin(t *testing.T) {
	sealed, err := SealJoin("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := OpenJoin(sealed, "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Errorf("OpenJoin with correct keyphrase = false, want true")
	}
	ok, err = OpenJoin(sealed, "wrong")
	if err == nil && ok {
		t.Errorf("OpenJoin with wrong keyphrase = true, want false")
	}
}

func TestOpcodeString(t *testing.T) {
	if GETATTR.String() != "GETATTR" {
		t.Errorf("GETATTR.String() = %q", GETATTR.String())
	}
	if Opcode(99).String() != "UNKNOWN" {
		t.Errorf("Opcode(99).String() = %q, want UNKNOWN", Opcode(99).String())
	}
}
