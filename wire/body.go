package wire

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"magma.io/errors"
)

// Stat is the GETATTR reply body: the subset of POSIX stat fields the
// client filesystem binding needs to populate a host attr buffer.
type Stat struct {
	Inode   uint64
	Size    uint64
	Blocks  uint64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint32
	Blksize uint32
}

const statBodySize = 8*3 + 8*3 + 4*6

// MarshalBinary encodes s in the fixed layout GETATTR/READDIR_EXTENDED
// entries share.
func (s Stat) MarshalBinary() ([]byte, error) {
	b := make([]byte, statBodySize)
	o := 0
	putU64 := func(v uint64) { binary.BigEndian.PutUint64(b[o:o+8], v); o += 8 }
	putTime := func(t time.Time) { putU64(uint64(t.Unix())) }
	putU32 := func(v uint32) { binary.BigEndian.PutUint32(b[o:o+4], v); o += 4 }

	putU64(s.Inode)
	putU64(s.Size)
	putU64(s.Blocks)
	putTime(s.Atime)
	putTime(s.Mtime)
	putTime(s.Ctime)
	putU32(s.Mode)
	putU32(s.Nlink)
	putU32(s.UID)
	putU32(s.GID)
	putU32(s.Rdev)
	putU32(s.Blksize)
	return b, nil
}

// UnmarshalBinary decodes a Stat body.
func (s *Stat) UnmarshalBinary(b []byte) error {
	const op = "wire.Stat.UnmarshalBinary"
	if len(b) < statBodySize {
		return errors.E(op, errors.IO, errors.Str("short stat body"))
	}
	o := 0
	getU64 := func() uint64 { v := binary.BigEndian.Uint64(b[o : o+8]); o += 8; return v }
	getTime := func() time.Time { return time.Unix(int64(getU64()), 0).UTC() }
	getU32 := func() uint32 { v := binary.BigEndian.Uint32(b[o : o+4]); o += 4; return v }

	s.Inode = getU64()
	s.Size = getU64()
	s.Blocks = getU64()
	s.Atime = getTime()
	s.Mtime = getTime()
	s.Ctime = getTime()
	s.Mode = getU32()
	s.Nlink = getU32()
	s.UID = getU32()
	s.GID = getU32()
	s.Rdev = getU32()
	s.Blksize = getU32()
	return nil
}

// DirEntry is one entry of a READDIR_EXTENDED reply (§4.3): a Stat plus
// the entry's name within the directory.
type DirEntry struct {
	Stat
	Name string
}

// MarshalBinary encodes a DirEntry as its Stat body followed by the name
// prefixed with its length as a 4-byte big-endian integer.
func (d DirEntry) MarshalBinary() ([]byte, error) {
	sb, err := d.Stat.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(d.Name)))
	out := append(sb, lb[:]...)
	out = append(out, d.Name...)
	return out, nil
}

// UnmarshalBinary decodes a DirEntry, returning the number of bytes
// consumed so the caller can walk a page of concatenated entries.
func (d *DirEntry) UnmarshalBinary(b []byte) (int, error) {
	const op = "wire.DirEntry.UnmarshalBinary"
	if err := d.Stat.UnmarshalBinary(b); err != nil {
		return 0, errors.E(op, err)
	}
	o := statBodySize
	if len(b) < o+4 {
		return 0, errors.E(op, errors.IO, errors.Str("short dirent name length"))
	}
	n := int(binary.BigEndian.Uint32(b[o : o+4]))
	o += 4
	if len(b) < o+n {
		return 0, errors.E(op, errors.IO, errors.Str("short dirent name"))
	}
	d.Name = string(b[o : o+n])
	return o + n, nil
}

// DirPage is a READDIR_EXTENDED reply body (§4.3, §4.5 scenario 4): a
// page of directory entries plus the continuation cookie the client
// echoes back as the next request's offset ("the reply's offset is the
// cookie to send in the next request").
type DirPage struct {
	Entries    []DirEntry
	NextOffset uint32
}

// MarshalBinary encodes a DirPage as its 4-byte NextOffset cookie
// followed by each entry's DirEntry encoding, concatenated.
func (p DirPage) MarshalBinary() ([]byte, error) {
	var off [4]byte
	binary.BigEndian.PutUint32(off[:], p.NextOffset)
	out := append([]byte{}, off[:]...)
	for _, e := range p.Entries {
		eb, err := e.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, eb...)
	}
	return out, nil
}

// UnmarshalBinary decodes a DirPage encoded by MarshalBinary.
func (p *DirPage) UnmarshalBinary(b []byte) error {
	const op = "wire.DirPage.UnmarshalBinary"
	if len(b) < 4 {
		return errors.E(op, errors.IO, errors.Str("short dirpage cookie"))
	}
	p.NextOffset = binary.BigEndian.Uint32(b[:4])
	rest := b[4:]
	p.Entries = nil
	for len(rest) > 0 {
		var d DirEntry
		n, err := d.UnmarshalBinary(rest)
		if err != nil {
			return errors.E(op, err)
		}
		p.Entries = append(p.Entries, d)
		rest = rest[n:]
	}
	return nil
}

// joinKeySize is the secretbox key size derived from the shared
// keyphrase.
const joinKeySize = 32

// deriveJoinKey folds an arbitrary-length keyphrase down to the 32-byte
// key secretbox requires. This is not a security boundary (spec §1
// Non-goals: no cryptographic peer authentication) — it only keeps the
// keyphrase from crossing the wire as plaintext, the way the teacher
// never sends credential-shaped bytes unobscured even on an
// unauthenticated channel.
func deriveJoinKey(keyphrase string) [joinKeySize]byte {
	var key [joinKeySize]byte
	copy(key[:], keyphrase)
	return key
}

// SealJoin seals keyphrase for a JOIN/FINISH_JOIN request body using
// nacl/secretbox with a key derived from keyphrase itself (the shared
// secret doubles as the sealing key, since there is no separate
// authentication channel to exchange one over).
func SealJoin(keyphrase string) ([]byte, error) {
	const op = "wire.SealJoin"
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.E(op, errors.NoMemory, err)
	}
	key := deriveJoinKey(keyphrase)
	sealed := secretbox.Seal(nonce[:], []byte(keyphrase), &nonce, &key)
	return sealed, nil
}

// OpenJoin unseals a JOIN/FINISH_JOIN body sealed by SealJoin, given the
// keyphrase the receiving node expects.
func OpenJoin(sealed []byte, expectKeyphrase string) (bool, error) {
	const op = "wire.OpenJoin"
	if len(sealed) < 24 {
		return false, errors.E(op, errors.IO, errors.Str("short sealed join body"))
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	key := deriveJoinKey(expectKeyphrase)
	out, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return false, nil
	}
	return string(out) == expectKeyphrase, nil
}
