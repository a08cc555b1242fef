// Package key implements the 160-bit hash & key algebra MAGMA uses to
// route paths to nodes: a path's key is the SHA-1 of its UTF-8 bytes,
// ordered numerically and treated as a ring (addition modulo 2^160).
package key // import "magma.io/key"

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
)

// Size is the width of a Key in bytes (160 bits).
const Size = sha1.Size

// Key is a 160-bit routing coordinate: the SHA-1 digest of a path,
// interpreted big-endian.
type Key [Size]byte

// Hash returns the key for path. It never fails: SHA-1 over a byte slice
// cannot error, and this is documented rather than defended with an
// error return nobody can trigger.
func Hash(path string) Key {
	return Key(sha1.Sum([]byte(path)))
}

// Armour renders k as lowercase hex, the textual form used for
// connection-cache-style keys and for the open-file handle's key field.
func (k Key) Armour() string {
	return hex.EncodeToString(k[:])
}

// Compare returns -1, 0, or 1 as a is numerically less than, equal to,
// or greater than b.
func Compare(a, b Key) int {
	return bytes.Compare(a[:], b[:])
}

// Less reports whether a orders strictly before b.
func (a Key) Less(b Key) bool {
	return Compare(a, b) < 0
}

// Equal reports whether a and b are the same key.
func (a Key) Equal(b Key) bool {
	return a == b
}

// Add1 returns the key immediately following k in the ring, wrapping
// around to the zero key after the maximum key.
func Add1(k Key) Key {
	var out Key = k
	for i := Size - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

// InRange reports whether k falls within the cyclic, inclusive range
// [lo, hi]. When lo <= hi this is the ordinary inclusive test; when
// lo > hi the range wraps the zero point and k qualifies if it is
// either >= lo or <= hi.
func InRange(k, lo, hi Key) bool {
	if Compare(lo, hi) <= 0 {
		return Compare(k, lo) >= 0 && Compare(k, hi) <= 0
	}
	return Compare(k, lo) >= 0 || Compare(k, hi) <= 0
}

// Zero is the smallest possible key.
var Zero Key

// Max is the largest possible key.
var Max = func() Key {
	var k Key
	for i := range k {
		k[i] = 0xff
	}
	return k
}()
