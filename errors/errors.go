// Package errors defines the error handling used throughout magma.
package errors

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"runtime"
	"strings"
	"syscall"

	"magma.io/log"
)

// Error is the type that implements the error interface.
// It contains a number of fields, each of different type.
// An Error value may leave some values unset.
type Error struct {
	// Path is the path of the item being accessed.
	Path string
	// Op is the operation being performed, usually the name of the
	// filesystem verb being invoked (Getattr, Open, Write, ...).
	Op string
	// Kind is the class of error, such as permission failure,
	// or Other if its class is unknown or irrelevant.
	Kind Kind
	// The underlying error that triggered this one, if any.
	Err error
}

var (
	_       error                      = (*Error)(nil)
	_       encoding.BinaryUnmarshaler = (*Error)(nil)
	_       encoding.BinaryMarshaler   = (*Error)(nil)
	zeroErr Error
)

// Separator is the string used to separate nested errors.
var Separator = ":\n\t"

// Kind defines the kind of error this is, used to classify protocol and
// remote-reported failures (§7 of the routing/wire-protocol spec) and to
// translate to and from a wire errno.
type Kind uint8

// Kinds of errors.
const (
	Other      Kind = iota // Unclassified error.
	Invalid                // Invalid operation for this type of item.
	Permission             // Permission denied.
	Syntax                 // Ill-formed argument such as invalid path name.
	IO                     // Transport or routing failure.
	Exist                  // Item already exists.
	NotExist               // Item does not exist.
	IsDir                  // Item is a directory.
	NotDir                 // Item is not a directory.
	NotEmpty               // Directory not empty.
	Timeout                // Operation deadline exceeded.
	NoMemory               // Resource exhaustion.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Invalid:
		return "invalid operation"
	case Permission:
		return "permission denied"
	case Syntax:
		return "syntax error"
	case IO:
		return "I/O error"
	case Exist:
		return "item already exists"
	case NotExist:
		return "item does not exist"
	case IsDir:
		return "item is a directory"
	case NotDir:
		return "item is not a directory"
	case NotEmpty:
		return "directory not empty"
	case Timeout:
		return "operation timed out"
	case NoMemory:
		return "out of memory"
	}
	return "unknown error kind"
}

// Errno returns the errno this Kind maps to on the wire (§3 Response
// header, §7 Remote-reported failure). Kinds with no natural errno map to
// EIO, the protocol-error catch-all.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case Invalid, Syntax:
		return syscall.EINVAL
	case Permission:
		return syscall.EACCES
	case Exist:
		return syscall.EEXIST
	case NotExist:
		return syscall.ENOENT
	case IsDir:
		return syscall.EISDIR
	case NotDir:
		return syscall.ENOTDIR
	case NotEmpty:
		return syscall.ENOTEMPTY
	case Timeout:
		return syscall.ETIMEDOUT
	case NoMemory:
		return syscall.ENOMEM
	default:
		return syscall.EIO
	}
}

// EIO is the errno magmafs returns for transport/framing failures that
// never reached the remote node (§7 kinds 2-3): connection failure,
// short reads, malformed headers.
var EIO = IO.Errno()

// KindFromErrno is the inverse of Kind.Errno, used when translating a
// remote-reported err_no (§7 kind 4) back into a classified error.
func KindFromErrno(errno int32) Kind {
	switch syscall.Errno(errno) {
	case syscall.EINVAL:
		return Invalid
	case syscall.EACCES, syscall.EPERM:
		return Permission
	case syscall.EEXIST:
		return Exist
	case syscall.ENOENT:
		return NotExist
	case syscall.EISDIR:
		return IsDir
	case syscall.ENOTDIR:
		return NotDir
	case syscall.ENOTEMPTY:
		return NotEmpty
	case syscall.ETIMEDOUT:
		return Timeout
	case syscall.ENOMEM:
		return NoMemory
	default:
		return IO
	}
}

// E builds an error value from its arguments.
// The type of each argument determines its meaning.
// If more than one argument of a given type is presented,
// only the last one is recorded.
//
// The types are:
//	string
//		The first is the path of the item being accessed; the second
//		and later are the operation being performed.
//	errors.Kind
//		The class of error, such as permission failure.
//	error
//		The underlying error that triggered this one.
//
// If Kind is not specified or Other, it is set to the Kind of the
// underlying error, if any.
func E(args ...interface{}) error {
	if len(args) == 0 {
		return nil
	}
	e := &Error{}
	pathSet := false
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			if !pathSet {
				e.Path = arg
				pathSet = true
			} else {
				e.Op = arg
			}
		case Kind:
			e.Kind = arg
		case *Error:
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call from %s:%d: %v", file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}
	if prev.Path == e.Path {
		prev.Path = ""
	}
	if prev.Kind == e.Kind {
		prev.Kind = Other
	}
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}
	return e
}

func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Path != "" {
		b.WriteString(e.Path)
	}
	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(e.Op)
	}
	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if prevErr, ok := e.Err.(*Error); ok {
			if *prevErr != zeroErr {
				pad(b, Separator)
				b.WriteString(e.Err.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Str returns an error that formats as the given text. It is intended to
// be used as the error-typed argument to the E function.
func Str(text string) error {
	return &errorString{text}
}

type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Errorf formats according to a format specifier and returns the resulting
// error, for use as the error-typed argument to E.
func Errorf(format string, args ...interface{}) error {
	return &errorString{fmt.Sprintf(format, args...)}
}

// MarshalAppend marshals err into a byte slice, appending to b.
func (e *Error) MarshalAppend(b []byte) []byte {
	if e == nil {
		return b
	}
	b = appendString(b, e.Path)
	b = appendString(b, e.Op)
	var tmp [16]byte
	n := binary.PutVarint(tmp[:], int64(e.Kind))
	b = append(b, tmp[:n]...)
	b = MarshalErrorAppend(e.Err, b)
	return b
}

// MarshalBinary marshals its receiver into a byte slice.
func (e *Error) MarshalBinary() ([]byte, error) {
	return e.MarshalAppend(nil), nil
}

// MarshalErrorAppend marshals an arbitrary error, appending to b.
func MarshalErrorAppend(err error, b []byte) []byte {
	if err == nil {
		return b
	}
	if e, ok := err.(*Error); ok {
		b = append(b, 'E')
		return e.MarshalAppend(b)
	}
	b = append(b, 'e')
	b = appendString(b, err.Error())
	return b
}

// MarshalError marshals an arbitrary error and returns the byte slice.
func MarshalError(err error) []byte {
	return MarshalErrorAppend(err, nil)
}

// UnmarshalBinary unmarshals the byte slice into the receiver.
func (e *Error) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	data, b := getBytes(b)
	if data != nil {
		e.Path = string(data)
	}
	data, b = getBytes(b)
	if data != nil {
		e.Op = string(data)
	}
	k, n := binary.Varint(b)
	e.Kind = Kind(k)
	b = b[n:]
	e.Err = UnmarshalError(b)
	return nil
}

// UnmarshalError unmarshals a byte slice created by MarshalError or
// MarshalErrorAppend into an error value.
func UnmarshalError(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	code := b[0]
	b = b[1:]
	switch code {
	case 'e':
		var data []byte
		data, b = getBytes(b)
		if len(b) != 0 {
			log.Printf("errors.UnmarshalError: trailing bytes")
		}
		return Str(string(data))
	case 'E':
		var err Error
		err.UnmarshalBinary(b)
		return &err
	default:
		log.Printf("errors.UnmarshalError: corrupt data %q", b)
		return Str(string(b))
	}
}

func appendString(b []byte, str string) []byte {
	var tmp [16]byte
	n := binary.PutUvarint(tmp[:], uint64(len(str)))
	b = append(b, tmp[:n]...)
	b = append(b, str...)
	return b
}

func getBytes(b []byte) (data, remaining []byte) {
	u, n := binary.Uvarint(b)
	if len(b) < n+int(u) {
		log.Printf("errors.getBytes: bad encoding")
		return nil, nil
	}
	if n == 0 {
		log.Printf("errors.getBytes: bad encoding")
		return nil, b
	}
	return b[n : n+int(u)], b[n+int(u):]
}

// Match matches the error with a candidate Kind. It returns true if the
// error's Kind, or that of any error it wraps, equals want.
func Match(want Kind, err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	if e.Kind == want {
		return true
	}
	return Match(want, e.Err)
}
