package errors

import (
	"syscall"
	"testing"
)

func TestE(t *testing.T) {
	err := E("/n0/a", "Getattr", NotExist)
	if err.(*Error).Path != "/n0/a" {
		t.Errorf("Path = %q, want /n0/a", err.(*Error).Path)
	}
	if err.(*Error).Op != "Getattr" {
		t.Errorf("Op = %q, want Getattr", err.(*Error).Op)
	}
	if !Match(NotExist, err) {
		t.Errorf("Match(NotExist, err) = false, want true")
	}
}

func TestErrnoRoundTrip(t *testing.T) {
	cases := []Kind{Invalid, Permission, Exist, NotExist, IsDir, NotDir, NotEmpty, Timeout, NoMemory}
	for _, k := range cases {
		errno := k.Errno()
		if got := KindFromErrno(int32(errno)); got != k {
			t.Errorf("KindFromErrno(%v.Errno()) = %v, want %v", k, got, k)
		}
	}
}

func TestNotExistErrno(t *testing.T) {
	if NotExist.Errno() != syscall.ENOENT {
		t.Errorf("NotExist.Errno() = %v, want ENOENT", NotExist.Errno())
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	e := &Error{Path: "/n0/a", Op: "Open", Kind: NotExist, Err: Str("remote said no")}
	b, err := e.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var got Error
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if got.Path != e.Path || got.Op != e.Op || got.Kind != e.Kind {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, e)
	}
	if got.Err == nil || got.Err.Error() != "remote said no" {
		t.Errorf("wrapped error lost in round trip: %v", got.Err)
	}
}

func TestErrorString(t *testing.T) {
	e := E("/n0/a", "Getattr", NotExist)
	want := "/n0/a: Getattr: item does not exist"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}
