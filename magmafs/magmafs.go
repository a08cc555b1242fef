// Package magmafs implements MAGMA's client filesystem binding (§4.5):
// one function per filesystystem verb, each routing a path to its owner,
// performing one request/response exchange, and translating the result
// into the host filesystem's negative-errno return convention. The
// per-verb skeleton (uid/gid capture, open-file bookkeeping) is
// grounded on upspin.io/cmd/dfuse's
// node/handle methods (cmd/dfuse/fs.go); bazil.org/fuse supplies the
// Attr/Dirent value types reused here for stat/dirent translation
// without this package itself registering a kernel mount (mounting is
// the excluded external collaborator, spec §1).
package magmafs // import "magma.io/magmafs"

import (
	"context"
	"os"
	"time"

	"bazil.org/fuse"

	"magma.io/errors"
	"magma.io/key"
	"magma.io/log"
	"magma.io/routing"
	"magma.io/wire"
)

type ctxKey int

const (
	uidKey ctxKey = iota
	gidKey
)

// WithCaller returns a context carrying the calling uid/gid, the way a
// host filesystem adapter's request header would supply them.
func WithCaller(ctx context.Context, uid, gid uint32) context.Context {
	ctx = context.WithValue(ctx, uidKey, uid)
	ctx = context.WithValue(ctx, gidKey, gid)
	return ctx
}

// caller extracts uid/gid from ctx, defaulting to 0 if absent (§4.5 step 1).
func caller(ctx context.Context) (uid, gid uint32) {
	if v, ok := ctx.Value(uidKey).(uint32); ok {
		uid = v
	}
	if v, ok := ctx.Value(gidKey).(uint32); ok {
		gid = v
	}
	return uid, gid
}

// Binding is the explicit context value the client filesystem binding
// operates on, replacing the original source's (and the teacher's)
// module-level globals (§9 Design Notes, "Global mutable state"): a
// host adapter owns one Binding and tears it down deterministically.
type Binding struct {
	router *routing.Router
	open   *openFiles
}

// New returns a Binding that routes through router.
func New(router *routing.Router) *Binding {
	return &Binding{router: router, open: newOpenFiles()}
}

// refreshIfRequested schedules a non-blocking topology refresh when a
// reply's flags carry RefreshTopology (§4.3 "Refresh-topology flag",
// §4.5 step 6). routing.Router's singleflight-coalesced Refresh makes
// this safe to fire from every verb without a separate outer scheduler:
// at most one network loop runs per bootstrap address, and a concurrent
// caller waits for that refresh and shares its result rather than
// returning at once.
func (b *Binding) refreshIfRequested(flags wire.Flags, bootstrap string) {
	if flags&wire.RefreshTopology == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.router.Refresh(ctx, bootstrap); err != nil {
			log.Chan(log.ChannelClient, "magmafs: refresh-topology-flagged refresh failed: %v", err)
		}
	}()
}

// exchange performs the common route/connect/encode/send/decode
// sequence of §4.5 steps 2-4, returning the decoded response header and
// payload.
func (b *Binding) exchange(ctx context.Context, op wire.Opcode, path string, payload []byte) (wire.ResponseHeader, []byte, error) {
	opName := op.String()
	owner, err := b.router.RoutePath(path)
	if err != nil {
		return wire.ResponseHeader{}, nil, errors.E(path, opName, errors.IO, err)
	}
	c, err := b.router.Connect(owner)
	if err != nil {
		return wire.ResponseHeader{}, nil, errors.E(path, opName, errors.IO, err)
	}
	uid, gid := caller(ctx)
	h := wire.RequestHeader{Op: op, TTL: 2, UID: uint16(uid), GID: uint16(gid)}

	deadline, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, respPayload, err := c.Exchange(deadline, h, payload)
	if err != nil {
		b.router.Invalidate(owner)
		return wire.ResponseHeader{}, nil, errors.E(path, opName, errors.IO, err)
	}
	if resp.Failed() {
		kind := errors.KindFromErrno(resp.ErrNo)
		if kind != errors.NotExist {
			b.router.Invalidate(owner)
		}
		// A failed response's payload, when present, is a node's
		// optional marshaled *errors.Error detail (Path/Op/Kind chain)
		// supplementing the bare err_no — decode it for the log even
		// though the FUSE-facing return only ever carries the errno.
		if len(respPayload) > 0 {
			var detail errors.Error
			if detail.UnmarshalBinary(respPayload) == nil && detail.Op != "" {
				log.Chan(log.ChannelClient, "magmafs: %s %s failed: %v", opName, path, &detail)
			}
		}
	}
	b.refreshIfRequested(resp.Flags, owner.Addr())
	return resp, respPayload, nil
}

// errno translates a response into the host filesystem's negative-errno
// convention (§4.5 step 5): Res == -1 yields the negated errno,
// otherwise the verb's natural success value.
func errno(resp wire.ResponseHeader) int {
	if resp.Failed() {
		return -int(resp.ErrNo)
	}
	return int(resp.Res)
}

// Getattr implements GETATTR: stat a path.
func (b *Binding) Getattr(ctx context.Context, path string) (fuse.Attr, int) {
	resp, payload, err := b.exchange(ctx, wire.GETATTR, path, []byte(path))
	if err != nil {
		return fuse.Attr{}, -int(errors.EIO)
	}
	if resp.Failed() {
		return fuse.Attr{}, errno(resp)
	}
	var st wire.Stat
	if err := st.UnmarshalBinary(payload); err != nil {
		return fuse.Attr{}, -int(errors.EIO)
	}
	return attrFromStat(st), 0
}

func attrFromStat(st wire.Stat) fuse.Attr {
	return fuse.Attr{
		Inode:  st.Inode,
		Size:   st.Size,
		Blocks: st.Blocks,
		Atime:  st.Atime,
		Mtime:  st.Mtime,
		Ctime:  st.Ctime,
		Mode:   os.FileMode(st.Mode),
		Nlink:  st.Nlink,
		Uid:    st.UID,
		Gid:    st.GID,
		Rdev:   st.Rdev,
		BlockSize: st.Blksize,
	}
}

// Readlink implements READLINK: read a symlink target.
func (b *Binding) Readlink(ctx context.Context, path string) (string, int) {
	resp, payload, err := b.exchange(ctx, wire.READLINK, path, []byte(path))
	if err != nil {
		return "", -int(errors.EIO)
	}
	if resp.Failed() {
		return "", errno(resp)
	}
	return string(payload), 0
}

// maxReaddirStatusRetries bounds how many times Readdir retries the same
// page against the same endpoint after an abnormal transport status
// before giving up (§4.3 open question: the source's READDIR_EXTENDED
// loop continues rather than aborting on abnormal status; retrying the
// same endpoint is the safer read of that behaviour).
const maxReaddirStatusRetries = 3

// Readdir implements READDIR via paged READDIR_EXTENDED (§4.3, §4.5
// scenario 4): appendFn is invoked once per directory entry in order,
// and may short-circuit enumeration by returning true. Each reply's
// DirPage.NextOffset is the cookie echoed back as the next request's
// offset, rather than a page index, per §4.3.
func (b *Binding) Readdir(ctx context.Context, path string, appendFn func(wire.DirEntry) bool) int {
	var offset uint32
	for {
		req := make([]byte, 4+len(path))
		req[0] = byte(offset >> 24)
		req[1] = byte(offset >> 16)
		req[2] = byte(offset >> 8)
		req[3] = byte(offset)
		copy(req[4:], path)

		var resp wire.ResponseHeader
		var payload []byte
		for attempt := 0; ; attempt++ {
			var err error
			resp, payload, err = b.exchange(ctx, wire.READDIR_EXTENDED, path, req)
			if err != nil {
				return -int(errors.EIO)
			}
			if resp.Status == wire.Normal {
				break
			}
			if attempt >= maxReaddirStatusRetries {
				return -int(errors.EIO)
			}
		}
		if resp.Failed() {
			return errno(resp)
		}
		var page wire.DirPage
		if err := page.UnmarshalBinary(payload); err != nil {
			return -int(errors.EIO)
		}
		for _, d := range page.Entries {
			if appendFn(d) {
				return 0
			}
		}
		if resp.Res == wire.Close {
			break
		}
		offset = page.NextOffset
	}
	return 0
}

// Mknod implements MKNOD.
func (b *Binding) Mknod(ctx context.Context, path string, mode uint32) int {
	return b.simpleVerb(ctx, wire.MKNOD, path)
}

// Mkdir implements MKDIR.
func (b *Binding) Mkdir(ctx context.Context, path string, mode uint32) int {
	return b.simpleVerb(ctx, wire.MKDIR, path)
}

// Symlink implements SYMLINK: src is the link target, dst the link path.
func (b *Binding) Symlink(ctx context.Context, dst, src string) int {
	payload := append([]byte(dst+"\x00"), src...)
	resp, _, err := b.exchange(ctx, wire.SYMLINK, dst, payload)
	if err != nil {
		return -int(errors.EIO)
	}
	return errno(resp)
}

// Link implements LINK by issuing SYMLINK (§9 Open Question: the
// original's magma_client_link aliases hard link to symbolic link; this
// spec preserves the observed behavior rather than silently "fixing"
// it).
func (b *Binding) Link(ctx context.Context, oldpath, newpath string) int {
	return b.Symlink(ctx, newpath, oldpath)
}

// Unlink implements UNLINK.
func (b *Binding) Unlink(ctx context.Context, path string) int {
	return b.simpleVerb(ctx, wire.UNLINK, path)
}

// Rmdir implements RMDIR.
func (b *Binding) Rmdir(ctx context.Context, path string) int {
	return b.simpleVerb(ctx, wire.RMDIR, path)
}

// Rename implements RENAME.
func (b *Binding) Rename(ctx context.Context, oldpath, newpath string) int {
	payload := append([]byte(oldpath+"\x00"), newpath...)
	resp, _, err := b.exchange(ctx, wire.RENAME, oldpath, payload)
	if err != nil {
		return -int(errors.EIO)
	}
	return errno(resp)
}

// Chmod implements CHMOD.
func (b *Binding) Chmod(ctx context.Context, path string, mode uint32) int {
	return b.simpleVerb(ctx, wire.CHMOD, path)
}

// Chown implements CHOWN.
func (b *Binding) Chown(ctx context.Context, path string, uid, gid uint32) int {
	return b.simpleVerb(ctx, wire.CHOWN, path)
}

// Truncate implements TRUNCATE.
func (b *Binding) Truncate(ctx context.Context, path string, size uint64) int {
	return b.simpleVerb(ctx, wire.TRUNCATE, path)
}

// Utime implements UTIME.
func (b *Binding) Utime(ctx context.Context, path string) int {
	return b.simpleVerb(ctx, wire.UTIME, path)
}

// simpleVerb handles verbs whose request body is simply the path and
// whose reply carries no data, only a result code.
func (b *Binding) simpleVerb(ctx context.Context, op wire.Opcode, path string) int {
	resp, _, err := b.exchange(ctx, op, path, []byte(path))
	if err != nil {
		return -int(errors.EIO)
	}
	return errno(resp)
}

// Open implements OPEN: on success, the reply carries a commit_url; this
// computes its SHA-1, textualizes it, and inserts (path -> {commit_url,
// key}) into the open-file mapping (§4.5 "OPEN").
func (b *Binding) Open(ctx context.Context, path string) int {
	resp, payload, err := b.exchange(ctx, wire.OPEN, path, []byte(path))
	if err != nil {
		return -int(errors.EIO)
	}
	if resp.Failed() {
		return errno(resp)
	}
	commitURL := string(payload)
	b.open.put(path, openHandle{CommitURL: commitURL, Key: key.Hash(commitURL).Armour()})
	return 0
}

// Read implements READ: the response body carries up to res bytes
// copied verbatim into buf.
func (b *Binding) Read(ctx context.Context, path string, buf []byte, offset int64) int {
	req := make([]byte, 12)
	putI64(req, offset)
	putI32(req[8:], int32(len(buf)))
	resp, payload, err := b.exchange(ctx, wire.READ, path, req)
	if err != nil {
		return -int(errors.EIO)
	}
	if resp.Failed() {
		return errno(resp)
	}
	n := copy(buf, payload)
	return n
}

// Write implements WRITE: the request body carries the caller's bytes;
// reply res is bytes written.
func (b *Binding) Write(ctx context.Context, path string, data []byte, offset int64) int {
	req := make([]byte, 8+len(data))
	putI64(req, offset)
	copy(req[8:], data)
	resp, _, err := b.exchange(ctx, wire.WRITE, path, req)
	if err != nil {
		return -int(errors.EIO)
	}
	return errno(resp)
}

// Statfs implements STATFS.
func (b *Binding) Statfs(ctx context.Context, path string) int {
	return b.simpleVerb(ctx, wire.STATFS, path)
}

// Release implements RELEASE: accepted and returns success without
// network traffic (acknowledged stub, §4.5), evicting the path's
// open-file mapping entry.
func (b *Binding) Release(ctx context.Context, path string) int {
	b.open.evict(path)
	return 0
}

// Fsync implements FSYNC: accepted and returns success without network
// traffic (acknowledged stub, §4.5).
func (b *Binding) Fsync(ctx context.Context, path string) int {
	return 0
}

// Setxattr, Getxattr, Listxattr, Removexattr are accepted and return
// success/empty without network traffic: xattr ops are included in the
// surface per §6 but carried as stubs off by default, the way the
// teacher's surrounding ecosystem carries optional POSIX surface without
// every node implementation exercising it.
func (b *Binding) Setxattr(ctx context.Context, path, name string, data []byte) int { return 0 }
func (b *Binding) Getxattr(ctx context.Context, path, name string) ([]byte, int)    { return nil, 0 }
func (b *Binding) Listxattr(ctx context.Context, path string) ([]string, int)       { return nil, 0 }
func (b *Binding) Removexattr(ctx context.Context, path, name string) int          { return 0 }

func putI64(b []byte, v int64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func putI32(b []byte, v int32) {
	for i := 3; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
