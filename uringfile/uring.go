// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package uringfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jacobsa/uringrt"
	"github.com/jacobsa/uringrt/internal/buffer"
	"github.com/jacobsa/uringrt/internal/uringabi"
	"github.com/jacobsa/uringrt/reactor"
)

// pendingOp is the sliver of *reactor.Op[O, T] every opcode's handle
// shares, letting uringFile hold "whichever op is currently in flight"
// in a single field regardless of its opcode's output type.
type pendingOp interface {
	Cancel()
}

// uringFile is the Uring variant's backend: reads, writes, fsyncs and
// Stat are submitted as SQEs and wait on the resulting Op. SetLen,
// Chmod, Clone and an end-relative Seek call ftruncate(2), fchmod(2),
// dup(2) and fstat(2) directly on the calling goroutine.
//
// GUARDED_BY(mu): everything below mu.
type uringFile struct {
	mu sync.Mutex

	rt   *reactor.Reactor
	fd   int
	name string // retained for Stat's FileInfo name, Clone and Release

	busy   bool
	idleCh chan struct{}
	op     pendingOp

	buf          buffer.Buf
	lastWriteErr error
	pos          int64
	maxBufSize   int
}

func openUring(ctx context.Context, rt *Runtime, path string, opts uringrt.FileOptions, maxBufSize int) (*File, error) {
	op, err := rt.reactor.SubmitOpenAt(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	fd, err := op.Wait(ctx)
	if err != nil {
		return nil, err
	}

	return &File{b: &uringFile{
		rt:         rt.reactor,
		fd:         fd,
		name:       path,
		maxBufSize: maxBufSize,
	}}, nil
}

// waitIdle mirrors fileInner.waitIdle: block until no op is in flight on
// this handle, or ctx is done.
func (u *uringFile) waitIdle(ctx context.Context) error {
	for {
		u.mu.Lock()
		if !u.busy {
			u.mu.Unlock()
			return nil
		}
		idleCh := u.idleCh
		u.mu.Unlock()

		select {
		case <-idleCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// enter marks the handle Busy for the duration of fn, which submits an
// Op and waits on it (Op.Wait already does the right thing on ctx
// cancellation: it cancels the Op and hands its buffers to the
// reactor's Cancelled slot, leaving a partially-applied write
// unreported). fn's error return is fn's own, not the wait's — enter
// only manages the Busy bookkeeping around it.
func (u *uringFile) enter(ctx context.Context, op pendingOp, fn func() error) error {
	u.mu.Lock()
	idleCh := make(chan struct{})
	u.busy = true
	u.idleCh = idleCh
	u.op = op
	u.mu.Unlock()

	err := fn()

	u.mu.Lock()
	u.busy = false
	u.idleCh = nil
	u.op = nil
	u.mu.Unlock()
	close(idleCh)

	return err
}

func (u *uringFile) takeWriteErr() error {
	err := u.lastWriteErr
	u.lastWriteErr = nil
	return err
}

func (u *uringFile) Read(ctx context.Context, p []byte) (int, error) {
	if err := u.waitIdle(ctx); err != nil {
		return 0, err
	}

	u.mu.Lock()
	if !u.buf.IsEmpty() || len(p) == 0 {
		n := u.buf.CopyTo(p)
		u.mu.Unlock()
		return n, nil
	}
	fd := u.fd
	pos := u.pos
	n := clampBufSize(len(p), u.maxBufSize)
	u.mu.Unlock()

	var (
		readN   int
		readErr error
	)

	raw := make([]byte, n)
	op, err := u.rt.SubmitRead(ctx, fd, raw, uint64(pos))
	if err != nil {
		return 0, err
	}

	err = u.enter(ctx, op, func() error {
		got, werr := op.Wait(ctx)
		readN, readErr = got, werr
		return werr
	})
	if err != nil {
		return 0, err
	}
	if readErr != nil {
		return 0, readErr
	}

	u.mu.Lock()
	u.buf.CopyFrom(raw[:readN], readN)
	u.pos = pos + int64(readN)
	got := u.buf.CopyTo(p)
	u.mu.Unlock()
	return got, nil
}

func (u *uringFile) Write(ctx context.Context, p []byte) (int, error) {
	return u.writeFrom(ctx, [][]byte{p})
}

func (u *uringFile) WriteVectored(ctx context.Context, bufs [][]byte) (int, error) {
	return u.writeFrom(ctx, bufs)
}

func (u *uringFile) writeFrom(ctx context.Context, bufs [][]byte) (int, error) {
	if err := u.waitIdle(ctx); err != nil {
		return 0, err
	}

	u.mu.Lock()
	if writeErr := u.takeWriteErr(); writeErr != nil {
		u.mu.Unlock()
		return 0, writeErr
	}

	discard := u.buf.DiscardRead()
	raw := concatBufs(bufs, u.maxBufSize)
	fd := u.fd
	writePos := u.pos - discard
	u.mu.Unlock()

	op, err := u.rt.SubmitWrite(ctx, fd, raw, uint64(writePos))
	if err != nil {
		return 0, err
	}

	var (
		wroteN   int
		writeErr error
	)
	err = u.enter(ctx, op, func() error {
		got, werr := op.Wait(ctx)
		wroteN, writeErr = got, werr
		return werr
	})

	u.mu.Lock()
	defer u.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if writeErr != nil {
		u.lastWriteErr = writeErr
		return 0, writeErr
	}
	u.pos = writePos + int64(wroteN)
	return wroteN, nil
}

func (u *uringFile) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.busy {
		return 0, uringrt.ErrOperationPending
	}

	discard := u.buf.DiscardRead()
	var newPos int64
	switch whence {
	case 0: // io.SeekStart
		newPos = offset
	case 1: // io.SeekCurrent
		newPos = u.pos - discard + offset
	case 2: // io.SeekEnd
		st := &unix.Stat_t{}
		if err := unix.Fstat(u.fd, st); err != nil {
			return 0, err
		}
		newPos = st.Size + offset
	default:
		return 0, os.ErrInvalid
	}
	u.pos = newPos
	return newPos, nil
}

func (u *uringFile) Flush(ctx context.Context) error {
	if err := u.waitIdle(ctx); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.takeWriteErr()
}

func (u *uringFile) Sync(ctx context.Context, dataOnly bool) error {
	if err := u.waitIdle(ctx); err != nil {
		return err
	}
	u.mu.Lock()
	fd := u.fd
	u.mu.Unlock()

	op, err := u.rt.SubmitFsync(ctx, fd, dataOnly)
	if err != nil {
		return err
	}

	var syncErr error
	err = u.enter(ctx, op, func() error {
		_, werr := op.Wait(ctx)
		syncErr = werr
		return werr
	})
	if err != nil {
		return err
	}
	return syncErr
}

func (u *uringFile) SetLen(ctx context.Context, size int64) error {
	if err := u.waitIdle(ctx); err != nil {
		return err
	}
	u.mu.Lock()
	fd := u.fd
	u.mu.Unlock()
	return unix.Ftruncate(fd, size)
}

func (u *uringFile) Stat(ctx context.Context) (os.FileInfo, error) {
	if err := u.waitIdle(ctx); err != nil {
		return nil, err
	}
	u.mu.Lock()
	fd := u.fd
	name := u.name
	u.mu.Unlock()

	op, err := u.rt.SubmitStatx(ctx, fd, "", unix.AT_EMPTY_PATH)
	if err != nil {
		return nil, err
	}

	var (
		stx      *uringabi.Statx
		statxErr error
	)
	err = u.enter(ctx, op, func() error {
		got, werr := op.Wait(ctx)
		stx, statxErr = got, werr
		return werr
	})
	if err != nil {
		return nil, err
	}
	if statxErr != nil {
		return nil, statxErr
	}

	return &statxFileInfo{name: filepath.Base(name), stx: stx}, nil
}

func (u *uringFile) Chmod(ctx context.Context, mode os.FileMode) error {
	if err := u.waitIdle(ctx); err != nil {
		return err
	}
	u.mu.Lock()
	fd := u.fd
	u.mu.Unlock()
	return unix.Fchmod(fd, uint32(mode.Perm()))
}

func (u *uringFile) Clone(ctx context.Context) (backend, error) {
	if err := u.waitIdle(ctx); err != nil {
		return nil, err
	}
	u.mu.Lock()
	fd := u.fd
	name := u.name
	maxBufSize := u.maxBufSize
	u.mu.Unlock()

	dupFd, err := unix.Dup(fd)
	if err != nil {
		return nil, err
	}
	return &uringFile{rt: u.rt, fd: dupFd, name: name, maxBufSize: maxBufSize}, nil
}

func (u *uringFile) SetMaxBufSize(n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.maxBufSize = n
}

// Release closes nothing: the caller is handed back an *os.File wrapping
// the same fd and becomes responsible for it. If an op is still in
// flight, it is left to complete against the reactor's Cancelled slot
// the way Cancel documents, and this handle simply stops tracking it.
func (u *uringFile) Release() (*os.File, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return os.NewFile(uintptr(u.fd), u.name), nil
}

// statxFileInfo adapts a uringabi.Statx into os.FileInfo, the way the
// ThreadPool variant's Stat already returns one via os.File.Stat.
type statxFileInfo struct {
	name string
	stx  *uringabi.Statx
}

func (s *statxFileInfo) Name() string       { return s.name }
func (s *statxFileInfo) Size() int64        { return int64(s.stx.Size) }
func (s *statxFileInfo) Mode() os.FileMode  { return os.FileMode(s.stx.Mode & 0o7777) }
func (s *statxFileInfo) ModTime() time.Time {
	return time.Unix(s.stx.Mtime.Sec, int64(s.stx.Mtime.Nsec))
}
func (s *statxFileInfo) IsDir() bool      { return s.stx.Mode&unix.S_IFMT == unix.S_IFDIR }
func (s *statxFileInfo) Sys() interface{} { return s.stx }

// concatBufs flattens bufs into a single slice, capped at maxBufSize
// bytes, the vectored-write analogue of buffer.Buf.CopyFromSlices but
// returning a plain []byte suitable for a Write SQE rather than
// buffering into a Buf.
func concatBufs(bufs [][]byte, maxBufSize int) []byte {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	if maxBufSize > 0 && total > maxBufSize {
		total = maxBufSize
	}

	raw := make([]byte, 0, total)
	for _, b := range bufs {
		remaining := total - len(raw)
		if remaining <= 0 {
			break
		}
		if len(b) > remaining {
			b = b[:remaining]
		}
		raw = append(raw, b...)
	}
	return raw
}
