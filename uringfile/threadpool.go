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

package uringfile

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/jacobsa/uringrt"
	"github.com/jacobsa/uringrt/internal/buffer"
)

// tpState is the ThreadPool variant's Idle/Busy machine.
type tpState int

const (
	tpIdle tpState = iota
	tpBusy
)

// fileInner is the ThreadPool variant's backend: std is shared between
// whichever goroutine currently holds this handle and the single
// blocking worker that may be in flight on its behalf, per invariant F1.
//
// GUARDED_BY(mu): everything below mu.
type fileInner struct {
	mu sync.Mutex

	std *os.File

	state      tpState
	resultDone chan struct{} // closed by the finisher when a worker completes
	pending    poolResult
	pendingAny any

	buf          buffer.Buf
	lastWriteErr error
	pos          int64
	maxBufSize   int

	pool *workerPool
}

func openThreadPool(ctx context.Context, rt *Runtime, path string, opts uringrt.FileOptions, maxBufSize int) (*File, error) {
	flags := osOpenFlags(opts)

	type openResult struct {
		f   *os.File
		err error
	}
	resCh := make(chan openResult, 1)
	ch, err := rt.pool.dispatch(func() poolResult {
		f, oerr := os.OpenFile(path, flags, os.FileMode(opts.Mode))
		resCh <- openResult{f: f, err: oerr}
		return poolResult{err: oerr}
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ch:
		r := <-resCh
		if r.err != nil {
			return nil, r.err
		}
		return &File{b: &fileInner{std: r.f, maxBufSize: maxBufSize, pool: rt.pool}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func osOpenFlags(opts uringrt.FileOptions) int {
	var flags int
	switch {
	case opts.Read && (opts.Write || opts.Append):
		flags = os.O_RDWR
	case opts.Write || opts.Append:
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}
	if opts.Append {
		flags |= os.O_APPEND
	}
	if opts.Truncate {
		flags |= os.O_TRUNC
	}
	if opts.CreateNew {
		flags |= os.O_CREATE | os.O_EXCL
	} else if opts.Create {
		flags |= os.O_CREATE
	}
	// O_RDONLY|O_WRONLY|O_RDWR together cover the O_ACCMODE bits.
	return flags | (int(opts.CustomFlags) &^ (os.O_RDONLY | os.O_WRONLY | os.O_RDWR))
}

// waitIdle blocks until no worker is in flight, or ctx is done. Callers
// other than Seek use this to serialize against a concurrent Read/Write/
// Flush on the same handle, rather than failing fast the way Seek does.
func (in *fileInner) waitIdle(ctx context.Context) error {
	for {
		in.mu.Lock()
		if in.state == tpIdle {
			in.mu.Unlock()
			return nil
		}
		doneCh := in.resultDone
		in.mu.Unlock()

		select {
		case <-doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runBlocking is the shared Busy-dispatch machinery every ThreadPool
// method built on a single blocking syscall uses: wait for any existing
// worker, mark Busy, dispatch fn on the pool, and either wait for it
// (returning its error) or, if ctx is cancelled first, return
// immediately and let the finisher settle the state transition on its
// own — the ThreadPool analogue of "Drop detaches the worker".
func (in *fileInner) runBlocking(ctx context.Context, fn func() poolResult) error {
	if err := in.waitIdle(ctx); err != nil {
		return err
	}

	in.mu.Lock()
	doneCh := make(chan struct{})
	in.state = tpBusy
	in.resultDone = doneCh
	in.mu.Unlock()

	ch, err := in.pool.dispatch(fn)
	if err != nil {
		in.mu.Lock()
		in.state = tpIdle
		in.resultDone = nil
		in.mu.Unlock()
		return err
	}

	go func() {
		res := <-ch
		in.mu.Lock()
		in.state = tpIdle
		in.resultDone = nil
		in.pending = res
		in.mu.Unlock()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		in.mu.Lock()
		res := in.pending
		in.mu.Unlock()
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// takeWriteErr returns and clears the latched write error (invariant F2:
// surfaced on the next write/flush, then forgotten). Caller must hold
// mu.
func (in *fileInner) takeWriteErr() error {
	err := in.lastWriteErr
	in.lastWriteErr = nil
	return err
}

func (in *fileInner) Read(ctx context.Context, p []byte) (int, error) {
	if err := in.waitIdle(ctx); err != nil {
		return 0, err
	}

	in.mu.Lock()
	if !in.buf.IsEmpty() || len(p) == 0 {
		n := in.buf.CopyTo(p)
		in.mu.Unlock()
		return n, nil
	}
	std := in.std
	pos := in.pos
	maxBufSize := in.maxBufSize
	in.mu.Unlock()

	err := in.runBlocking(ctx, func() poolResult {
		n, rerr := in.buf.ReadFrom(std, clampBufSize(len(p), maxBufSize))
		if rerr == io.EOF {
			rerr = nil
		}
		return poolResult{n: n, pos: pos + int64(n), err: rerr}
	})
	if err != nil {
		return 0, err
	}

	in.mu.Lock()
	n := in.buf.CopyTo(p)
	in.pos = in.pending.pos
	in.mu.Unlock()
	return n, nil
}

func (in *fileInner) Write(ctx context.Context, p []byte) (int, error) {
	return in.writeFrom(ctx, [][]byte{p})
}

func (in *fileInner) WriteVectored(ctx context.Context, bufs [][]byte) (int, error) {
	return in.writeFrom(ctx, bufs)
}

func (in *fileInner) writeFrom(ctx context.Context, bufs [][]byte) (int, error) {
	if err := in.waitIdle(ctx); err != nil {
		return 0, err
	}

	in.mu.Lock()
	if writeErr := in.takeWriteErr(); writeErr != nil {
		in.mu.Unlock()
		return 0, writeErr
	}

	// A seek delta is owed if the caller never consumed read-ahead data;
	// rewind the kernel cursor to where the caller has actually observed
	// it before writing via Buf.DiscardRead, i.e. Seek(Current, -discard).
	discard := in.buf.DiscardRead()
	maxBufSize := in.maxBufSize
	n := in.buf.CopyFromSlices(bufs, maxBufSize)
	std := in.std
	pos := in.pos
	in.mu.Unlock()

	err := in.runBlocking(ctx, func() poolResult {
		writePos := pos - discard
		if discard != 0 {
			if _, serr := std.Seek(writePos, io.SeekStart); serr != nil {
				return poolResult{err: serr}
			}
		}
		if werr := in.buf.WriteTo(std); werr != nil {
			return poolResult{err: werr}
		}
		return poolResult{n: n, pos: writePos + int64(n)}
	})

	in.mu.Lock()
	defer in.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if in.pending.err != nil {
		in.lastWriteErr = in.pending.err
		return 0, in.pending.err
	}
	in.pos = in.pending.pos
	return in.pending.n, nil
}

// Seek does not block or queue behind an in-flight operation: it fails
// fast with uringrt.ErrOperationPending instead (testable scenario S6).
func (in *fileInner) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.state == tpBusy {
		return 0, uringrt.ErrOperationPending
	}

	// Read-ahead the caller never consumed puts the kernel cursor ahead of
	// the caller's position; only a Current-relative seek depends on it.
	discard := in.buf.DiscardRead()
	if whence == io.SeekCurrent {
		offset -= discard
	}
	newPos, err := in.std.Seek(offset, whence)
	if err != nil {
		return 0, err
	}
	in.pos = newPos
	return newPos, nil
}

func (in *fileInner) Flush(ctx context.Context) error {
	if err := in.waitIdle(ctx); err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.takeWriteErr()
}

func (in *fileInner) Sync(ctx context.Context, dataOnly bool) error {
	std := in.std
	return in.runBlocking(ctx, func() poolResult {
		if dataOnly {
			return poolResult{err: fdatasync(std)}
		}
		return poolResult{err: std.Sync()}
	})
}

func (in *fileInner) SetLen(ctx context.Context, size int64) error {
	std := in.std
	return in.runBlocking(ctx, func() poolResult {
		return poolResult{err: std.Truncate(size)}
	})
}

func (in *fileInner) Stat(ctx context.Context) (os.FileInfo, error) {
	std := in.std
	err := in.runBlocking(ctx, func() poolResult {
		fi, serr := std.Stat()
		in.mu.Lock()
		in.pendingAny = fi
		in.mu.Unlock()
		return poolResult{err: serr}
	})
	if err != nil {
		return nil, err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.pending.err != nil {
		return nil, in.pending.err
	}
	fi, _ := in.pendingAny.(os.FileInfo)
	return fi, nil
}

func (in *fileInner) Chmod(ctx context.Context, mode os.FileMode) error {
	std := in.std
	return in.runBlocking(ctx, func() poolResult {
		return poolResult{err: std.Chmod(mode)}
	})
}

func (in *fileInner) Clone(ctx context.Context) (backend, error) {
	if err := in.waitIdle(ctx); err != nil {
		return nil, err
	}
	dup, err := dupFile(in.std)
	if err != nil {
		return nil, err
	}
	return &fileInner{
		std:        dup,
		maxBufSize: in.maxBufSize,
		pool:       in.pool,
	}, nil
}

func (in *fileInner) SetMaxBufSize(n int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.maxBufSize = n
}

func (in *fileInner) Release() (*os.File, error) {
	// If a worker is still in flight, it is left to complete silently
	// against std (which it already holds a reference to); we simply stop
	// tracking it here.
	return in.std, nil
}

func clampBufSize(want, maxBufSize int) int {
	if maxBufSize <= 0 {
		maxBufSize = buffer.DefaultMaxBufSize
	}
	if want <= 0 || want > maxBufSize {
		return maxBufSize
	}
	return want
}
