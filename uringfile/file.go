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
	"os"
)

// backend is the capability either File variant (ThreadPool or Uring)
// implements. File itself holds only a backend value — a Kind tagged
// variant becomes, in Go, "which concrete type satisfies this
// interface" rather than an explicit enum field, since the two
// variants never need to be told apart once constructed.
type backend interface {
	Read(ctx context.Context, p []byte) (int, error)
	Write(ctx context.Context, p []byte) (int, error)
	WriteVectored(ctx context.Context, bufs [][]byte) (int, error)
	Seek(ctx context.Context, offset int64, whence int) (int64, error)
	Flush(ctx context.Context) error
	Sync(ctx context.Context, dataOnly bool) error
	SetLen(ctx context.Context, size int64) error
	Stat(ctx context.Context) (os.FileInfo, error)
	Chmod(ctx context.Context, mode os.FileMode) error
	Clone(ctx context.Context) (backend, error)
	SetMaxBufSize(n int)
	Release() (*os.File, error)
}

// File is an asynchronous file handle, backed either by a bounded
// goroutine pool or by the io_uring reactor depending on how its Runtime
// was configured. Every blocking method takes a context.Context first,
// in place of an implicit poll-loop waker registration: cancelling ctx
// is this module's rendering of "the executor dropped the future".
//
// Concurrent calls to the same *File must be serialized by the caller,
// with one exception: Seek may be called while a Read or Write is still
// in flight, and will fail fast with uringrt.ErrOperationPending rather
// than block or queue (testable scenario S6).
type File struct {
	b backend
}

// Read implements the POSIX read(2) semantics of the underlying fd:
// partial reads are possible, and n == 0 with err == nil means EOF only
// when p is non-empty.
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	return f.b.Read(ctx, p)
}

// Write implements the POSIX write(2) semantics of the underlying fd. A
// write error observed on this call, or latched from an earlier
// operation, is surfaced here exactly once.
func (f *File) Write(ctx context.Context, p []byte) (int, error) {
	return f.b.Write(ctx, p)
}

// WriteVectored writes the concatenation of bufs in a single kernel
// operation where the backend supports it.
func (f *File) WriteVectored(ctx context.Context, bufs [][]byte) (int, error) {
	return f.b.WriteVectored(ctx, bufs)
}

// Seek repositions the file, with the same arithmetic as lseek(2). It
// returns uringrt.ErrOperationPending, without blocking, if a Read or
// Write on this handle has not yet completed.
func (f *File) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	return f.b.Seek(ctx, offset, whence)
}

// Flush drives any buffered write to completion and surfaces the
// latched write error, if any, exactly once.
func (f *File) Flush(ctx context.Context) error {
	return f.b.Flush(ctx)
}

// Sync commits both file content and metadata to stable storage
// (fsync(2)).
func (f *File) Sync(ctx context.Context) error {
	return f.b.Sync(ctx, false)
}

// SyncData commits file content, but not necessarily metadata, to stable
// storage (fdatasync(2)).
func (f *File) SyncData(ctx context.Context) error {
	return f.b.Sync(ctx, true)
}

// SetLen truncates or extends the file to size bytes (ftruncate(2)).
func (f *File) SetLen(ctx context.Context, size int64) error {
	return f.b.SetLen(ctx, size)
}

// Stat returns the file's metadata. With io_uring enabled this is
// performed via Statx; otherwise via the blocking pool's fstat(2).
func (f *File) Stat(ctx context.Context) (os.FileInfo, error) {
	return f.b.Stat(ctx)
}

// Chmod changes the file's permission bits (fchmod(2)).
func (f *File) Chmod(ctx context.Context, mode os.FileMode) error {
	return f.b.Chmod(ctx, mode)
}

// Clone returns a new handle over a dup(2) of the same open file
// description, with independent internal buffering state. ThreadPool
// handles share the kernel file offset. Uring handles read and write at
// a position each handle tracks itself, and the clone's starts at 0; the
// two do not share a position.
func (f *File) Clone(ctx context.Context) (*File, error) {
	b2, err := f.b.Clone(ctx)
	if err != nil {
		return nil, err
	}
	return &File{b: b2}, nil
}

// SetMaxBufSize caps the number of bytes any single kernel read or write
// performed on behalf of this handle may transfer.
func (f *File) SetMaxBufSize(n int) {
	f.b.SetMaxBufSize(n)
}

// Release returns the underlying *os.File and detaches it from this
// handle; f must not be used again afterward. Release neither waits for
// nor cancels anything: a ThreadPool worker left running by an abandoned
// call finishes against the returned file, and a Uring Op left by an
// abandoned call was already cancelled by its Wait, its buffers held in
// the reactor's Cancelled slot until the kernel completes it.
func (f *File) Release() (*os.File, error) {
	return f.b.Release()
}
