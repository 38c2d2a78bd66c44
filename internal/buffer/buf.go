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

// Package buffer provides the byte-buffer type used to bridge a file's
// cooperative read/write interface with one-shot blocking-pool or uring
// completions.
package buffer

import "io"

// DefaultMaxBufSize is the per-op transfer cap used when a caller hasn't
// set one explicitly via SetMaxBufSize.
const DefaultMaxBufSize = 2 << 20 // 2 MiB

// Buf is a byte buffer with independent read and write cursors. A File's
// ThreadPool backend keeps exactly one Buf per handle: bytes already read
// from the kernel but not yet handed to a caller live between readPos and
// len(data); bytes a caller has handed to Write but not yet flushed to the
// kernel live the same way, since the two roles never overlap (the state
// machine never has a pending read and a pending write queued at once).
type Buf struct {
	data    []byte
	readPos int
}

// WithCapacity returns a Buf whose backing array can hold n bytes without
// reallocating.
func WithCapacity(n int) Buf {
	return Buf{data: make([]byte, 0, n)}
}

// IsEmpty reports whether every byte currently in the buffer has already
// been consumed by a caller (or, symmetrically, whether there is nothing
// queued to write).
func (b *Buf) IsEmpty() bool {
	return b.readPos == len(b.data)
}

// Len returns the number of unconsumed bytes.
func (b *Buf) Len() int {
	return len(b.data) - b.readPos
}

// CopyTo copies as many unconsumed bytes as fit into dst, advancing the
// read cursor, and returns the number of bytes copied.
func (b *Buf) CopyTo(dst []byte) int {
	n := copy(dst, b.data[b.readPos:])
	b.readPos += n
	if b.IsEmpty() {
		b.data = b.data[:0]
		b.readPos = 0
	}
	return n
}

// CopyFrom appends up to maxBufSize bytes of src into the buffer (which
// must be empty beforehand — callers queue a write only from Idle), and
// returns the number of bytes copied.
func (b *Buf) CopyFrom(src []byte, maxBufSize int) int {
	n := len(src)
	if n > maxBufSize {
		n = maxBufSize
	}
	b.data = append(b.data[:0], src[:n]...)
	b.readPos = 0
	return n
}

// CopyFromSlices is the vectored form of CopyFrom.
func (b *Buf) CopyFromSlices(srcs [][]byte, maxBufSize int) int {
	b.data = b.data[:0]
	b.readPos = 0
	remaining := maxBufSize
	for _, src := range srcs {
		if remaining <= 0 {
			break
		}
		n := len(src)
		if n > remaining {
			n = remaining
		}
		b.data = append(b.data, src[:n]...)
		remaining -= n
	}
	return len(b.data)
}

// ReadFrom fills the buffer by issuing a single Read against r, capped at
// maxBufSize bytes, mirroring the POSIX read(2) semantics the blocking
// worker relies on (partial reads are not retried here; the caller sees
// whatever the kernel handed back).
func (b *Buf) ReadFrom(r io.Reader, maxBufSize int) (int, error) {
	if cap(b.data) < maxBufSize {
		b.data = make([]byte, maxBufSize)
	} else {
		b.data = b.data[:maxBufSize]
	}
	b.readPos = 0

	n, err := r.Read(b.data)
	b.data = b.data[:n]
	return n, err
}

// WriteTo flushes the unconsumed portion of the buffer to w with a single
// Write call.
func (b *Buf) WriteTo(w io.Writer) error {
	_, err := w.Write(b.data[b.readPos:])
	b.data = b.data[:0]
	b.readPos = 0
	return err
}

// DiscardRead throws away any unconsumed read-ahead data, returning the
// number of bytes discarded. Callers use this to compute the seek delta
// needed to rewind the kernel's file cursor back to the position the
// caller has actually observed, e.g. before a Seek or a Write that
// follows a partially-consumed Read.
func (b *Buf) DiscardRead() int64 {
	n := int64(b.Len())
	b.data = b.data[:0]
	b.readPos = 0
	return n
}
