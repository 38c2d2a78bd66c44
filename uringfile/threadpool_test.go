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
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobsa/uringrt"
)

var errENOSPC = errors.New("write: no space left on device")

// newTestRuntime returns a Runtime with io_uring disabled, so every File
// it opens uses the ThreadPool variant — portable to any platform this
// test suite runs on, unlike the real ring.
func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := uringrt.NewReactorConfig(uringrt.WithURingDisabled())
	rt, err := NewRuntime(cfg, 8)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, rt.Shutdown(context.Background()))
	})
	return rt
}

// TestWriteThenReadRoundTrip is testable scenario S2: create a temp
// file, write 13 bytes, flush, seek to start, read to end, and expect
// the same bytes back.
func TestWriteThenReadRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "roundtrip")
	f, err := rt.Create(ctx, path)
	require.NoError(t, err)

	want := []byte("hello, world!")
	n, err := f.Write(ctx, want)
	require.NoError(t, err)
	require.Equal(t, len(want), n)
	require.NoError(t, f.Flush(ctx))

	_, err = f.Seek(ctx, 0, io.SeekStart)
	require.NoError(t, err)

	got := make([]byte, len(want))
	total := 0
	for total < len(want) {
		n, err := f.Read(ctx, got[total:])
		total += n
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		if n == 0 {
			break
		}
	}
	require.Equal(t, want, got[:total])
}

// TestSeekWhileBusyFailsFast is testable scenario S6: Seek on a File
// whose previous write has not yet completed returns
// uringrt.ErrOperationPending without blocking.
func TestSeekWhileBusyFailsFast(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "busy")
	f, err := rt.Create(ctx, path)
	require.NoError(t, err)

	in := f.b.(*fileInner)
	in.mu.Lock()
	in.state = tpBusy
	in.resultDone = make(chan struct{})
	in.mu.Unlock()

	_, err = f.Seek(ctx, 0, io.SeekStart)
	require.ErrorIs(t, err, uringrt.ErrOperationPending)
	require.Equal(t, "other file operation is pending, call poll_complete before start_seek", err.Error())
}

// TestWriteErrorLatchesOnce is testable scenario S5's latching contract,
// exercised directly against fileInner rather than a real full tmpfs:
// once a write error is recorded, the very next write/flush surfaces it
// exactly once, and the write after that is free to try again.
func TestWriteErrorLatchesOnce(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "latch")
	f, err := rt.Create(ctx, path)
	require.NoError(t, err)

	in := f.b.(*fileInner)
	in.mu.Lock()
	in.lastWriteErr = errENOSPC
	in.mu.Unlock()

	_, err = f.Write(ctx, []byte("x"))
	require.ErrorIs(t, err, errENOSPC)

	// The error was consumed; a further write should proceed normally.
	n, err := f.Write(ctx, []byte("y"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
