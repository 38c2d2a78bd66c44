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

// This file exercises the Uring variant of File end-to-end against a
// real io_uring instance. It requires a kernel with io_uring support
// (5.1+) and, depending on kernel lockdown configuration, appropriate
// privileges; it is skipped automatically when the ring cannot be
// opened so the rest of the suite stays portable.
package uringfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobsa/uringrt"
)

func newURingTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := NewRuntime(uringrt.NewReactorConfig(), 64)
	if err != nil {
		t.Skipf("io_uring unavailable in this environment: %v", err)
	}
	t.Cleanup(func() {
		require.NoError(t, rt.Shutdown(context.Background()))
	})
	return rt
}

// TestURingReadDevZero is testable scenario S1: open /dev/zero
// read-only, read 4096 bytes into a zero-initialised buffer, and expect
// every byte to remain zero.
func TestURingReadDevZero(t *testing.T) {
	rt := newURingTestRuntime(t)
	ctx := context.Background()

	f, err := rt.Open(ctx, "/dev/zero", uringrt.NewFileOptions(uringrt.WithRead()))
	require.NoError(t, err)

	buf := make([]byte, 4096)
	total := 0
	for total < len(buf) {
		n, err := f.Read(ctx, buf[total:])
		require.NoError(t, err)
		require.Greater(t, n, 0)
		total += n
	}

	for i, b := range buf {
		require.Equalf(t, byte(0), b, "byte %d was not zero", i)
	}
}

// TestURingWriteThenRead is testable scenario S2, driven through the
// Uring variant instead of the ThreadPool one.
func TestURingWriteThenRead(t *testing.T) {
	rt := newURingTestRuntime(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "uring-roundtrip")
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
		if errors.Is(err, io.EOF) || n == 0 {
			break
		}
		require.NoError(t, err)
	}
	require.Equal(t, want, got[:total])
}

// TestURingManyConcurrentOpens is testable scenario S4: 1,024
// concurrent open -> read -> verify tasks against a single
// pre-written 64-byte file, none of which should observe an error.
func TestURingManyConcurrentOpens(t *testing.T) {
	rt := newURingTestRuntime(t)
	ctx := context.Background()

	content := make([]byte, 64)
	for i := range content {
		content[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "shared")
	setup, err := rt.Create(ctx, path)
	require.NoError(t, err)
	_, err = setup.Write(ctx, content)
	require.NoError(t, err)
	require.NoError(t, setup.Flush(ctx))
	_, err = setup.Release()
	require.NoError(t, err)

	const tasks = 1024
	var wg sync.WaitGroup
	errs := make(chan error, tasks)
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := rt.Open(ctx, path, uringrt.NewFileOptions(uringrt.WithRead()))
			if err != nil {
				errs <- fmt.Errorf("open: %w", err)
				return
			}
			got := make([]byte, len(content))
			total := 0
			for total < len(got) {
				n, err := f.Read(ctx, got[total:])
				total += n
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					errs <- fmt.Errorf("read: %w", err)
					return
				}
				if n == 0 {
					break
				}
			}
			for i, b := range got[:total] {
				if b != content[i] {
					errs <- fmt.Errorf("byte %d mismatch: got %d want %d", i, b, content[i])
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
