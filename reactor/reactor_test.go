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

package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacobsa/uringrt"
)

// TestSubmitAfterShutdownFailsFast exercises the "shutdown errors: new
// ops fail fast" propagation policy.
func TestSubmitAfterShutdownFailsFast(t *testing.T) {
	r, _ := newTestReactor()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	buf := make([]byte, 4)
	_, err := r.SubmitRead(context.Background(), 3, buf, 0)
	require.ErrorIs(t, err, uringrt.ErrShuttingDown)
}

// TestShutdownDrainsOutstandingOps is testable property 6 ("reactor
// shutdown drain"): after Shutdown returns, the slab must be empty —
// every outstanding op has been cancelled and its (simulated) kernel
// completion reclaimed.
func TestShutdownDrainsOutstandingOps(t *testing.T) {
	r, fr := newTestReactor()

	const n = 8
	ops := make([]*Op[int, *readOp], n)
	for i := 0; i < n; i++ {
		buf := make([]byte, 16)
		op, err := r.SubmitRead(context.Background(), 3, buf, 0)
		require.NoError(t, err)
		ops[i] = op
	}
	require.Equal(t, n, r.Stats().OpsInFlight)

	done := make(chan error, 1)
	go func() {
		done <- r.Shutdown(context.Background())
	}()

	// Shutdown cancels every outstanding slot, then blocks until each has
	// seen its kernel completion. Simulate the kernel finally responding
	// to each cancelled op.
	require.Eventually(t, func() bool {
		return r.Stats().Cancelled == n
	}, time.Second, time.Millisecond)

	for _, op := range ops {
		fr.Complete(uint64(op.key), -125 /* ECANCELED */, 0) // arbitrary terminal errno
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return after all ops completed")
	}

	require.Equal(t, 0, r.Stats().OpsInFlight)
}
