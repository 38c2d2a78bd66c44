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
)

// TestReadOpCompletesWithBytesTransferred exercises the happy path: a
// Read Op submitted against a fake ring, completed by a direct Complete
// call standing in for the kernel, and consumed via Wait.
func TestReadOpCompletesWithBytesTransferred(t *testing.T) {
	r, fr := newTestReactor()

	buf := make([]byte, 4096)
	op, err := r.SubmitRead(context.Background(), 3, buf, 0)
	require.NoError(t, err)

	fr.Complete(uint64(op.key), 4096, 0)
	r.dispatchCompletions()

	n, err := op.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4096, n)
	require.Equal(t, 0, r.Stats().OpsInFlight)
}

// TestReadOpCompletionErrorDecodesErrno checks that a negative CQE
// result is surfaced as an errno-derived error by the completion
// handler, not swallowed.
func TestReadOpCompletionErrorDecodesErrno(t *testing.T) {
	r, fr := newTestReactor()

	buf := make([]byte, 16)
	op, err := r.SubmitRead(context.Background(), 3, buf, 0)
	require.NoError(t, err)

	const enospc = 28 // syscall.ENOSPC
	fr.Complete(uint64(op.key), -int32(enospc), 0)
	r.dispatchCompletions()

	_, err = op.Wait(context.Background())
	require.Error(t, err)
}

// TestOpCancelRetainsBufferUntilLateCompletion is invariant 2 ("no
// use-after-free on cancel") and scenario S3: a future dropped mid-
// flight must not free the slot (or the buffer referenced by it) until
// the kernel's completion actually arrives.
func TestOpCancelRetainsBufferUntilLateCompletion(t *testing.T) {
	r, fr := newTestReactor()

	buf := make([]byte, 1<<20)
	op, err := r.SubmitRead(context.Background(), 3, buf, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = op.Wait(ctx)
	require.Error(t, err)

	// The slot must still be occupied: the kernel has not completed yet.
	require.Equal(t, 1, r.Stats().OpsInFlight)
	require.Equal(t, 1, r.Stats().Cancelled)

	// Now the kernel "finishes" the read. The slot must be freed and the
	// buffer's liveness requirement lifted.
	fr.Complete(uint64(op.key), 512, 0)
	r.dispatchCompletions()

	require.Eventually(t, func() bool {
		return r.Stats().OpsInFlight == 0
	}, time.Second, time.Millisecond)
}

// TestOpWaitPanicsOnSecondCall documents that Wait may only be called
// once; this is a programmer-error contract, not a runtime condition.
func TestOpWaitPanicsOnSecondCall(t *testing.T) {
	r, fr := newTestReactor()
	buf := make([]byte, 4)
	op, err := r.SubmitRead(context.Background(), 3, buf, 0)
	require.NoError(t, err)

	fr.Complete(uint64(op.key), 4, 0)
	r.dispatchCompletions()
	_, err = op.Wait(context.Background())
	require.NoError(t, err)

	require.Panics(t, func() {
		op.Wait(context.Background())
	})
}

func TestWriteOpRoundTrip(t *testing.T) {
	r, fr := newTestReactor()

	buf := []byte("hello, world!")
	op, err := r.SubmitWrite(context.Background(), 3, buf, 0)
	require.NoError(t, err)

	fr.Complete(uint64(op.key), int32(len(buf)), 0)
	r.dispatchCompletions()

	n, err := op.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
}
