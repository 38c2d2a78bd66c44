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
	"fmt"
	"sync/atomic"
	"syscall"

	"github.com/jacobsa/reqtrace"

	"github.com/jacobsa/uringrt"
	"github.com/jacobsa/uringrt/internal/slab"
	"github.com/jacobsa/uringrt/internal/uringabi"
)

// CqeResult is the normalized outcome of a single CQE: Res holds the raw
// non-negative transfer count or return value on success, and Err holds
// the errno-derived error for a negative result.
type CqeResult struct {
	Res   uint32
	Err   error
	Flags uint32
}

// Completable is the capability a per-opcode completion handler
// implements: given the normalized CQE, produce the typed output O the
// caller of Op.Wait actually wants. Preferred over one tagged variant
// per opcode because it keeps the Reactor closed over concrete opcodes —
// every opcode's interpretation lives with its own handler type (see
// ops_read.go, ops_write.go, etc.), not in a central switch.
type Completable[O any] interface {
	Complete(CqeResult) (O, error)
}

// opState tracks where an Op sits relative to submission, independent of
// the underlying slab lifecycle (which the Reactor owns under its own
// lock).
type opState int32

const (
	statePolled opState = iota
	stateComplete
)

// Op is a generic operation handle: submitting it pushes an SQE to the
// Reactor immediately (Go has no equivalent of "don't do the syscall
// until first polled"), and Wait blocks until the kernel's completion
// arrives, is cancelled via ctx, or was already observed.
//
// Op is this module's rendering of a future-style "OpFuture<T>": Go has
// no poll-based Future, so the Initialize/Polled states a poll-based
// design would drive from the future side collapse into "submitted in
// the constructor"; only Wait/Cancel remain as caller-visible entry
// points.
//
// Two type parameters stand in for a single "Op<T>": Go generics have
// no associated types, so the completion handler's output type O must
// be named explicitly alongside the handler type T.
//
// A caller that abandons Wait by letting ctx expire without waiting for
// it to return MUST NOT reuse any buffer referenced by the submitted SQE
// until Cancel (called internally by Wait on ctx.Done()) has run — and
// even then, ownership of that buffer has passed to the reactor's
// Cancelled slot, not back to the caller.
type Op[O any, T Completable[O]] struct {
	reactor *Reactor
	key     int
	data    T
	state   int32 // opState, CAS-guarded
	done    chan struct{}
	report  reqtrace.ReportFunc
}

// newOp submits sqe against r immediately, associating it with data so
// that data.Complete can interpret the eventual CQE. ctx is used only to
// start a tracing span (see reqtrace), not to gate submission: the
// kernel does not accept "cancelled before it starts."
func newOp[O any, T Completable[O]](ctx context.Context, r *Reactor, opName string, sqe uringabi.SQE, data T) (*Op[O, T], error) {
	_, report := reqtrace.StartSpan(ctx, opName)

	done := make(chan struct{})
	key, err := r.registerOp(sqe, done, func(err error) { report(err) })
	if err != nil {
		report(err)
		return nil, err
	}

	return &Op[O, T]{
		reactor: r,
		key:     key,
		data:    data,
		state:   int32(statePolled),
		done:    done,
		report:  report,
	}, nil
}

// Wait blocks until the operation completes, is abandoned via ctx, or
// panics if called a second time after already returning once — matching
// this module's teacher's treatment of lifecycle misuse as a programmer
// error, not a runtime condition.
func (op *Op[O, T]) Wait(ctx context.Context) (O, error) {
	var zero O

	if atomic.LoadInt32(&op.state) == int32(stateComplete) {
		panic("reactor: Op.Wait called after completion was already consumed")
	}

	select {
	case <-op.done:
		return op.consume()

	case <-ctx.Done():
		op.Cancel()
		return zero, ctx.Err()
	}
}

func (op *Op[O, T]) consume() (O, error) {
	op.reactor.mu.Lock()
	lc, ok := op.reactor.ops.Get(op.key)
	if !ok {
		op.reactor.mu.Unlock()
		panic(fmt.Sprintf("reactor: op 0x%08x: slot vanished before Wait could consume it", op.key))
	}
	if lc.State == slab.Cancelled {
		// Shutdown cancelled the slot and woke us. The slot stays in the
		// slab, holding data, until dispatchCompletions sees the kernel's
		// completion for it.
		lc.Erased = op.data
		op.reactor.mu.Unlock()
		atomic.StoreInt32(&op.state, int32(stateComplete))
		var zero O
		return zero, uringrt.ErrShuttingDown
	}
	cqe := lc.CQE
	op.reactor.ops.Remove(op.key)
	op.reactor.mu.Unlock()

	atomic.StoreInt32(&op.state, int32(stateComplete))

	result := decodeCqe(cqe)
	out, err := op.data.Complete(result)
	op.report(err)
	return out, err
}

// Cancel abandons the operation without waiting for its result. If the
// op has already completed, Cancel is a no-op beyond marking the handle
// consumed. Otherwise it hands data to the Reactor's Cancelled slot so
// that any buffers the kernel may still write into stay alive until the
// real completion arrives; a partially-applied write from a cancelled
// op is therefore left unreported to the caller.
func (op *Op[O, T]) Cancel() {
	if !atomic.CompareAndSwapInt32(&op.state, int32(statePolled), int32(stateComplete)) {
		return
	}
	op.reactor.cancelOp(op.key, op.data)
}

// decodeCqe normalizes a raw CQE's Res into either a non-negative
// transfer count or an errno-derived error, per the kernel's "negative
// result means -errno" convention.
func decodeCqe(cqe uringabi.CQE) CqeResult {
	if cqe.Res < 0 {
		return CqeResult{Err: syscall.Errno(-cqe.Res), Flags: cqe.Flags}
	}
	return CqeResult{Res: uint32(cqe.Res), Flags: cqe.Flags}
}
