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
	"errors"
	"sync"
	"time"

	"github.com/jacobsa/uringrt/internal/uringabi"
)

// kernelRing is the slice of Ring's behavior the Reactor depends on. It
// exists so reactor_test.go can exercise lifecycle transitions with
// fakeRing, without CAP_SYS_ADMIN or a real io_uring-capable kernel; the
// real implementation is ring_linux.go's *uringabi.Ring.
//
// WaitCQE takes a timeout and returns uringabi.ErrWaitTimeout if it
// elapses with nothing available, rather than blocking indefinitely:
// Run and Shutdown's drain loop both rely on getting control back
// periodically to re-check ctx, since a blocked kernel wait cannot
// otherwise be interrupted by context cancellation.
type kernelRing interface {
	PushSQE(sqe uringabi.SQE, userData uint64) error
	WaitCQE(timeout time.Duration) error
	DrainCQEs(fn func(uringabi.CQE)) int
	RegisterEventfd(fd int) error
	Fd() int
	Close() error
}

// fakeRing is an in-memory stand-in for the kernel ring: PushSQE appends
// to a pending queue, and a test (or WaitCQE, in its simplest form)
// supplies completions directly via Complete. It never talks to a real
// eventfd; tests that need that drive dispatchCompletions by hand.
type fakeRing struct {
	mu      sync.Mutex
	pending []pendingSQE
	cqes    []uringabi.CQE
	waitCh  chan struct{}
	closed  bool
}

type pendingSQE struct {
	sqe      uringabi.SQE
	userData uint64
}

func newFakeRing() *fakeRing {
	return &fakeRing{waitCh: make(chan struct{}, 1)}
}

func (f *fakeRing) PushSQE(sqe uringabi.SQE, userData uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fakeRing: closed")
	}
	f.pending = append(f.pending, pendingSQE{sqe: sqe, userData: userData})
	return nil
}

// Complete makes userData's submission produce res/flags as its CQE the
// next time the reactor drains. Tests call this directly instead of
// going through a real kernel.
func (f *fakeRing) Complete(userData uint64, res int32, flags uint32) {
	f.mu.Lock()
	f.cqes = append(f.cqes, uringabi.CQE{UserData: userData, Res: res, Flags: flags})
	f.mu.Unlock()
	select {
	case f.waitCh <- struct{}{}:
	default:
	}
}

func (f *fakeRing) WaitCQE(timeout time.Duration) error {
	select {
	case <-f.waitCh:
		return nil
	case <-time.After(timeout):
		return uringabi.ErrWaitTimeout
	}
}

func (f *fakeRing) DrainCQEs(fn func(uringabi.CQE)) int {
	f.mu.Lock()
	cqes := f.cqes
	f.cqes = nil
	f.mu.Unlock()

	for _, c := range cqes {
		fn(c)
	}
	return len(cqes)
}

func (f *fakeRing) RegisterEventfd(fd int) error { return nil }

func (f *fakeRing) Fd() int { return -1 }

func (f *fakeRing) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	select {
	case f.waitCh <- struct{}{}:
	default:
	}
	return nil
}
