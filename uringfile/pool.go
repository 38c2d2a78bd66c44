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
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jacobsa/uringrt"
)

// poolResult is what a single blocking-worker job reports back over its
// result channel: a byte count (for read/write), a new cursor position
// (for seek), and an error. Not every field is meaningful for every job
// kind; callers read only the fields their job produces.
type poolResult struct {
	n   int
	pos int64
	err error
}

// workerPool dispatches blocking filesystem syscalls off the calling
// goroutine, bounded to maxConcurrency simultaneous workers and wired
// into an errgroup.Group so Shutdown can join every outstanding worker
// and surface the first error any of them returned — the same
// first-error-wins propagation errgroup gives any other caller.
//
// Individual File handles additionally enforce invariant F1 (at most one
// worker per file) themselves; the pool's own bound is a process-wide
// cap on total blocking-syscall concurrency.
type workerPool struct {
	g   *errgroup.Group
	sem chan struct{}

	mu     sync.Mutex
	closed bool
}

func newWorkerPool(maxConcurrency int) *workerPool {
	if maxConcurrency <= 0 {
		maxConcurrency = 64
	}
	return &workerPool{
		g:   new(errgroup.Group),
		sem: make(chan struct{}, maxConcurrency),
	}
}

// dispatch runs fn on a pool goroutine and returns a channel that
// receives its single poolResult. It returns uringrt.ErrShuttingDown
// instead of dispatching if Shutdown has already been called.
func (p *workerPool) dispatch(fn func() poolResult) (<-chan poolResult, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, uringrt.ErrShuttingDown
	}
	p.mu.Unlock()

	p.sem <- struct{}{}

	ch := make(chan poolResult, 1)
	p.g.Go(func() (err error) {
		defer func() { <-p.sem }()
		defer func() {
			if r := recover(); r != nil {
				res := poolResult{err: uringrt.ErrBackgroundTaskFailed}
				ch <- res
				err = res.err
			}
		}()

		res := fn()
		ch <- res
		return res.err
	})

	return ch, nil
}

// shutdown stops accepting new work and blocks until every dispatched
// job has returned, surfacing the first job error (if any) the way
// errgroup.Wait does for any other caller of it.
func (p *workerPool) shutdown() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.g.Wait()
}
