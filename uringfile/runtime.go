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

// Package uringfile implements the dual-mode asynchronous file object:
// File dispatches its reads, writes, and seeks against either a bounded
// goroutine pool (the ThreadPool variant) or the io_uring reactor (the
// Uring variant), behind one shared API.
package uringfile

import (
	"context"
	"fmt"

	"github.com/jacobsa/uringrt"
	"github.com/jacobsa/uringrt/internal/buffer"
	"github.com/jacobsa/uringrt/reactor"
)

// Runtime owns the resources a set of Files share: the io_uring reactor
// (absent if the config disables it) and the blocking worker pool. This
// module implements one Reactor per Runtime; a caller wanting sharding
// across reactors simply constructs more than one Runtime.
type Runtime struct {
	cfg     uringrt.ReactorConfig
	reactor *reactor.Reactor // nil when cfg.EnableURing is false
	pool    *workerPool

	runCancel context.CancelFunc
	runDone   chan struct{}
}

// NewRuntime constructs a Runtime. If cfg.EnableURing is true, it also
// opens a real io_uring instance sized per cfg.RingSize and starts a
// background goroutine driving the reactor's completion loop (the
// analogue of handing Run to an executor); on a platform or kernel
// without io_uring support, construct the Runtime with
// uringrt.WithURingDisabled() instead so only the ThreadPool variant is
// used.
func NewRuntime(cfg uringrt.ReactorConfig, maxBlockingConcurrency int) (*Runtime, error) {
	rt := &Runtime{
		cfg:  cfg,
		pool: newWorkerPool(maxBlockingConcurrency),
	}

	if cfg.EnableURing {
		r, err := reactor.NewReactor(cfg)
		if err != nil {
			return nil, fmt.Errorf("uringfile: %w", err)
		}
		rt.reactor = r

		runCtx, cancel := context.WithCancel(context.Background())
		rt.runCancel = cancel
		rt.runDone = make(chan struct{})
		go func() {
			defer close(rt.runDone)
			if err := r.Run(runCtx); err != nil && runCtx.Err() == nil {
				uringrt.GetLogger().Printf("uringfile: reactor run loop exited: %v", err)
			}
		}()
	}

	return rt, nil
}

// Shutdown stops accepting new file operations, drains the blocking
// worker pool, and (if io_uring is enabled) shuts down the reactor and
// waits for its completion loop goroutine to exit.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	poolErr := rt.pool.shutdown()
	if rt.reactor != nil {
		// Stop the background Run loop first so Shutdown's own drain loop
		// is the only caller left waiting on the ring.
		rt.runCancel()
		<-rt.runDone
		if err := rt.reactor.Shutdown(ctx); err != nil {
			return err
		}
	}
	return poolErr
}

// Open opens path with opts. If the Runtime has io_uring enabled, the
// open itself is performed through OpenAt; otherwise it runs on a
// blocking worker.
func (rt *Runtime) Open(ctx context.Context, path string, opts uringrt.FileOptions) (*File, error) {
	return rt.open(ctx, path, opts)
}

// Create opens path for writing, creating it if necessary (O_CREAT) and
// truncating any existing content, matching os.Create's semantics.
func (rt *Runtime) Create(ctx context.Context, path string) (*File, error) {
	opts := uringrt.NewFileOptions(
		uringrt.WithRead(),
		uringrt.WithWrite(),
		uringrt.WithCreate(0o666),
		uringrt.WithTruncate(),
	)
	return rt.open(ctx, path, opts)
}

// CreateNew opens path for writing, failing if it already exists
// (O_CREAT|O_EXCL).
func (rt *Runtime) CreateNew(ctx context.Context, path string) (*File, error) {
	opts := uringrt.NewFileOptions(
		uringrt.WithRead(),
		uringrt.WithWrite(),
		uringrt.WithCreateNew(0o666),
	)
	return rt.open(ctx, path, opts)
}

func (rt *Runtime) open(ctx context.Context, path string, opts uringrt.FileOptions) (*File, error) {
	maxBufSize := opts.MaxBufSize
	if maxBufSize == 0 {
		maxBufSize = buffer.DefaultMaxBufSize
	}

	if rt.reactor != nil {
		return openUring(ctx, rt, path, opts, maxBufSize)
	}
	return openThreadPool(ctx, rt, path, opts, maxBufSize)
}
