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

//go:build !linux

package uringfile

import (
	"context"

	"github.com/jacobsa/uringrt"
)

// openUring is unreachable on a non-linux build: rt.open only calls it
// when rt.reactor is non-nil, and reactor.NewReactor (via
// reactor.newKernelRing) always fails on a platform without io_uring
// support, so no Runtime here ever has a non-nil reactor. It exists so
// this package compiles on every platform the ThreadPool variant
// supports, matching the reactor package's own ring_linux.go/
// ring_other.go split.
func openUring(ctx context.Context, rt *Runtime, path string, opts uringrt.FileOptions, maxBufSize int) (*File, error) {
	panic("uringfile: openUring called on a Runtime with no reactor")
}
