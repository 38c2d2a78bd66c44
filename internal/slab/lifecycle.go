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

package slab

import "github.com/jacobsa/uringrt/internal/uringabi"

// LifecycleState names the four states a single in-flight operation's
// slab slot passes through.
type LifecycleState int

const (
	// Submitted: the SQE has been pushed to the kernel and no waiter is
	// registered yet.
	Submitted LifecycleState = iota

	// Waiting: a caller is blocked and must be woken (by closing Done) the
	// moment a completion arrives.
	Waiting

	// Cancelled: the caller gave up. Erased retains whatever buffers or
	// paths the kernel may still reference until the completion arrives;
	// the slot is removed, not mutated further, once it does.
	Cancelled

	// Completed: a CQE has arrived but has not yet been observed by a
	// caller.
	Completed
)

// Lifecycle is one slab slot's state. The zero value is not meaningful;
// construct with NewSubmitted.
type Lifecycle struct {
	State LifecycleState

	// Done is non-nil only in Waiting; closing it wakes the parked caller.
	// Invariant L2: a slot has at most one live Done channel at a time.
	Done chan struct{}

	// Report is invoked exactly once, with the final error (or nil), when
	// the slot leaves the slab — the reqtrace-style per-operation tracing
	// hook. May be nil.
	Report func(error)

	// Erased holds buffers/paths that must outlive the kernel's use of
	// them, stashed here on Cancel so they survive past the caller giving
	// up on the operation.
	Erased any

	// CQE is populated once State == Completed.
	CQE uringabi.CQE
}

// NewSubmitted returns a freshly-submitted lifecycle with no waiter yet.
func NewSubmitted(report func(error)) Lifecycle {
	return Lifecycle{State: Submitted, Report: report}
}
