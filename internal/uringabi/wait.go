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

package uringabi

import "errors"

// ErrWaitTimeout is returned by a Ring's WaitCQE when the requested
// timeout elapses with no completion available, so a caller looping on
// WaitCQE can re-check its own cancellation between waits rather than
// block in the kernel indefinitely.
var ErrWaitTimeout = errors.New("uringabi: WaitCQE timed out")
