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

	"github.com/jacobsa/uringrt/internal/uringabi"
)

// fsyncOp is the Fsync opcode's completion handler.
type fsyncOp struct{}

func (fsyncOp) Complete(res CqeResult) (struct{}, error) {
	if res.Err != nil {
		return struct{}{}, res.Err
	}
	return struct{}{}, nil
}

// SubmitFsync submits an Fsync opcode for fd; datasync requests
// fdatasync(2) semantics instead of fsync(2).
func (r *Reactor) SubmitFsync(ctx context.Context, fd int, datasync bool) (*Op[struct{}, fsyncOp], error) {
	sqe := uringabi.EncodeFsync(fd, datasync)
	return newOp[struct{}, fsyncOp](ctx, r, "uringrt.Fsync", sqe, fsyncOp{})
}
