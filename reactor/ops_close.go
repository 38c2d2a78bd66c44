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

// closeOp is the Close opcode's completion handler. It carries no
// state of its own to keep alive.
type closeOp struct{}

func (closeOp) Complete(res CqeResult) (struct{}, error) {
	if res.Err != nil {
		return struct{}{}, res.Err
	}
	return struct{}{}, nil
}

// SubmitClose submits a Close opcode for fd.
func (r *Reactor) SubmitClose(ctx context.Context, fd int) (*Op[struct{}, closeOp], error) {
	sqe := uringabi.EncodeClose(fd)
	return newOp[struct{}, closeOp](ctx, r, "uringrt.Close", sqe, closeOp{})
}
