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

// writeOp is the Write opcode's completion handler; see readOp for why
// it retains buf.
type writeOp struct {
	buf []byte
}

func (w *writeOp) Complete(res CqeResult) (int, error) {
	if res.Err != nil {
		return 0, res.Err
	}
	return int(res.Res), nil
}

// SubmitWrite submits a Write opcode writing buf to fd at offset. buf
// must not be mutated by the caller until the returned Op's Wait (or
// Cancel) has returned.
func (r *Reactor) SubmitWrite(ctx context.Context, fd int, buf []byte, offset uint64) (*Op[int, *writeOp], error) {
	sqe := uringabi.EncodeWrite(fd, buf, offset)
	return newOp[int, *writeOp](ctx, r, "uringrt.Write", sqe, &writeOp{buf: buf})
}
