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

// readOp is the Read opcode's completion handler. It holds the
// destination buffer so the slice stays reachable (and therefore alive,
// under Go's GC) for as long as the kernel may still be writing into it:
// the handler owns the buffer referenced by its SQE for that entire
// window.
type readOp struct {
	buf []byte
}

func (r *readOp) Complete(res CqeResult) (int, error) {
	if res.Err != nil {
		return 0, res.Err
	}
	return int(res.Res), nil
}

// SubmitRead submits a Read opcode reading up to len(buf) bytes from fd
// at offset into buf. buf must not be reused by the caller until the
// returned Op's Wait (or Cancel) has returned.
func (r *Reactor) SubmitRead(ctx context.Context, fd int, buf []byte, offset uint64) (*Op[int, *readOp], error) {
	sqe := uringabi.EncodeRead(fd, buf, offset)
	return newOp[int, *readOp](ctx, r, "uringrt.Read", sqe, &readOp{buf: buf})
}
