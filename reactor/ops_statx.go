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

	"golang.org/x/sys/unix"

	"github.com/jacobsa/uringrt/internal/uringabi"
)

// statxStatxMask requests the fields uringfile's Stat needs: enough to
// populate an os.FileInfo-equivalent (size, mode, mtime).
const statxStatxMask = unix.STATX_SIZE | unix.STATX_MODE | unix.STATX_MTIME | unix.STATX_TYPE

// statxOp is the Statx opcode's completion handler. It retains the path
// and the destination struct, both referenced by the SQE.
type statxOp struct {
	path []byte
	out  *uringabi.Statx
}

func (s *statxOp) Complete(res CqeResult) (*uringabi.Statx, error) {
	if res.Err != nil {
		return nil, res.Err
	}
	return s.out, nil
}

// SubmitStatx submits a Statx opcode for fd/path (pass unix.AT_FDCWD as
// fd for an absolute path, and an empty path with AT_EMPTY_PATH to statx
// the fd itself).
func (r *Reactor) SubmitStatx(ctx context.Context, fd int, path string, flags uint32) (*Op[*uringabi.Statx, *statxOp], error) {
	cpath := uringabi.CString(path)
	out := &uringabi.Statx{}
	sqe := uringabi.EncodeStatx(fd, cpath, flags, statxStatxMask, out)
	return newOp[*uringabi.Statx, *statxOp](ctx, r, "uringrt.Statx", sqe, &statxOp{path: cpath, out: out})
}
