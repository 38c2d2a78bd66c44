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

	"github.com/jacobsa/uringrt"
	"github.com/jacobsa/uringrt/internal/uringabi"
)

// openOp is the OpenAt opcode's completion handler; it retains the
// NUL-terminated path the kernel reads the name from.
type openOp struct {
	path []byte
}

func (o *openOp) Complete(res CqeResult) (int, error) {
	if res.Err != nil {
		return -1, res.Err
	}
	return int(res.Res), nil
}

// SubmitOpenAt submits an OpenAt opcode against path, with flags/mode
// composed from opts the same way uringabi.OpenFlags/AccessMode/
// CreationMode compose them for the Submission Entry Encoder.
func (r *Reactor) SubmitOpenAt(ctx context.Context, path string, opts uringrt.FileOptions) (*Op[int, *openOp], error) {
	accessMode := uringabi.AccessMode(opts.Read, opts.Write || opts.Append)
	creationMode := uringabi.CreationMode(opts.Create, opts.CreateNew, opts.Truncate)
	flags := uringabi.OpenFlags(accessMode, creationMode, opts.CustomFlags)
	if opts.Append {
		flags |= unix.O_APPEND
	}

	cpath := uringabi.CString(path)
	sqe := uringabi.EncodeOpenAt(cpath, flags, opts.Mode)
	return newOp[int, *openOp](ctx, r, "uringrt.OpenAt", sqe, &openOp{path: cpath})
}
