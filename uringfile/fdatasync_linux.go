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

//go:build linux

package uringfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync flushes std's data (and only as much metadata as is needed
// to retrieve it) without the full metadata sync std.Sync() forces,
// giving the ThreadPool variant's Sync(dataOnly=true) the same fdatasync(2)
// semantics as the Uring variant's SubmitFsync.
func fdatasync(std *os.File) error {
	return unix.Fdatasync(int(std.Fd()))
}
