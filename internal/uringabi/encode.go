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

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// EncodeOpenAt builds an SQE requesting an openat(2) against AT_FDCWD.
// path must be a NUL-terminated byte slice (see CString) whose storage
// the caller keeps alive until the operation completes — the encoder
// imposes no lifetime of its own, matching the rest of this package.
func EncodeOpenAt(path []byte, flags uint32, mode uint32) SQE {
	return SQE{
		Opcode:      OpOpenAt,
		Fd:          int32(unix.AT_FDCWD),
		Addr:        uint64(uintptr(unsafe.Pointer(&path[0]))),
		OpcodeFlags: flags,
		Len:         mode,
	}
}

// EncodeRead builds an SQE requesting a pread(2)-equivalent read of
// len(buf) bytes from fd at the given file offset into buf. buf must
// outlive the operation.
func EncodeRead(fd int, buf []byte, offset uint64) SQE {
	var addr uint64
	if len(buf) > 0 {
		addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	return SQE{
		Opcode: OpRead,
		Fd:     int32(fd),
		Addr:   addr,
		Len:    uint32(len(buf)),
		Off:    offset,
	}
}

// EncodeWrite builds an SQE requesting a pwrite(2)-equivalent write of
// buf to fd at the given file offset. buf must outlive the operation.
func EncodeWrite(fd int, buf []byte, offset uint64) SQE {
	var addr uint64
	if len(buf) > 0 {
		addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	return SQE{
		Opcode: OpWrite,
		Fd:     int32(fd),
		Addr:   addr,
		Len:    uint32(len(buf)),
		Off:    offset,
	}
}

// EncodeClose builds an SQE requesting close(2) of fd.
func EncodeClose(fd int) SQE {
	return SQE{
		Opcode: OpClose,
		Fd:     int32(fd),
	}
}

// EncodeStatx builds an SQE requesting statx(2) of path relative to fd
// (use unix.AT_FDCWD for an absolute path), writing the result into out.
// Both path and out must outlive the operation.
func EncodeStatx(fd int, path []byte, flags uint32, mask uint32, out *Statx) SQE {
	return SQE{
		Opcode:      OpStatx,
		Fd:          int32(fd),
		Addr:        uint64(uintptr(unsafe.Pointer(&path[0]))),
		Len:         mask,
		OpcodeFlags: flags,
		Off:         uint64(uintptr(unsafe.Pointer(out))),
	}
}

// EncodeFsync builds an SQE requesting fsync(2) (or fdatasync(2), if
// datasync is set) of fd.
func EncodeFsync(fd int, datasync bool) SQE {
	var flags uint32
	if datasync {
		flags = FsyncDatasync
	}
	return SQE{
		Opcode:      OpFsync,
		Fd:          int32(fd),
		OpcodeFlags: flags,
	}
}

// EncodeAsyncCancel builds an SQE requesting the kernel attempt to cancel
// the in-flight operation previously submitted with user_data ==
// targetUserData. Submitting this SQE does not itself remove the target
// slot from the Reactor's slab; the target's own completion (or the
// kernel's ECANCELED for it) does.
func EncodeAsyncCancel(targetUserData uint64) SQE {
	return SQE{
		Opcode: OpAsyncCancel,
		Addr:   targetUserData,
	}
}

// CString converts a path to a NUL-terminated byte slice suitable for use
// as the Addr of an OpenAt/Statx SQE.
func CString(path string) []byte {
	b := make([]byte, len(path)+1)
	copy(b, path)
	return b
}

// AccessMode computes the O_RDONLY/O_WRONLY/O_RDWR component of an open
// flag set from the read/write bits a caller requested.
func AccessMode(read, write bool) uint32 {
	switch {
	case read && write:
		return unix.O_RDWR
	case write:
		return unix.O_WRONLY
	default:
		return unix.O_RDONLY
	}
}

// CreationMode computes the O_CREAT/O_EXCL/O_TRUNC component of an open
// flag set from the create/createNew/truncate bits a caller requested.
func CreationMode(create, createNew, truncate bool) uint32 {
	var mode uint32
	switch {
	case createNew:
		mode |= unix.O_CREAT | unix.O_EXCL
	case create:
		mode |= unix.O_CREAT
	}
	if truncate {
		mode |= unix.O_TRUNC
	}
	return mode
}

// OpenFlags composes the full openat(2) flag set the way the kernel
// expects it: O_CLOEXEC, then access mode, then creation mode, then
// caller-supplied custom flags with O_ACCMODE masked out so a caller
// can't smuggle in a conflicting access mode through custom_flags.
func OpenFlags(accessMode, creationMode, customFlags uint32) uint32 {
	return uint32(unix.O_CLOEXEC) | accessMode | creationMode | (customFlags &^ uint32(unix.O_ACCMODE))
}
