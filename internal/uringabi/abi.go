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

// Package uringabi mirrors the slice of the Linux io_uring kernel ABI
// (linux/io_uring.h) this runtime needs: the SQE/CQE wire structs, the
// opcodes the Submission Entry Encoder supports, and the mmap layout of
// the shared rings. Nothing here touches the kernel directly; Ring (in
// ring_linux.go) does that.
package uringabi

// Opcode identifies which kernel operation an SQE requests.
type Opcode uint8

// The opcodes the Submission Entry Encoder supports. Values match
// IORING_OP_* from linux/io_uring.h.
const (
	OpOpenAt      Opcode = 18
	OpClose       Opcode = 19
	OpStatx       Opcode = 21
	OpRead        Opcode = 22
	OpWrite       Opcode = 23
	OpFsync       Opcode = 3
	OpAsyncCancel Opcode = 14
)

// Setup/enter/register flags and syscall numbers used by Ring.
const (
	SetupFeatSingleMmap uint32 = 1 << 0

	EnterGetEvents uint32 = 1 << 0

	RegisterEventfd   uint32 = 4
	UnregisterEventfd uint32 = 5

	FsyncDatasync uint32 = 1 << 0

	// mmap offsets for io_uring_setup, from linux/io_uring.h.
	OffSQRing uint64 = 0
	OffCQRing uint64 = 0x8000000
	OffSQEs   uint64 = 0x10000000
)

// SQE is the 64-byte submission queue entry, matching struct
// io_uring_sqe. The OpcodeFlags field is a union in the kernel header
// (rw_flags / open_flags / statx_flags / ...); this runtime only ever
// needs one interpretation live at a time per opcode, so a single field
// suffices.
type SQE struct {
	Opcode      Opcode
	Flags       uint8
	Ioprio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpcodeFlags uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	pad         uint64
}

// CQE is the 16-byte completion queue entry, matching struct
// io_uring_cqe.
type CQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// SQRingOffsets matches struct io_sqring_offsets.
type SQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	UserAddr    uint64
}

// CQRingOffsets matches struct io_cqring_offsets.
type CQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	CQEs        uint32
	Flags       uint32
	Resv1       uint32
	UserAddr    uint64
}

// Params matches struct io_uring_params.
type Params struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        SQRingOffsets
	CQOff        CQRingOffsets
}

// Statx mirrors the kernel's struct statx (256 bytes); this runtime only
// reads a handful of fields out of it (see DecodeStatx), but the kernel
// writes the whole thing so the destination buffer must be sized to
// match.
type Statx struct {
	Mask           uint32
	Blksize        uint32
	Attributes     uint64
	Nlink          uint32
	UID            uint32
	GID            uint32
	Mode           uint16
	spare0         uint16
	Ino            uint64
	Size           uint64
	Blocks         uint64
	AttributesMask uint64
	Atime          StatxTimestamp
	Btime          StatxTimestamp
	Ctime          StatxTimestamp
	Mtime          StatxTimestamp
	RdevMajor      uint32
	RdevMinor      uint32
	DevMajor       uint32
	DevMinor       uint32
	MntID          uint64
	DioMemAlign    uint32
	DioOffsetAlign uint32
	pad            [12]uint64
}

// StatxTimestamp matches struct statx_timestamp.
type StatxTimestamp struct {
	Sec  int64
	Nsec uint32
	pad  uint32
}
