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

package uringabi

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ring is a minimal mmap-backed io_uring instance: just enough submit/
// complete plumbing for the opcodes in this package, no SQPOLL, no fixed
// files, no SQE chaining.
type Ring struct {
	fd int

	sqMem   []byte
	cqMem   []byte
	sqesMem []byte

	sqHead  *uint32
	sqTail  *uint32
	sqMask  uint32
	sqArray unsafe.Pointer

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   unsafe.Pointer

	sqes    unsafe.Pointer
	entries uint32
}

// NewRing creates an io_uring instance with room for at least entries
// in-flight submissions. The kernel rounds entries up to a power of two.
func NewRing(entries uint32) (*Ring, error) {
	var p Params
	fd, _, errno := syscall.RawSyscall(unix.SYS_IO_URING_SETUP,
		uintptr(entries), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("io_uring_setup: %w", errno)
	}

	r := &Ring{fd: int(fd), entries: p.SQEntries}
	if err := r.mmapRings(&p); err != nil {
		unix.Close(r.fd)
		return nil, err
	}

	return r, nil
}

func (r *Ring) mmapRings(p *Params) error {
	sqRingSize := p.SQOff.Array + p.SQEntries*4
	sqMem, err := unix.Mmap(r.fd, int64(OffSQRing), int(sqRingSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("mmap sq ring: %w", err)
	}
	r.sqMem = sqMem

	if p.Features&SetupFeatSingleMmap != 0 {
		r.cqMem = sqMem
	} else {
		cqRingSize := p.CQOff.CQEs + p.CQEntries*uint32(unsafe.Sizeof(CQE{}))
		cqMem, err := unix.Mmap(r.fd, int64(OffCQRing), int(cqRingSize),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			unix.Munmap(sqMem)
			return fmt.Errorf("mmap cq ring: %w", err)
		}
		r.cqMem = cqMem
	}

	sqeSize := p.SQEntries * uint32(unsafe.Sizeof(SQE{}))
	sqesMem, err := unix.Mmap(r.fd, int64(OffSQEs), int(sqeSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		if r.cqMem != nil && &r.cqMem[0] != &r.sqMem[0] {
			unix.Munmap(r.cqMem)
		}
		unix.Munmap(r.sqMem)
		return fmt.Errorf("mmap sqes: %w", err)
	}
	r.sqesMem = sqesMem

	base := unsafe.Pointer(&sqMem[0])
	r.sqHead = (*uint32)(unsafe.Add(base, p.SQOff.Head))
	r.sqTail = (*uint32)(unsafe.Add(base, p.SQOff.Tail))
	r.sqMask = *(*uint32)(unsafe.Add(base, p.SQOff.RingMask))
	r.sqArray = unsafe.Add(base, p.SQOff.Array)

	cqBase := unsafe.Pointer(&r.cqMem[0])
	r.cqHead = (*uint32)(unsafe.Add(cqBase, p.CQOff.Head))
	r.cqTail = (*uint32)(unsafe.Add(cqBase, p.CQOff.Tail))
	r.cqMask = *(*uint32)(unsafe.Add(cqBase, p.CQOff.RingMask))
	r.cqes = unsafe.Add(cqBase, p.CQOff.CQEs)

	r.sqes = unsafe.Pointer(&sqesMem[0])

	return nil
}

// Close releases all kernel resources held by the ring.
func (r *Ring) Close() error {
	if r.sqesMem != nil {
		unix.Munmap(r.sqesMem)
	}
	if r.cqMem != nil && (r.sqMem == nil || &r.cqMem[0] != &r.sqMem[0]) {
		unix.Munmap(r.cqMem)
	}
	if r.sqMem != nil {
		unix.Munmap(r.sqMem)
	}
	return unix.Close(r.fd)
}

// Fd returns the ring's own file descriptor, e.g. for diagnostics.
func (r *Ring) Fd() int {
	return r.fd
}

// PushSQE copies sqe (stamped with userData) into the next free
// submission slot and advances the SQ tail. While the ring reports no
// free slots it submits whatever is already queued and checks again,
// until a slot frees. It returns an error only for a genuine kernel
// submission failure; a full ring is handled internally via the retry.
func (r *Ring) PushSQE(sqe SQE, userData uint64) error {
	for {
		tail := atomic.LoadUint32(r.sqTail)
		head := atomic.LoadUint32(r.sqHead)
		if tail-head > r.sqMask {
			// Ring believes itself full; flush to the kernel and retry.
			if err := r.submit(0); err != nil {
				return err
			}
			continue
		}

		sqe.UserData = userData
		slot := tail & r.sqMask
		dst := (*SQE)(unsafe.Add(r.sqes, uintptr(slot)*unsafe.Sizeof(SQE{})))
		*dst = sqe

		*(*uint32)(unsafe.Add(r.sqArray, uintptr(slot)*4)) = slot
		atomic.StoreUint32(r.sqTail, tail+1)

		return r.submit(0)
	}
}

// submit calls io_uring_enter, submitting whatever SQEs are queued and
// optionally waiting for minComplete CQEs.
func (r *Ring) submit(minComplete uint32) error {
	toSubmit := atomic.LoadUint32(r.sqTail) - atomic.LoadUint32(r.sqHead)
	var flags uint32
	if minComplete > 0 {
		flags = EnterGetEvents
	}

	_, _, errno := syscall.Syscall6(unix.SYS_IO_URING_ENTER,
		uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete),
		uintptr(flags), 0, 0)
	if errno == syscall.EBUSY || errno == syscall.EINTR {
		return nil
	}
	if errno != 0 {
		return fmt.Errorf("io_uring_enter: %w", errno)
	}
	return nil
}

// WaitCQE blocks for up to timeout for at least one CQE to become
// available, via poll(2) on the ring's own file descriptor: the kernel
// reports it POLLIN-readable whenever a completion is pending, the same
// signal the registered eventfd mirrors for an external epoll loop. If
// timeout elapses first, WaitCQE returns ErrWaitTimeout rather than
// blocking forever, so a caller (Reactor.Run/Shutdown) can re-check its
// own context cancellation between calls — unlike io_uring_enter's own
// blocking wait, which a cancelled ctx cannot interrupt.
func (r *Ring) WaitCQE(timeout time.Duration) error {
	if atomic.LoadUint32(r.cqHead) != atomic.LoadUint32(r.cqTail) {
		return nil
	}

	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	fds := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll ring fd: %w", err)
		}
		if n == 0 {
			return ErrWaitTimeout
		}
		return nil
	}
}

// DrainCQEs invokes fn once per currently-available CQE, then advances
// the CQ head past all of them. It never blocks.
func (r *Ring) DrainCQEs(fn func(CQE)) int {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)

	n := 0
	for head != tail {
		idx := head & r.cqMask
		cqe := *(*CQE)(unsafe.Add(r.cqes, uintptr(idx)*unsafe.Sizeof(CQE{})))
		fn(cqe)
		head++
		n++
	}
	atomic.StoreUint32(r.cqHead, head)
	return n
}

// RegisterEventfd arranges for the kernel to write to eventfd every time
// a new CQE is posted, so an external epoll loop can learn "the ring has
// completions" without a dedicated polling thread.
func (r *Ring) RegisterEventfd(eventfd int) error {
	fdv := int32(eventfd)
	_, _, errno := syscall.Syscall6(unix.SYS_IO_URING_REGISTER,
		uintptr(r.fd), uintptr(RegisterEventfd),
		uintptr(unsafe.Pointer(&fdv)), 1, 0, 0)
	if errno != 0 {
		return fmt.Errorf("io_uring_register(EVENTFD): %w", errno)
	}
	return nil
}

// Entries returns the ring's actual depth (the kernel-rounded value).
func (r *Ring) Entries() uint32 {
	return r.entries
}
