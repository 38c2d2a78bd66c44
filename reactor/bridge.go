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

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RegisterWithEpoll registers the Reactor's eventfd with epfd under a
// distinguished token equal to the eventfd's own fd number — simplest
// collision-free token available without a second indirection table.
// When epoll reports that token readable, the owner of the epoll loop
// must call OnReadable.
func (r *Reactor) RegisterWithEpoll(epfd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(r.eventfd),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, r.eventfd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl(ADD, eventfd): %w", err)
	}
	return nil
}

// EventfdToken returns the token RegisterWithEpoll registered the
// Reactor's eventfd under, so a caller multiplexing several fds can
// recognize which readiness events are this Reactor's.
func (r *Reactor) EventfdToken() int32 {
	return int32(r.eventfd)
}

// OnReadable must be called by the epoll owner whenever EventfdToken
// fires. It drains the eventfd counter and then dispatches whatever
// completions are now available.
func (r *Reactor) OnReadable() error {
	var buf [8]byte
	for {
		_, err := unix.Read(r.eventfd, buf[:])
		if err == nil {
			break
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			break
		}
		return fmt.Errorf("read eventfd: %w", err)
	}

	r.dispatchCompletions()
	return nil
}
