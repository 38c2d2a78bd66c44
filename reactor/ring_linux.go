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

	"github.com/jacobsa/uringrt/internal/uringabi"
)

func newKernelRing(ringSize uint32) (kernelRing, int, error) {
	ring, err := uringabi.NewRing(ringSize)
	if err != nil {
		return nil, -1, fmt.Errorf("uringabi.NewRing: %w", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		ring.Close()
		return nil, -1, fmt.Errorf("eventfd: %w", err)
	}

	if err := ring.RegisterEventfd(efd); err != nil {
		unix.Close(efd)
		ring.Close()
		return nil, -1, fmt.Errorf("register eventfd: %w", err)
	}

	return ring, efd, nil
}
