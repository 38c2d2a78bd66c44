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

// Package slab provides a keyed table with stable indices and O(1)
// insert/remove, the same contract the fuse package's internal freelist
// offers its message pools, generalised here to carry typed payloads
// rather than recycled buffers: the table is the Reactor's lifecycle
// store, and its keys are the io_uring user_data values stamped into
// submitted SQEs.
package slab

// Slab is a generic keyed table. The zero value is ready to use. Slab is
// not safe for concurrent use; callers (the Reactor) must guard it with
// their own lock, since slab mutation and ring submission must happen
// atomically together (see Reactor's invariant R1).
type Slab[T any] struct {
	entries []entry[T]
	free    []int
}

type entry[T any] struct {
	value    T
	occupied bool
}

// Insert stores value and returns the stable key it was assigned.
func (s *Slab[T]) Insert(value T) int {
	if n := len(s.free); n > 0 {
		key := s.free[n-1]
		s.free = s.free[:n-1]
		s.entries[key] = entry[T]{value: value, occupied: true}
		return key
	}

	s.entries = append(s.entries, entry[T]{value: value, occupied: true})
	return len(s.entries) - 1
}

// Get returns a pointer to the value at key, and whether key is
// currently occupied. The pointer is valid only until the next Insert,
// since Insert may reuse a freed slot's storage via append growth.
func (s *Slab[T]) Get(key int) (*T, bool) {
	if key < 0 || key >= len(s.entries) || !s.entries[key].occupied {
		return nil, false
	}
	return &s.entries[key].value, true
}

// Remove frees key for reuse by a later Insert. It is a no-op if key is
// not currently occupied.
func (s *Slab[T]) Remove(key int) {
	if key < 0 || key >= len(s.entries) || !s.entries[key].occupied {
		return
	}

	var zero T
	s.entries[key] = entry[T]{value: zero, occupied: false}
	s.free = append(s.free, key)
}

// Len returns the number of currently-occupied slots.
func (s *Slab[T]) Len() int {
	return len(s.entries) - len(s.free)
}

// Each calls fn once for every currently-occupied slot, in key order. fn
// must not call back into the Slab.
func (s *Slab[T]) Each(fn func(key int, value *T)) {
	for i := range s.entries {
		if s.entries[i].occupied {
			fn(i, &s.entries[i].value)
		}
	}
}
