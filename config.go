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

package uringrt

// FileOptions configures an Open/Create call, mirroring the open(2) flag
// groups the Submission Entry Encoder composes into a single flag word:
// one bool or int field per kernel-visible toggle, no nested builder
// type.
type FileOptions struct {
	// Read enables read access (O_RDONLY, or the read half of O_RDWR).
	Read bool

	// Write enables write access.
	Write bool

	// Append sets O_APPEND; implies Write.
	Append bool

	// Truncate sets O_TRUNC.
	Truncate bool

	// Create sets O_CREAT.
	Create bool

	// CreateNew sets O_CREAT|O_EXCL: the open fails if the file already
	// exists.
	CreateNew bool

	// Mode is the permission bits used if the open creates the file.
	Mode uint32

	// CustomFlags are additional open(2) flags ORed in verbatim, except
	// that any O_ACCMODE bits are masked out so they cannot override
	// Read/Write/Append above.
	CustomFlags uint32

	// MaxBufSize caps the number of bytes any single kernel read or write
	// performed on behalf of this file may transfer. Zero means use the
	// package default.
	MaxBufSize int
}

// FileOption mutates a FileOptions being built up by NewFileOptions.
type FileOption func(*FileOptions)

// NewFileOptions builds a FileOptions from zero or more FileOption
// values, applied in order.
func NewFileOptions(opts ...FileOption) FileOptions {
	var o FileOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRead enables read access.
func WithRead() FileOption { return func(o *FileOptions) { o.Read = true } }

// WithWrite enables write access.
func WithWrite() FileOption { return func(o *FileOptions) { o.Write = true } }

// WithAppend sets O_APPEND and implies write access.
func WithAppend() FileOption {
	return func(o *FileOptions) {
		o.Append = true
		o.Write = true
	}
}

// WithTruncate sets O_TRUNC.
func WithTruncate() FileOption { return func(o *FileOptions) { o.Truncate = true } }

// WithCreate sets O_CREAT with the given creation mode bits.
func WithCreate(mode uint32) FileOption {
	return func(o *FileOptions) {
		o.Create = true
		o.Mode = mode
	}
}

// WithCreateNew sets O_CREAT|O_EXCL with the given creation mode bits.
func WithCreateNew(mode uint32) FileOption {
	return func(o *FileOptions) {
		o.CreateNew = true
		o.Mode = mode
	}
}

// WithCustomFlags ORs extra open(2) flags into the composed flag word.
func WithCustomFlags(flags uint32) FileOption {
	return func(o *FileOptions) { o.CustomFlags = flags }
}

// WithMaxBufSize caps per-operation kernel transfer size.
func WithMaxBufSize(n int) FileOption {
	return func(o *FileOptions) { o.MaxBufSize = n }
}

// ReactorConfig configures a reactor.Reactor.
type ReactorConfig struct {
	// RingSize is the kernel SQ/CQ depth. Powers of two are recommended;
	// the kernel rounds up regardless. Zero means use the package
	// default.
	RingSize uint32

	// EnableURing selects whether file operations are driven through the
	// io_uring reactor at all. If false, every File constructed against
	// this config uses the ThreadPool variant exclusively, and no ring is
	// opened.
	EnableURing bool
}

// ReactorOption mutates a ReactorConfig being built up by
// NewReactorConfig.
type ReactorOption func(*ReactorConfig)

// DefaultRingSize is used when a ReactorConfig does not specify RingSize.
const DefaultRingSize = 256

// NewReactorConfig builds a ReactorConfig with io_uring enabled and the
// default ring size, then applies opts in order.
func NewReactorConfig(opts ...ReactorOption) ReactorConfig {
	cfg := ReactorConfig{
		RingSize:    DefaultRingSize,
		EnableURing: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithRingSize overrides the kernel SQ/CQ depth.
func WithRingSize(n uint32) ReactorOption {
	return func(c *ReactorConfig) { c.RingSize = n }
}

// WithURingDisabled forces every file onto the ThreadPool variant.
func WithURingDisabled() ReactorOption {
	return func(c *ReactorConfig) { c.EnableURing = false }
}
