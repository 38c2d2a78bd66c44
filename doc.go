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

// Package uringrt holds the configuration and error types shared by the
// io_uring reactor (package reactor) and the asynchronous file object
// (package uringfile).
//
// The primary elements of interest are:
//
//  *  ReactorConfig and FileOptions, which configure a reactor and a file
//     open respectively.
//
//  *  The error values ErrShuttingDown and ErrOperationPending, and the
//     CompletionError type wrapping a kernel errno.
//
// Callers construct a reactor.Reactor from a ReactorConfig and files
// through uringfile, not through this package directly.
package uringrt
