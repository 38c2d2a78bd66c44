// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package uringrt

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrShuttingDown is returned by a Reactor (or a File backed by one) for
// any operation submitted after Shutdown has begun. Operations already
// in flight are cancelled and drained: a caller still waiting on one
// gets ErrShuttingDown, and the reactor keeps the operation's buffers
// until the kernel completes it.
var ErrShuttingDown = errors.New("reactor is shutting down")

// ErrOperationPending is returned by Seek when called on a File whose
// previous read or write has not yet completed. The message is part of
// this package's documented external contract; do not reword it.
var ErrOperationPending = errors.New("other file operation is pending, call poll_complete before start_seek")

// CompletionError wraps a negative io_uring CQE result (or a blocking
// worker's syscall failure) as a plain error carrying the originating
// errno, the way a synchronous POSIX caller would see it from read(2)/
// write(2)/etc.
type CompletionError struct {
	// Op names the operation that failed, e.g. "read", "write", "openat".
	Op string

	// Errno is the kernel error number the operation failed with.
	Errno syscall.Errno
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Errno.Error())
}

// Unwrap lets callers match CompletionError against a specific errno with
// errors.Is(err, syscall.ENOSPC) and similar.
func (e *CompletionError) Unwrap() error {
	return e.Errno
}

// NewCompletionError builds a CompletionError from a negative io_uring CQE
// result (res < 0, res == -errno) or from any raw errno observed on the
// blocking path.
func NewCompletionError(op string, errno syscall.Errno) *CompletionError {
	return &CompletionError{Op: op, Errno: errno}
}

// ErrBackgroundTaskFailed is returned when a blocking worker panics;
// translated to a plain I/O-shaped error rather than propagating the
// panic across the goroutine boundary.
var ErrBackgroundTaskFailed = errors.New("background task failed")
