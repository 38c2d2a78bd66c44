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

import (
	"flag"
	"io"
	"log"
	"os"
	"sync"
)

var fEnableDebug = flag.Bool(
	"uringrt.debug",
	false,
	"Write uringrt debugging messages to stderr.")

var fEnableDebugOverride bool

// EnableDebugLog turns on debug logging without going through the flag
// package, for callers that parse their own flags or run under a test
// binary. It is equivalent to passing -uringrt.debug=true.
func EnableDebugLog() {
	fEnableDebugOverride = true
}

var gLogger *log.Logger
var gLoggerOnce sync.Once

func initLogger() {
	var writer io.Writer = io.Discard
	if *fEnableDebug || fEnableDebugOverride {
		writer = os.Stderr
	}

	const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	gLogger = log.New(writer, "uringrt: ", flags)
}

// GetLogger returns the package-level debug logger, lazily initializing it
// on first use. The reactor logs completions for unknown slots (as
// "Op 0x%08x") and the shutdown drain time through it; uringfile logs an
// unexpected exit of the reactor's run loop.
func GetLogger() *log.Logger {
	gLoggerOnce.Do(initLogger)
	return gLogger
}
