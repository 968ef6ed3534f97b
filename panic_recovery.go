// panic_recovery.go: Panic recovery for event handlers and background tasks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"runtime"
)

// stackBufferSize bounds the captured stack trace.
const stackBufferSize = 64 << 10

// withStackRecover returns a panic recovery function that logs the panic with
// its stack trace. It must be invoked through defer:
//
//	defer withStackRecover(logger)()
func withStackRecover(logger Logger) func() {
	return func() {
		if r := recover(); r != nil {
			logPanic(logger, "goroutine", r)
		}
	}
}

// withComponentRecover is withStackRecover with a component label, used where
// several handlers share one logger (event subscribers, pool tasks).
func withComponentRecover(logger Logger, component string) func() {
	return func() {
		if r := recover(); r != nil {
			logPanic(logger, component, r)
		}
	}
}

// logPanic logs a recovered value together with the current stack.
func logPanic(logger Logger, component string, recovered any) {
	buf := make([]byte, stackBufferSize)
	n := runtime.Stack(buf, false)
	logger.Error("Panic recovered",
		"component", component,
		"panic", recovered,
		"stack", string(buf[:n]))
}

// SafeGo runs fn in a new goroutine with panic recovery.
func SafeGo(logger Logger, fn func()) {
	go func() {
		defer withStackRecover(logger)()
		fn()
	}()
}
