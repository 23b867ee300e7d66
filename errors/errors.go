// Package errors provides error handling for the engine.
//
// It re-exports github.com/cockroachdb/errors, providing stack traces,
// wrapping with context, and hints/details that survive across the
// script/host boundary without leaking into the wazero call stack.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is     = crdb.Is
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Sentinel errors for the taxonomy of spec §7. Callers compare with
// errors.Is; the concrete error returned to a script is usually wrapped
// with additional detail (signal name, byte offset, script name).
var (
	// ErrUnknownID is returned when an operation targets a signal id that
	// was never assigned by the id registry.
	ErrUnknownID = crdb.New("signal: unknown id")

	// ErrUnknownSignal is returned when an operation targets a signal name
	// that does not exist and the operation is read-only (no auto-create).
	ErrUnknownSignal = crdb.New("signal: unknown name")

	// ErrUnknownWidget is returned when a UI read targets a title that has
	// never been written by set_toggle_state / set_text_input.
	ErrUnknownWidget = crdb.New("ui: unknown widget")

	// ErrRegistryFull is returned when the id registry has exhausted the
	// 32-bit id space. Fatal for the producing worker.
	ErrRegistryFull = crdb.New("signal: id registry full")

	// ErrQueueFull is returned by a non-blocking push against a full SPSC
	// ring. Not fatal; the producer decides whether to drop or retry.
	ErrQueueFull = crdb.New("queue: full")

	// ErrBufferBounds is returned by a byte reader when offset+size
	// exceeds the buffer length.
	ErrBufferBounds = crdb.New("parser: buffer bounds")

	// ErrParserMismatch signals "this parser does not claim the packet" —
	// not logged as an error, just advances the parser chain.
	ErrParserMismatch = crdb.New("parser: no match")

	// ErrSocketError wraps a transport error other than "would block".
	ErrSocketError = crdb.New("datasource: socket error")

	// ErrWorkerStopped is returned by suspension points when a task
	// resumes after its worker's stop flag has been observed.
	ErrWorkerStopped = crdb.New("worker: stopped")

	// ErrScriptInit wraps a failure compiling or instantiating a script's
	// WASM module (bad bytecode, missing host import, etc).
	ErrScriptInit = crdb.New("script: init failed")

	// ErrScriptNoAlloc is returned when a host call needs to write into
	// guest memory but the guest module exports no "alloc" function.
	ErrScriptNoAlloc = crdb.New("script: guest exports no alloc")

	// ErrScriptMemoryWrite is returned when a write into guest linear
	// memory is rejected (out-of-bounds pointer from a misbehaving
	// allocator).
	ErrScriptMemoryWrite = crdb.New("script: guest memory write out of bounds")
)

// WrapScriptInit wraps err with the ErrScriptInit sentinel so callers can
// match script-initialization failures uniformly via errors.Is.
func WrapScriptInit(err error) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.Wrap(err, "script init"), ErrScriptInit)
}
