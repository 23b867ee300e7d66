// Package script hosts one isolated embedded-scripting interpreter per
// worker, realized as a wazero WASM runtime: the user's script is a
// compiled WASM module, and the restricted (or, for the UI thread,
// superset) API of spec.md §6 is bound as wazero host functions the
// guest module imports. This is the "embedded scripting host with
// per-thread isolated interpreters" of spec.md §9 — cross-thread sharing
// happens only through plain-old-data (signal.Update, UIEvent), never
// through shared interpreter state, because each worker owns its own
// wazero.Runtime instance end to end.
package script

import (
	"context"

	"github.com/signalforge/engine/signal"
)

// Suspender is implemented by a worker's TaskContext. It is the only
// piece of per-call state threaded through a guest call via context.Context
// (WithSuspender) rather than through the Host interface, because
// suspension is a property of *which task* is currently executing, not
// of the engine as a whole.
type Suspender interface {
	Yield() error
	SleepSeconds(seconds float64) error
}

type ctxKey int

const suspenderKey ctxKey = iota

// WithSuspender embeds s into ctx for the duration of one guest call.
// worker.Runtime calls this before invoking a task's exported function
// so that host-bound yield/sleep_seconds calls reach the right task.
func WithSuspender(ctx context.Context, s Suspender) context.Context {
	return context.WithValue(ctx, suspenderKey, s)
}

func suspenderFrom(ctx context.Context) Suspender {
	s, _ := ctx.Value(suspenderKey).(Suspender)
	return s
}

// Host is the restricted script API visible to a worker runtime
// (spec.md §6), implemented by worker.Runtime. Every method here is
// invoked synchronously from a guest host-function call and must not
// suspend — suspension only happens through the Suspender embedded in
// the call's context.
type Host interface {
	// Time and threading (non-suspending parts; Yield/SleepSeconds go
	// through Suspender).
	CurrentTimeSeconds() float64
	IsAppRunning() bool
	SpawnTask(fnName string) error
	SpawnWorker(source string) (uint64, error)

	// Signals.
	GetSignalID(name string) (uint32, error)
	UpdateSignal(name string, t, v float64) error
	UpdateSignalFast(id uint32, t, v float64) error
	GetSignal(name string) (float64, bool)
	GetSignalHistory(name string, n int) []signal.Point
	SignalExists(name string) bool
	CreateSignal(name string) error
	IsSignalActive(name string) bool
	ClearAllSignals()
	SetDefaultSignalMode(live bool)

	// Packet parsing.
	RegisterParser(name string, call func(buf []byte) bool)
	SharedBufferBytes() []byte

	// Packet callbacks.
	OnPacket(packetKind, derivedName string, fn func(t float64) (float64, bool))
	TriggerPacketCallbacks(packetKind string, t float64)
	HasPacketCallback(packetKind string) bool

	// UI read (from snapshot) / write (via event queue).
	GetToggleState(title string) bool
	GetTextInput(title string) string
	GetButtonClicked(title string) bool
	SetToggleState(title string, v bool)
	SetTextInput(title string, v string)
	SetImageBuffer(title string, data []byte)

	// Cleanup.
	OnCleanup(fn func())
}
