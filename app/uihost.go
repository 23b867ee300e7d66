package app

import (
	"context"
	"os"
	"time"

	"go.uber.org/atomic"

	"github.com/signalforge/engine/alert"
	"github.com/signalforge/engine/errors"
	"github.com/signalforge/engine/internal/telemetrylog"
	"github.com/signalforge/engine/parser"
	"github.com/signalforge/engine/script"
	"github.com/signalforge/engine/signal"
	"github.com/signalforge/engine/snapshot"
	"github.com/signalforge/engine/worker"
)

// uiRuntime implements script.UIHost: the UI thread's script engine can
// do everything a worker's can, plus register frame/alert callbacks and
// read frame/plot bookkeeping. It shares the process-wide Registry and
// Buffer with every worker.Runtime but owns its own parser chain and
// packet-callback table (a UI script has no reason to parse packets
// directly in this design, but the surface is kept for symmetry with
// Host and because spec.md §6 does not exclude it).
type uiRuntime struct {
	registry   *signal.Registry
	uiSnapshot *snapshot.Buffer
	manager    *worker.Manager
	alerts     *alert.Registry

	parsers         *parser.Registry
	packetCallbacks map[string][]func(t float64) (float64, bool)
	cleanupFns      []func()
	frameCallbacks  []func()

	running    atomic.Bool
	frameNum   atomic.Uint64
	lastFrameT time.Time
	deltaTime  atomic.Float64
	plotCount  atomic.Int32
}

func newUIRuntime(registry *signal.Registry, uiSnapshot *snapshot.Buffer, mgr *worker.Manager, alerts *alert.Registry) *uiRuntime {
	return &uiRuntime{
		registry:        registry,
		uiSnapshot:      uiSnapshot,
		manager:         mgr,
		alerts:          alerts,
		parsers:         parser.NewRegistry(),
		packetCallbacks: make(map[string][]func(t float64) (float64, bool)),
	}
}

// advanceFrame updates frame-number/delta-time bookkeeping and runs
// every on_frame callback, then every registered alert. Called once per
// frame by Engine.RunFrame, after worker.Manager.RunFrame has published
// the new snapshot.
func (u *uiRuntime) advanceFrame(now time.Time) {
	n := u.frameNum.Add(1)
	if n > 1 {
		u.deltaTime.Store(now.Sub(u.lastFrameT).Seconds())
	}
	u.lastFrameT = now

	for _, fn := range u.frameCallbacks {
		u.guarded("on_frame", fn)
	}
	u.alerts.CheckAll(now, func(name string, rec interface{}) {
		telemetrylog.ScriptErrorw("alert panicked", "alert", name, "recover", rec)
	})
}

func (u *uiRuntime) guarded(label string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetrylog.ScriptErrorw("ui callback panicked", "callback", label, "recover", rec)
		}
	}()
	fn()
}

func (u *uiRuntime) runCleanups() {
	for _, fn := range u.cleanupFns {
		u.guarded("on_cleanup", fn)
	}
}

// --- script.Host ---

func (u *uiRuntime) CurrentTimeSeconds() float64 { return float64(time.Now().UnixNano()) / 1e9 }

func (u *uiRuntime) IsAppRunning() bool { return u.running.Load() }

func (u *uiRuntime) SpawnTask(fnName string) error {
	return errors.Newf("ui: spawn_task not supported on the UI thread, use a worker script")
}

func (u *uiRuntime) SpawnWorker(source string) (uint64, error) {
	wasmBytes, err := os.ReadFile(source)
	if err != nil {
		return 0, errors.Wrapf(err, "ui spawn_worker: reading %q", source)
	}
	rt, err := u.manager.Spawn(context.Background(), source, wasmBytes)
	if err != nil {
		return 0, err
	}
	return rt.ID, nil
}

func (u *uiRuntime) GetSignalID(name string) (uint32, error) {
	return u.registry.GetOrCreateIDDefault(name)
}

func (u *uiRuntime) UpdateSignal(name string, t, v float64) error {
	id, err := u.registry.GetOrCreateIDDefault(name)
	if err != nil {
		return err
	}
	return u.registry.Append(id, t, v)
}

func (u *uiRuntime) UpdateSignalFast(id uint32, t, v float64) error {
	return u.registry.Append(id, t, v)
}

func (u *uiRuntime) GetSignal(name string) (float64, bool) {
	id, ok := u.registry.IDs().Lookup(name)
	if !ok {
		return 0, false
	}
	pt, ok := u.registry.SnapshotTail(id)
	return pt.Value, ok
}

func (u *uiRuntime) GetSignalHistory(name string, n int) []signal.Point {
	id, ok := u.registry.IDs().Lookup(name)
	if !ok {
		return nil
	}
	return u.registry.SnapshotWindow(id, n)
}

func (u *uiRuntime) SignalExists(name string) bool { return u.registry.Exists(name) }

func (u *uiRuntime) CreateSignal(name string) error {
	_, err := u.registry.GetOrCreateIDDefault(name)
	return err
}

func (u *uiRuntime) IsSignalActive(name string) bool {
	id, ok := u.registry.IDs().Lookup(name)
	return ok && u.registry.IsActive(id)
}

func (u *uiRuntime) ClearAllSignals() { u.registry.ClearAllKeepMode() }

func (u *uiRuntime) SetDefaultSignalMode(live bool) {
	if live {
		u.registry.SetDefaultMode(signal.Live)
	} else {
		u.registry.SetDefaultMode(signal.Offline)
	}
}

func (u *uiRuntime) RegisterParser(name string, call func(buf []byte) bool) {
	u.parsers.Register(name, call)
}

func (u *uiRuntime) SharedBufferBytes() []byte { return nil }

func (u *uiRuntime) OnPacket(packetKind, derivedName string, fn func(t float64) (float64, bool)) {
	if id, err := u.registry.GetOrCreateIDDefault(derivedName); err == nil {
		u.registry.MarkActive(id)
	}
	u.packetCallbacks[packetKind] = append(u.packetCallbacks[packetKind], fn)
}

func (u *uiRuntime) TriggerPacketCallbacks(packetKind string, t float64) {
	for _, fn := range u.packetCallbacks[packetKind] {
		fn(t)
	}
}

func (u *uiRuntime) HasPacketCallback(packetKind string) bool {
	return len(u.packetCallbacks[packetKind]) > 0
}

func (u *uiRuntime) GetToggleState(title string) bool {
	s := u.uiSnapshot.Read()
	defer u.uiSnapshot.Release(s)
	return s.Toggles[title]
}

func (u *uiRuntime) GetTextInput(title string) string {
	s := u.uiSnapshot.Read()
	defer u.uiSnapshot.Release(s)
	return s.TextInputs[title]
}

func (u *uiRuntime) GetButtonClicked(title string) bool {
	s := u.uiSnapshot.Read()
	defer u.uiSnapshot.Release(s)
	return s.ButtonClicked[title]
}

// SetToggleState/SetTextInput apply directly to the draft UI state via
// the manager rather than going through a worker's EventQueue — the UI
// thread is the sole writer of its own frame, so there is no
// cross-thread hazard to buffer against. SetImageBuffer has no UI-thread
// equivalent (image windows are only ever fed by worker scripts).
func (u *uiRuntime) SetToggleState(title string, v bool) { u.manager.SetToggleDraft(title, v) }

func (u *uiRuntime) SetTextInput(title string, v string) { u.manager.SetTextInputDraft(title, v) }

func (u *uiRuntime) SetImageBuffer(title string, data []byte) {}

func (u *uiRuntime) OnCleanup(fn func()) { u.cleanupFns = append(u.cleanupFns, fn) }

// --- script.UIHost ---

func (u *uiRuntime) OnFrame(fn func()) { u.frameCallbacks = append(u.frameCallbacks, fn) }

func (u *uiRuntime) OnAlert(name string, cooldownSeconds float64, cond func() bool, action func()) {
	u.alerts.Register(name, cooldownSeconds, cond, action)
}

func (u *uiRuntime) FrameNumber() uint64 { return u.frameNum.Load() }
func (u *uiRuntime) DeltaTime() float64  { return u.deltaTime.Load() }
func (u *uiRuntime) PlotCount() int      { return int(u.plotCount.Load()) }

var _ script.UIHost = (*uiRuntime)(nil)
