package worker

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/signalforge/engine/errors"
	"github.com/signalforge/engine/internal/telemetrylog"
	"github.com/signalforge/engine/parser"
	"github.com/signalforge/engine/queue"
	"github.com/signalforge/engine/script"
	"github.com/signalforge/engine/signal"
	"github.com/signalforge/engine/snapshot"
)

// packetCallback is one on_packet registration: derived signal name plus
// the guest trampoline that turns a parsed timestamp into a value.
type packetCallback struct {
	derivedName string
	fn          func(t float64) (float64, bool)
}

// Config bundles the sizing knobs a Runtime needs at construction,
// mirroring internal/config.Config's Workers/Signals/Queues/Script
// sections.
type Config struct {
	SchedulerIdleSleep time.Duration
	SharedBufferBytes  int
	SignalQueueCap     int
	EventQueueCap      int
	PushRetryBudget    int
}

// Runtime is the WorkerRuntime of spec.md §4.5/§4.9: one cooperative
// scheduler, one shared receive buffer, one parser chain, and one script
// engine, all driven by one Manager.runLoop goroutine. It implements
// script.Host so its own script engine calls back into it directly.
type Runtime struct {
	ID   uint64
	Name string

	sched      *Scheduler
	sharedBuf  *SharedBuffer
	parsers    *parser.Registry
	signalQ    *queue.SignalQueue
	eventQ     *queue.EventQueue
	retry      queue.PushRetryPolicy
	registry   *signal.Registry
	uiSnapshot *snapshot.Buffer

	engine *script.Engine

	packetCallbacks map[string][]packetCallback
	cleanupFns      []func()

	running     atomic.Bool
	state       LifecycleState
	spawnWorker func(source string) (uint64, error)
}

// NewRuntime creates a worker runtime wired against the shared signal
// registry and UI snapshot buffer. spawnWorker lets a script spawn
// additional workers via spawn_worker; it is supplied by the
// WorkerManager that owns this Runtime and may be nil (spawn_worker then
// always fails).
func NewRuntime(id uint64, name string, cfg Config, registry *signal.Registry, uiSnapshot *snapshot.Buffer, spawnWorker func(string) (uint64, error)) *Runtime {
	return &Runtime{
		ID:              id,
		Name:            name,
		sched:           NewScheduler(cfg.SchedulerIdleSleep),
		sharedBuf:       NewSharedBuffer(cfg.SharedBufferBytes),
		parsers:         parser.NewRegistry(),
		signalQ:         queue.NewSignalQueue(cfg.SignalQueueCap),
		eventQ:          queue.NewEventQueue(cfg.EventQueueCap),
		retry:           queue.NewPushRetryPolicy(cfg.PushRetryBudget),
		registry:        registry,
		uiSnapshot:      uiSnapshot,
		packetCallbacks: make(map[string][]packetCallback),
		state:           Spawning,
		spawnWorker:     spawnWorker,
	}
}

// LoadScript compiles and instantiates wasmBytes against this runtime's
// Host binding, replacing any previously loaded script. Used both at
// startup and by ReloadAll (spec.md §7).
func (r *Runtime) LoadScript(ctx context.Context, wasmBytes []byte) error {
	if r.engine != nil {
		_ = r.engine.Close(ctx)
		r.engine = nil
	}
	r.cleanupFns = nil
	r.packetCallbacks = make(map[string][]packetCallback)

	e, err := script.New(ctx, wasmBytes, r)
	if err != nil {
		return err
	}
	r.engine = e
	return nil
}

// SignalQueue, EventQueue, SharedBuffer, Parsers and Scheduler expose the
// runtime's components to the owning WorkerManager's per-frame drain and
// receive loop.
func (r *Runtime) SignalQueue() *queue.SignalQueue { return r.signalQ }
func (r *Runtime) EventQueue() *queue.EventQueue   { return r.eventQ }
func (r *Runtime) SharedBuffer() *SharedBuffer     { return r.sharedBuf }
func (r *Runtime) Parsers() *parser.Registry       { return r.parsers }
func (r *Runtime) Scheduler() *Scheduler           { return r.sched }
func (r *Runtime) State() LifecycleState           { return r.state }

// SetState transitions the runtime's lifecycle state; called by the
// owning WorkerManager, never by script code.
func (r *Runtime) SetState(s LifecycleState) { r.state = s }

// Start marks the runtime as running (the flag a script's
// is_app_running reads). Running cleanups before join is the owning
// manager's responsibility.
func (r *Runtime) Start() { r.running.Store(true) }

// Stop flips the running flag observed by is_app_running and stops the
// scheduler so every live task is cancelled at its next suspension.
func (r *Runtime) Stop() {
	r.running.Store(false)
	r.sched.Stop()
}

// RunCleanups invokes every on_cleanup-registered callback, in
// registration order, swallowing and logging any panic/error so one
// script's bad cleanup can't block the others. It runs on the caller's
// goroutine, not inside the worker's scheduler: Manager.StopAll calls
// it after its join wait ends, and app.Engine.ReloadAll before a
// reload.
func (r *Runtime) RunCleanups() {
	for _, fn := range r.cleanupFns {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					telemetrylog.ScriptErrorw("cleanup panicked", "worker", r.Name, "recover", rec)
				}
			}()
			fn()
		}()
	}
}

// DeliverPacket runs buf through the parser chain and, if a parser
// claims it and the derived packet kind has a registered callback,
// triggers it. Called by a data-source task after filling SharedBuffer.
func (r *Runtime) DeliverPacket(t float64) {
	buf := r.sharedBuf.Bytes()
	kind, ok := r.parsers.Dispatch(buf)
	if !ok {
		return
	}
	r.TriggerPacketCallbacks(kind, t)
}

// --- script.Host ---

func (r *Runtime) CurrentTimeSeconds() float64 { return float64(time.Now().UnixNano()) / 1e9 }

func (r *Runtime) IsAppRunning() bool { return r.running.Load() }

func (r *Runtime) SpawnTask(fnName string) error {
	r.sched.Spawn(fnName, func(tc *TaskContext) error {
		if r.engine == nil {
			return errors.ErrWorkerStopped
		}
		return r.engine.CallVoid(script.WithSuspender(context.Background(), tc), fnName)
	})
	return nil
}

func (r *Runtime) SpawnWorker(source string) (uint64, error) {
	if r.spawnWorker == nil {
		return 0, errors.Newf("worker %s: spawn_worker unsupported in this context", r.Name)
	}
	return r.spawnWorker(source)
}

func (r *Runtime) GetSignalID(name string) (uint32, error) {
	return r.registry.GetOrCreateIDDefault(name)
}

func (r *Runtime) UpdateSignal(name string, t, v float64) error {
	id, err := r.registry.GetOrCreateIDDefault(name)
	if err != nil {
		return err
	}
	return r.UpdateSignalFast(id, t, v)
}

func (r *Runtime) UpdateSignalFast(id uint32, t, v float64) error {
	u := signal.Update{SignalID: id, Time: t, Value: v}
	if !r.retry.PushSignalUpdate(r.signalQ, u) {
		return errors.Wrapf(errors.ErrQueueFull, "worker %s signal queue", r.Name)
	}
	return nil
}

func (r *Runtime) GetSignal(name string) (float64, bool) {
	id, ok := r.registry.IDs().Lookup(name)
	if !ok {
		return 0, false
	}
	pt, ok := r.registry.SnapshotTail(id)
	return pt.Value, ok
}

func (r *Runtime) GetSignalHistory(name string, n int) []signal.Point {
	id, ok := r.registry.IDs().Lookup(name)
	if !ok {
		return nil
	}
	return r.registry.SnapshotWindow(id, n)
}

func (r *Runtime) SignalExists(name string) bool { return r.registry.Exists(name) }

func (r *Runtime) CreateSignal(name string) error {
	_, err := r.registry.GetOrCreateIDDefault(name)
	return err
}

func (r *Runtime) IsSignalActive(name string) bool {
	id, ok := r.registry.IDs().Lookup(name)
	return ok && r.registry.IsActive(id)
}

func (r *Runtime) ClearAllSignals() { r.registry.ClearAllKeepMode() }

func (r *Runtime) SetDefaultSignalMode(live bool) {
	if live {
		r.registry.SetDefaultMode(signal.Live)
	} else {
		r.registry.SetDefaultMode(signal.Offline)
	}
}

func (r *Runtime) RegisterParser(name string, call func(buf []byte) bool) {
	r.parsers.Register(name, call)
}

func (r *Runtime) SharedBufferBytes() []byte { return r.sharedBuf.Bytes() }

func (r *Runtime) OnPacket(packetKind, derivedName string, fn func(t float64) (float64, bool)) {
	if id, err := r.registry.GetOrCreateIDDefault(derivedName); err == nil {
		r.registry.MarkActive(id)
	}
	r.packetCallbacks[packetKind] = append(r.packetCallbacks[packetKind], packetCallback{
		derivedName: derivedName,
		fn:          fn,
	})
}

func (r *Runtime) TriggerPacketCallbacks(packetKind string, t float64) {
	for _, cb := range r.packetCallbacks[packetKind] {
		v, ok := cb.fn(t)
		if !ok {
			continue
		}
		if err := r.UpdateSignal(cb.derivedName, t, v); err != nil {
			telemetrylog.ScriptErrorw("packet callback update dropped", "worker", r.Name, "signal", cb.derivedName, "err", err)
		}
	}
}

func (r *Runtime) HasPacketCallback(packetKind string) bool {
	return len(r.packetCallbacks[packetKind]) > 0
}

func (r *Runtime) GetToggleState(title string) bool {
	s := r.uiSnapshot.Read()
	defer r.uiSnapshot.Release(s)
	return s.Toggles[title]
}

func (r *Runtime) GetTextInput(title string) string {
	s := r.uiSnapshot.Read()
	defer r.uiSnapshot.Release(s)
	return s.TextInputs[title]
}

func (r *Runtime) GetButtonClicked(title string) bool {
	s := r.uiSnapshot.Read()
	defer r.uiSnapshot.Release(s)
	return s.ButtonClicked[title]
}

func (r *Runtime) pushEvent(ev queue.UIEvent) {
	if !r.eventQ.TryPush(ev) {
		telemetrylog.WorkerWarnw("ui event queue full, dropping", "worker", r.Name, "title", ev.Title)
	}
}

func (r *Runtime) SetToggleState(title string, v bool) {
	r.pushEvent(queue.UIEvent{Kind: queue.SetToggle, Title: title, Bool: v})
}

func (r *Runtime) SetTextInput(title string, v string) {
	r.pushEvent(queue.UIEvent{Kind: queue.SetText, Title: title, Text: v})
}

func (r *Runtime) SetImageBuffer(title string, data []byte) {
	r.pushEvent(queue.UIEvent{Kind: queue.SetImageBuffer, Title: title, Image: data})
}

func (r *Runtime) OnCleanup(fn func()) {
	r.cleanupFns = append(r.cleanupFns, fn)
}
