package worker

import (
	"context"
	"os"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
	"golang.org/x/sync/errgroup"

	"github.com/signalforge/engine/errors"
	"github.com/signalforge/engine/internal/telemetrylog"
	"github.com/signalforge/engine/queue"
	"github.com/signalforge/engine/signal"
	"github.com/signalforge/engine/snapshot"
)

// Manager is the WorkerManager of spec.md §4.5/§4.9: it owns every
// worker Runtime, drives the per-UI-frame drain/apply/publish cycle
// (spec.md §2 step), and coordinates bounded-timeout shutdown.
type Manager struct {
	mu deadlock.Mutex

	registry   *signal.Registry
	uiSnapshot *snapshot.Buffer
	cfg        Config

	runtimes map[uint64]*Runtime
	nextID   uint64

	joinTimeout time.Duration

	draft *snapshot.State
}

// NewManager creates an empty manager bound to the process-wide signal
// registry and UI snapshot buffer.
func NewManager(registry *signal.Registry, uiSnapshot *snapshot.Buffer, cfg Config, joinTimeout time.Duration) *Manager {
	return &Manager{
		registry:    registry,
		uiSnapshot:  uiSnapshot,
		cfg:         cfg,
		runtimes:    make(map[uint64]*Runtime),
		joinTimeout: joinTimeout,
		draft:       freshDraftState(),
	}
}

func freshDraftState() *snapshot.State {
	return &snapshot.State{
		Toggles:           make(map[string]bool),
		TextInputs:        make(map[string]string),
		ButtonClicked:     make(map[string]bool),
		FileDialogResults: make(map[string]string),
	}
}

// Spawn creates a new worker Runtime, loads wasmBytes into its script
// engine, and starts its scheduler loop on a dedicated goroutine. The
// Runtime is given a spawnWorker closure that reads the named source
// file and calls Spawn again, so a running script can spawn a sibling
// worker via spawn_worker.
func (m *Manager) Spawn(ctx context.Context, name string, wasmBytes []byte) (*Runtime, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	rt := NewRuntime(id, name, m.cfg, m.registry, m.uiSnapshot, func(source string) (uint64, error) {
		childBytes, err := os.ReadFile(source)
		if err != nil {
			return 0, errors.Wrapf(err, "spawn_worker: reading %q", source)
		}
		child, err := m.Spawn(ctx, source, childBytes)
		if err != nil {
			return 0, err
		}
		return child.ID, nil
	})

	if err := rt.LoadScript(ctx, wasmBytes); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.runtimes[id] = rt
	m.mu.Unlock()

	rt.SetState(Running)
	rt.Start()
	telemetrylog.WorkerInfow("worker spawned", "id", id, "name", name)

	go m.runLoop(rt)
	return rt, nil
}

// runLoop drives one worker's cooperative scheduler until it is stopped
// and every task has unwound (spec.md §4.5 — one goroutine's worth of
// concurrency per worker, dispatched by the scheduler, not the Go
// runtime, even though tasks themselves are goroutines).
func (m *Manager) runLoop(rt *Runtime) {
	for {
		ran := rt.sched.RunOnce(time.Now())
		if rt.State() == Stopping && rt.sched.AllDone() {
			return
		}
		if !ran {
			time.Sleep(rt.sched.IdleSleep())
		}
	}
}

// StopAll transitions every worker to Stopping, waits up to the
// configured join timeout for their schedulers to drain, drains their
// queues one last time, runs cleanups, and marks them Joined. It does
// not close the workers' script engines. A timeout is logged but does
// not change the process exit code (spec.md §7).
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	runtimes := make([]*Runtime, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		runtimes = append(runtimes, rt)
	}
	m.mu.Unlock()

	for _, rt := range runtimes {
		rt.SetState(Stopping)
		rt.Stop()
	}

	joinCtx, cancel := context.WithTimeout(ctx, m.joinTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(joinCtx)
	for _, rt := range runtimes {
		rt := rt
		g.Go(func() error {
			ticker := time.NewTicker(time.Millisecond)
			defer ticker.Stop()
			for {
				if rt.sched.AllDone() {
					return nil
				}
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		telemetrylog.WorkerWarnw("join timeout exceeded, proceeding with cleanup anyway", "err", err)
	}

	// Final drain: every update and UI event pushed before cancellation
	// was observed reaches the registry and the published snapshot.
	m.RunFrame()

	for _, rt := range runtimes {
		rt.RunCleanups()
		rt.SetState(Joined)
		telemetrylog.WorkerInfow("worker joined", "id", rt.ID, "name", rt.Name)
	}
}

// RunFrame performs one UI-thread frame's drain/apply/publish cycle
// (spec.md §2): drain each worker's SignalQueue into the shared
// Registry, drain each worker's EventQueue into a draft UI state, then
// publish the composed snapshot and clear the button edges it carried.
// An update whose id the Registry rejects is logged and skipped — the
// frame always completes.
func (m *Manager) RunFrame() {
	m.mu.Lock()
	runtimes := make([]*Runtime, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		runtimes = append(runtimes, rt)
	}
	m.mu.Unlock()

	for _, rt := range runtimes {
		rt.signalQ.Drain(0, func(u signal.Update) {
			if err := m.registry.Append(u.SignalID, u.Time, u.Value); err != nil {
				telemetrylog.SignalWarnw("dropping update for unknown id", "id", u.SignalID, "worker", rt.Name)
			}
		})
	}

	m.mu.Lock()
	for _, rt := range runtimes {
		rt.eventQ.Drain(0, func(ev queue.UIEvent) { applyEvent(m.draft, ev) })
	}
	m.uiSnapshot.Publish(m.draft)
	clearButtonEdges(m.draft)
	m.mu.Unlock()
}

func clearButtonEdges(s *snapshot.State) {
	for k := range s.ButtonClicked {
		delete(s.ButtonClicked, k)
	}
}

func applyEvent(s *snapshot.State, ev queue.UIEvent) {
	switch ev.Kind {
	case queue.SetToggle:
		s.Toggles[ev.Title] = ev.Bool
	case queue.SetText:
		s.TextInputs[ev.Title] = ev.Text
	case queue.SetImageBuffer:
		// Image payloads are applied by the UI rendering layer (out of
		// scope here); the draft state only tracks widget-visible scalars.
	}
}

// SetToggleDraft and SetTextInputDraft let the UI-thread script write
// directly into the draft UI state, bypassing the worker EventQueue path
// (the UI thread is the sole writer of its own frame, so there is no
// cross-thread race to buffer against the way there is for a worker).
func (m *Manager) SetToggleDraft(title string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft.Toggles[title] = v
}

func (m *Manager) SetTextInputDraft(title, v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft.TextInputs[title] = v
}

// SetButtonClicked records a this-frame button click edge, applied by
// the UI input layer before RunFrame runs. RunFrame clears it right
// after publishing (button clicks are edge-triggered: a script sees
// "clicked" true for exactly one frame).
func (m *Manager) SetButtonClicked(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft.ButtonClicked[title] = true
}

// Runtimes returns a snapshot slice of every worker currently owned by
// the manager, for status reporting.
func (m *Manager) Runtimes() []*Runtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Runtime, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		out = append(out, rt)
	}
	return out
}
