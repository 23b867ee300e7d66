// Package app wires the signal registry, queues, UI snapshot buffer,
// worker manager, and the UI-thread script engine into the single
// process described by spec.md §2, and implements its top-level Run
// loop, reload, and status surfaces.
package app

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/atomic"

	"github.com/signalforge/engine/alert"
	"github.com/signalforge/engine/errors"
	"github.com/signalforge/engine/internal/config"
	"github.com/signalforge/engine/internal/telemetrylog"
	"github.com/signalforge/engine/script"
	"github.com/signalforge/engine/signal"
	"github.com/signalforge/engine/snapshot"
	"github.com/signalforge/engine/worker"
)

// Engine is the SignalForge process: one SignalRegistry, one UiSnapshot
// buffer, one WorkerManager, and one UI-thread script engine, running
// the per-frame loop of spec.md §2 until told to stop.
type Engine struct {
	cfg *config.Config

	registry   *signal.Registry
	uiSnapshot *snapshot.Buffer
	manager    *worker.Manager
	alerts     *alert.Registry
	ui         *uiRuntime
	uiEngine   *script.Engine

	running atomic.Bool
}

// New builds an Engine from cfg but does not yet load any scripts or
// start any workers — call Run for that.
func New(cfg *config.Config) *Engine {
	mode := signal.Live
	if cfg.Signals.DefaultMode == "offline" {
		mode = signal.Offline
	}

	registry := signal.NewRegistry(cfg.Signals.LiveCapacity, mode)
	uiSnapshot := snapshot.NewBuffer()
	workerCfg := worker.Config{
		SchedulerIdleSleep: cfg.Workers.SchedulerIdleSleep,
		SharedBufferBytes:  cfg.Script.SharedBufferBytes,
		SignalQueueCap:     cfg.Queues.SignalQueueCapacity,
		EventQueueCap:      cfg.Queues.EventQueueCapacity,
		PushRetryBudget:    cfg.Queues.PushRetryBudget,
	}
	manager := worker.NewManager(registry, uiSnapshot, workerCfg, cfg.Workers.JoinTimeout)
	alerts := alert.NewRegistry()

	e := &Engine{
		cfg:        cfg,
		registry:   registry,
		uiSnapshot: uiSnapshot,
		manager:    manager,
		alerts:     alerts,
		ui:         newUIRuntime(registry, uiSnapshot, manager, alerts),
	}
	registry.SetOfflineBudgetHook(e.onOfflineBudget)
	return e
}

// onOfflineBudget mirrors the teacher's checkMemoryPressure
// (pulse/async/system_metrics.go): once the cheap point-count estimate
// crosses the configured budget, it samples actual system memory via
// gopsutil and logs both figures together, rather than trusting the
// estimate alone.
func (e *Engine) onOfflineBudget(pointCount int64) {
	budget := e.cfg.Signals.OfflineMemoryBudgetBytes
	if budget <= 0 {
		return
	}
	// A Point is two float64s; approximate bytes as pointCount*16 without
	// walking every series (spec.md's Offline budget is a soft warning,
	// not an enforced limit, so an estimate is sufficient to decide
	// *whether* to sample, even though the sample itself is exact).
	estimated := pointCount * 16
	if estimated <= budget {
		return
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		telemetrylog.SignalWarnw("offline signal storage exceeds configured budget",
			"estimated_bytes", estimated, "budget_bytes", budget, "mem_sample_err", err)
		return
	}
	telemetrylog.SignalWarnw("offline signal storage exceeds configured budget",
		"estimated_bytes", estimated, "budget_bytes", budget,
		"system_used_bytes", vm.Total-vm.Available, "system_total_bytes", vm.Total,
		"system_used_percent", vm.UsedPercent)
}

// Run loads the configured worker and UI bootstrap scripts, starts every
// worker, and drives the frame loop until ctx is cancelled. It returns a
// non-zero-signaling error only for init failures (a bad bootstrap
// path, a script that fails to compile); join-timeout-on-shutdown is
// logged, not returned (spec.md §7 exit code contract).
func (e *Engine) Run(ctx context.Context, frameInterval time.Duration) error {
	uiWasm, err := os.ReadFile(e.cfg.Script.UIBootstrapPath)
	if err != nil {
		return errors.Wrapf(err, "reading ui bootstrap %q", e.cfg.Script.UIBootstrapPath)
	}
	uiEngine, err := script.New(ctx, uiWasm, e.ui)
	if err != nil {
		return errors.Wrap(err, "compiling ui bootstrap script")
	}
	e.uiEngine = uiEngine

	for _, path := range e.cfg.Script.BootstrapPaths {
		wasmBytes, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading worker bootstrap %q", path)
		}
		if _, err := e.manager.Spawn(ctx, path, wasmBytes); err != nil {
			return errors.Wrapf(err, "spawning worker for %q", path)
		}
	}

	e.running.Store(true)
	e.ui.running.Store(true)
	defer e.ui.running.Store(false)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case now := <-ticker.C:
			e.RunFrame(now)
		}
	}
}

// RunFrame executes one iteration of the frame loop (spec.md §2): drain
// worker queues into the registry and draft UI state, publish the new
// snapshot, then run the UI script's on_frame callbacks and alerts
// against it.
func (e *Engine) RunFrame(now time.Time) {
	e.manager.RunFrame()
	e.ui.advanceFrame(now)
}

func (e *Engine) shutdown() {
	e.running.Store(false)
	e.manager.StopAll(context.Background())
	e.ui.runCleanups()
	if e.uiEngine != nil {
		_ = e.uiEngine.Close(context.Background())
	}
	telemetrylog.Sync()
}

// ReloadAll reinitializes every worker's and the UI thread's script
// engine from their bootstrap paths, running every existing cleanup
// first (spec.md §7's status/ReloadAll operation). No script error
// state is kept, so there is none to clear.
func (e *Engine) ReloadAll(ctx context.Context) error {
	e.ui.runCleanups()
	e.ui.cleanupFns = nil
	e.ui.frameCallbacks = nil
	e.ui.packetCallbacks = make(map[string][]func(t float64) (float64, bool))

	uiWasm, err := os.ReadFile(e.cfg.Script.UIBootstrapPath)
	if err != nil {
		return errors.Wrapf(err, "reading ui bootstrap %q", e.cfg.Script.UIBootstrapPath)
	}
	if e.uiEngine != nil {
		_ = e.uiEngine.Close(ctx)
	}
	uiEngine, err := script.New(ctx, uiWasm, e.ui)
	if err != nil {
		return errors.Wrap(err, "recompiling ui bootstrap script")
	}
	e.uiEngine = uiEngine

	for _, rt := range e.manager.Runtimes() {
		wasmBytes, err := os.ReadFile(rt.Name)
		if err != nil {
			telemetrylog.WorkerWarnw("reload: could not re-read bootstrap path", "worker", rt.Name, "err", err)
			continue
		}
		rt.RunCleanups()
		if err := rt.LoadScript(ctx, wasmBytes); err != nil {
			telemetrylog.WorkerWarnw("reload failed for worker", "worker", rt.Name, "err", err)
		}
	}
	return nil
}

// WorkerStatus is one row of the status surface (spec.md §7): a
// worker's id, name and lifecycle state. It carries no script error.
type WorkerStatus struct {
	ID    uint64
	Name  string
	State string
}

// Status returns a snapshot of every worker's lifecycle state for the
// CLI's status command.
func (e *Engine) Status() []WorkerStatus {
	runtimes := e.manager.Runtimes()
	out := make([]WorkerStatus, 0, len(runtimes))
	for _, rt := range runtimes {
		out = append(out, WorkerStatus{ID: rt.ID, Name: rt.Name, State: rt.State().String()})
	}
	return out
}

// Registry exposes the shared signal registry, e.g. for the datasource
// package's ingestion loop which runs outside the script API.
func (e *Engine) Registry() *signal.Registry { return e.registry }

// UISnapshot exposes the shared UI snapshot buffer.
func (e *Engine) UISnapshot() *snapshot.Buffer { return e.uiSnapshot }

// Manager exposes the worker manager.
func (e *Engine) Manager() *worker.Manager { return e.manager }
