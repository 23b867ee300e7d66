package signal

import (
	"sync/atomic"

	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/signalforge/engine/errors"
)

// signalEntry is one named signal: stable name, immutable id, and its
// mutable series data (which is recreated, not merely emptied, whenever
// the default storage mode changes under ClearAll).
type signalEntry struct {
	id     uint32
	name   string
	mode   Mode
	data   series
	active int32 // atomic: >0 while referenced by a plot or packet callback
}

// Registry is the SignalRegistry of spec.md §4.1: the shared, bounded
// time-series store with two storage modes and strict single-writer
// discipline. A single mutex protects the name->id map and the signal
// set; points are written only by the UI-thread drain
// (worker.Manager.RunFrame), and the mutex is never held during script
// execution or blocking I/O — callers must copy what they read before
// releasing the lock if they need it past the call.
type Registry struct {
	mu deadlock.Mutex

	ids          *IDRegistry
	byID         map[uint32]*signalEntry
	liveCapacity int
	defaultMode  Mode

	offlinePoints    atomic.Int64 // aggregate point count across Offline signals
	offlineBudgetLog func(count int64) // injected hook, see SetOfflineBudgetHook
}

// NewRegistry creates an empty registry. liveCapacity is the default
// ring buffer length for signals created in Live mode.
func NewRegistry(liveCapacity int, defaultMode Mode) *Registry {
	return &Registry{
		ids:          NewIDRegistry(),
		byID:         make(map[uint32]*signalEntry),
		liveCapacity: liveCapacity,
		defaultMode:  defaultMode,
	}
}

// SetOfflineBudgetHook installs a callback invoked (outside the registry
// mutex) after every append to an Offline signal, with the new aggregate
// Offline point count; the registry itself knows no budget. Used by
// app.Engine to compare the count against the configured budget and log
// a gopsutil-informed warning; nil by default (no-op).
func (r *Registry) SetOfflineBudgetHook(fn func(count int64)) {
	r.mu.Lock()
	r.offlineBudgetLog = fn
	r.mu.Unlock()
}

// GetOrCreateID is idempotent: the first call for a name allocates an id
// and creates an empty signal in the requested mode; subsequent calls
// return the same id without altering the signal's mode or data.
func (r *Registry) GetOrCreateID(name string, mode Mode) (uint32, error) {
	id, err := r.ids.GetOrCreate(name)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		r.byID[id] = &signalEntry{
			id:   id,
			name: name,
			mode: mode,
			data: newSeries(mode, r.liveCapacity),
		}
	}
	return id, nil
}

// GetOrCreateIDDefault is GetOrCreateID using the registry's current
// default storage mode (what get_signal_id / update_signal use when the
// script does not ask for a specific mode via create_signal).
func (r *Registry) GetOrCreateIDDefault(name string) (uint32, error) {
	r.mu.Lock()
	mode := r.defaultMode
	r.mu.Unlock()
	return r.GetOrCreateID(name, mode)
}

// Exists reports whether name has ever been registered.
func (r *Registry) Exists(name string) bool {
	_, ok := r.ids.Lookup(name)
	return ok
}

// Append writes one point to the signal identified by id. Fails with
// ErrUnknownID if id was never registered via GetOrCreateID.
func (r *Registry) Append(id uint32, t, v float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return errors.WithDetail(errors.ErrUnknownID, "id was never registered")
	}
	wasOffline := e.mode == Offline
	e.data.push(t, v)

	if wasOffline {
		n := r.offlinePoints.Add(1)
		if hook := r.offlineBudgetLog; hook != nil {
			r.mu.Unlock()
			hook(n)
			r.mu.Lock() // re-acquired for the deferred Unlock
		}
	}
	return nil
}

// ClearAll atomically wipes every signal's data, keeps ids stable, and
// sets newDefaultMode as the mode for signals created afterward.
// Existing signals are recreated empty in newDefaultMode, matching
// spec.md §8's round-trip law ("every signal created subsequently has
// storage mode m and empty data; previously existing signals are empty
// and in mode m").
func (r *Registry) ClearAll(newDefaultMode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaultMode = newDefaultMode
	for _, e := range r.byID {
		e.mode = newDefaultMode
		e.data = newSeries(newDefaultMode, r.liveCapacity)
	}
	r.offlinePoints.Store(0)
}

// ClearAllKeepMode clears every signal's data without changing the
// registry's current default storage mode, the form the script API's
// clear_all_signals exposes (set_default_signal_mode changes the mode
// separately).
func (r *Registry) ClearAllKeepMode() {
	r.mu.Lock()
	mode := r.defaultMode
	r.mu.Unlock()
	r.ClearAll(mode)
}

// SetDefaultMode changes the storage mode assigned to signals created
// after this call, without touching any existing signal's data.
func (r *Registry) SetDefaultMode(m Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultMode = m
}

// SnapshotTail returns the last (t, v) point written to id, if any.
func (r *Registry) SnapshotTail(id uint32) (Point, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return Point{}, false
	}
	return e.data.tail()
}

// SnapshotWindow returns the most recent n points in chronological
// order. Fewer than n are returned if the signal has fewer points.
func (r *Registry) SnapshotWindow(id uint32, n int) []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil
	}
	return e.data.window(n)
}

// IsActive reports whether id is currently referenced by a UI plot or
// has a registered packet callback, letting scripts skip work for
// signals nobody is watching.
func (r *Registry) IsActive(id uint32) bool {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return atomic.LoadInt32(&e.active) > 0
}

// MarkActive increments id's active-reference count (e.g. a plot binds
// to it, or a packet callback is registered for its derived name).
func (r *Registry) MarkActive(id uint32) {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if ok {
		atomic.AddInt32(&e.active, 1)
	}
}

// UnmarkActive decrements id's active-reference count.
func (r *Registry) UnmarkActive(id uint32) {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if ok && atomic.LoadInt32(&e.active) > 0 {
		atomic.AddInt32(&e.active, -1)
	}
}

// NameOf returns the stable textual name for id, for diagnostics.
func (r *Registry) NameOf(id uint32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return e.name, true
}

// Len returns the number of distinct signals ever created.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// IDs returns the ids of the registry, for use by the IDRegistry when a
// caller resolves a name without going through GetOrCreateID (e.g.
// get_signal_id on a signal created elsewhere).
func (r *Registry) IDs() *IDRegistry {
	return r.ids
}
