package signal

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/signalforge/engine/errors"
	"github.com/signalforge/engine/internal/telemetrylog"
)

// IDRegistry is the process-wide, thread-safe name->id allocator of
// spec.md §4.2. Workers resolve a name once (usually at script startup)
// and then call update-by-id on the hot path, avoiding a map lookup per
// update.
//
// IDRegistry is independent of Registry: it only hands out ids. Registry
// embeds one to keep the id<->signal mapping in a single place, but
// nothing ever references back from IDRegistry to Registry, keeping the
// ownership graph acyclic (spec.md §9, "Cyclic ownership").
type IDRegistry struct {
	mu   deadlock.Mutex
	ids  map[string]uint32
	next uint32
}

// NewIDRegistry creates an empty id allocator.
func NewIDRegistry() *IDRegistry {
	return &IDRegistry{ids: make(map[string]uint32)}
}

// GetOrCreate resolves name to an id, assigning a fresh one on first
// call. Idempotent and injective: the same name always maps to the same
// id, and distinct names never collide.
func (r *IDRegistry) GetOrCreate(name string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[name]; ok {
		return id, nil
	}
	if r.next == AbsentID {
		return 0, errors.Wrapf(errors.ErrRegistryFull, "allocating id for %q", name)
	}
	id := r.next
	r.next++
	r.ids[name] = id
	return id, nil
}

// Lookup returns the id for name without creating one, and whether it
// was found. A miss returns AbsentID.
func (r *IDRegistry) Lookup(name string) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[name]
	if !ok {
		return AbsentID, false
	}
	return id, true
}

// Count returns the number of names currently registered.
func (r *IDRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

var loggedUnknown = struct {
	deadlock.Mutex
	seen map[string]bool
}{seen: make(map[string]bool)}

// warnOnce logs an UnknownId/UnknownSignal/UnknownWidget warning at most
// once per key for the lifetime of the process, per spec.md §7.
func warnOnce(key, msg string) {
	loggedUnknown.Lock()
	defer loggedUnknown.Unlock()
	if loggedUnknown.seen[key] {
		return
	}
	loggedUnknown.seen[key] = true
	telemetrylog.SignalWarnw(msg, "key", key)
}
