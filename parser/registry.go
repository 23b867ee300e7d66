// Package parser implements the ordered ParserRegistry and the
// zero-copy byte readers exposed to scripts (spec.md §3, §4.5, §6).
package parser

import "github.com/signalforge/engine/internal/telemetrylog"

// Func is a parser callable: given the worker's shared receive buffer
// view, it returns whether it claimed the packet. Parsers never
// suspend; they must be finite (spec.md §5).
type Func func(buf []byte) bool

type entry struct {
	name string
	fn   Func
}

// Registry is the per-worker ordered list of parsers, tried in
// registration order until one claims a packet (spec.md §4.1/§9 — the
// free registration surface is the canonical one; any name-driven
// lookup a caller wants is sugar layered on top, see RegisterNamed).
type Registry struct {
	entries []entry
	warned  bool
}

// NewRegistry creates an empty parser chain.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends fn to the chain under name. Dispatch returns the
// name of the first parser that accepts a packet, and
// worker.Runtime.DeliverPacket uses it as the packet kind that selects
// packet callbacks.
func (r *Registry) Register(name string, fn Func) {
	r.entries = append(r.entries, entry{name: name, fn: fn})
}

// RegisterNamed is sugar over Register, kept only so callers migrating
// from a name-keyed mental model have a direct equivalent; it does not
// introduce a second dispatch mechanism.
func (r *Registry) RegisterNamed(name string, fn Func) { r.Register(name, fn) }

// Dispatch runs the chain against buf in registration order and returns
// the name of the parser that claimed it, or ("", false) if none did.
// An empty parser list rejects every packet and logs once (spec.md §8).
func (r *Registry) Dispatch(buf []byte) (string, bool) {
	for _, e := range r.entries {
		if e.fn(buf) {
			return e.name, true
		}
	}
	if !r.warned {
		r.warned = true
		telemetrylog.Logger.Warnw("packet rejected: no parser claimed it", "buffer_len", len(buf))
	}
	return "", false
}

// Len returns the number of registered parsers.
func (r *Registry) Len() int { return len(r.entries) }
