// Package snapshot implements UiSnapshot: the double (here, triple)
// buffered immutable view of user-visible UI state described in
// spec.md §4.4. Readers (any worker) call Read, which is lock-free but
// not wait-free (it retries if a Publish swaps the slot between its
// load and its pin); the UI thread calls Publish once per frame.
package snapshot

import (
	"time"

	"go.uber.org/atomic"
)

// State is one immutable view of UI widget state: toggles, text inputs,
// button edge-triggers ("clicked this frame"), and file-dialog results.
// A State returned by Buffer.Read must never be mutated by the caller —
// it is shared with every other reader holding the same pointer.
type State struct {
	Toggles           map[string]bool
	TextInputs        map[string]string
	ButtonClicked     map[string]bool
	FileDialogResults map[string]string

	owner *slot
}

func newEmptyState() *State {
	return &State{
		Toggles:           make(map[string]bool),
		TextInputs:        make(map[string]string),
		ButtonClicked:     make(map[string]bool),
		FileDialogResults: make(map[string]string),
	}
}

// clone deep-copies s into the destination state (reused across
// publishes to avoid an allocation per frame).
func clone(dst *State, src *State) {
	for k := range dst.Toggles {
		delete(dst.Toggles, k)
	}
	for k := range dst.TextInputs {
		delete(dst.TextInputs, k)
	}
	for k := range dst.ButtonClicked {
		delete(dst.ButtonClicked, k)
	}
	for k := range dst.FileDialogResults {
		delete(dst.FileDialogResults, k)
	}
	for k, v := range src.Toggles {
		dst.Toggles[k] = v
	}
	for k, v := range src.TextInputs {
		dst.TextInputs[k] = v
	}
	for k, v := range src.ButtonClicked {
		dst.ButtonClicked[k] = v
	}
	for k, v := range src.FileDialogResults {
		dst.FileDialogResults[k] = v
	}
}

// slot is one rotation slot: a reusable State plus a pin count tracking
// how many readers currently hold its pointer. Publish never reuses a
// slot whose refs is above zero.
type slot struct {
	state *State
	refs  atomic.Int32
}

func newSlot() *slot {
	s := &slot{state: newEmptyState()}
	s.state.owner = s
	return s
}

// numSlots is the initial rotation width: 3, not 2, so the UI thread can
// begin composing the next frame's state while the slowest worker is
// still reading a pointer pinned two frames ago. Publish grows the pool
// past this floor if every existing slot is still pinned.
const numSlots = 3

// publishWaitAttempts bounds how many short spins Publish makes looking
// for a free slot before it gives up waiting and grows the pool instead.
const publishWaitAttempts = 4

const publishWaitStep = 50 * time.Microsecond

// Buffer is the atomic double/triple buffer. There is exactly one
// publisher (the UI thread runtime, once per frame) and arbitrarily
// many concurrent readers (any worker, at any time).
type Buffer struct {
	current atomic.Pointer[slot]
	slots   []*slot // publisher-owned: only Publish ever reads/appends this
}

// NewBuffer creates a Buffer with an empty initial state visible to
// readers immediately.
func NewBuffer() *Buffer {
	b := &Buffer{slots: make([]*slot, numSlots)}
	for i := range b.slots {
		b.slots[i] = newSlot()
	}
	b.current.Store(b.slots[0])
	return b
}

// Read returns the current published State, pinning its slot so Publish
// will not reuse it while the caller holds the pointer. Lock-free (not
// strictly wait-free: a concurrent reclaim can force a retry, bounded by
// the number of Publish calls racing the read): load current, pin it,
// then re-load current and confirm it still matches before trusting the
// pin. Without the re-check, a reader could load a slot pointer, get
// preempted before incrementing its refs, have two Publish calls run in
// that gap (the first moves current away from the slot, the second sees
// refs==0 and reclaims it into fresh data), and then increment refs and
// return torn content. Re-validating after Inc closes that window: once
// current is confirmed to still be the pinned slot, any future Publish's
// freeSlot scan will see this reader's ref and skip it, so the content
// cannot change again until Release. The returned pointer remains valid
// (and immutable) for as long as the caller holds it, even across
// further Publish calls — call Release when done with it.
func (b *Buffer) Read() *State {
	for {
		s := b.current.Load()
		s.refs.Inc()
		if b.current.Load() == s {
			return s.state
		}
		s.refs.Dec()
	}
}

// Release unpins a State previously returned by Read, letting Publish
// reuse its slot once no other reader still holds it. Safe to call with
// nil or with a State that was never pinned.
func (b *Buffer) Release(st *State) {
	if st == nil || st.owner == nil {
		return
	}
	st.owner.refs.Dec()
}

// Publish copies newValue into a slot not currently pinned by any
// reader and atomically swaps the read pointer to it. If every existing
// slot is pinned, Publish waits briefly for one to free up, then grows
// the pool by one slot rather than ever overwriting a slot a reader
// might still be dereferencing (spec.md §4.4: "rotating among ≥2 slots
// and waiting if necessary"). Only the UI thread calls Publish.
func (b *Buffer) Publish(newValue *State) {
	cur := b.current.Load()
	for attempt := 0; attempt < publishWaitAttempts; attempt++ {
		if dst := b.freeSlot(cur); dst != nil {
			clone(dst.state, newValue)
			b.current.Store(dst)
			return
		}
		if attempt < publishWaitAttempts-1 {
			time.Sleep(publishWaitStep)
		}
	}

	ns := newSlot()
	clone(ns.state, newValue)
	b.slots = append(b.slots, ns)
	b.current.Store(ns)
}

// freeSlot returns a slot other than cur with no active pins, or nil if
// none exists right now.
func (b *Buffer) freeSlot(cur *slot) *slot {
	for _, s := range b.slots {
		if s == cur {
			continue
		}
		if s.refs.Load() == 0 {
			return s
		}
	}
	return nil
}
