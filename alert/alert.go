// Package alert implements on_alert: a cooldown-gated condition/action
// pair evaluated once per UI frame (spec.md §6, §8 scenario 4).
//
// Grounded on the periodic-check idiom of the teacher's scheduled-ticker
// package: a condition polled on a fixed cadence, with an explicit
// "don't fire again until enough time has passed" guard rather than an
// edge-triggered signal.
package alert

import "time"

// Alert is one on_alert registration: a named condition/action pair
// gated by a minimum interval between firings.
type Alert struct {
	Name     string
	Cooldown time.Duration
	Cond     func() bool
	Action   func()

	lastTriggered time.Time
	hasTriggered  bool
}

// New creates an Alert that may fire immediately the first time Check
// observes Cond() true (no prior firing to cool down from).
func New(name string, cooldown time.Duration, cond func() bool, action func()) *Alert {
	return &Alert{Name: name, Cooldown: cooldown, Cond: cond, Action: action}
}

// Check evaluates the alert against now: if Cond() is true and the
// cooldown has elapsed since the last firing (or it has never fired),
// it runs Action and records now as the new last-fired time. Returns
// whether it fired.
func (a *Alert) Check(now time.Time) bool {
	if !a.Cond() {
		return false
	}
	if a.hasTriggered && now.Sub(a.lastTriggered) < a.Cooldown {
		return false
	}
	a.lastTriggered = now
	a.hasTriggered = true
	a.Action()
	return true
}

// Registry holds every alert registered by the UI-thread script, checked
// once per frame.
type Registry struct {
	alerts []*Alert
}

// NewRegistry creates an empty alert registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds a new alert, wiring cooldownSeconds into a time.Duration.
func (r *Registry) Register(name string, cooldownSeconds float64, cond func() bool, action func()) {
	r.alerts = append(r.alerts, New(name, time.Duration(cooldownSeconds*float64(time.Second)), cond, action))
}

// CheckAll evaluates every registered alert against now, in registration
// order. A panicking Cond/Action is caught and logged per-alert so one
// bad alert can't take down the rest of the frame (spec.md §7).
func (r *Registry) CheckAll(now time.Time, onPanic func(name string, recovered interface{})) {
	for _, a := range r.alerts {
		func() {
			defer func() {
				if rec := recover(); rec != nil && onPanic != nil {
					onPanic(a.Name, rec)
				}
			}()
			a.Check(now)
		}()
	}
}

// Len returns the number of registered alerts.
func (r *Registry) Len() int { return len(r.alerts) }
