package worker

import (
	"time"

	"github.com/signalforge/engine/errors"
)

// suspendKind tags the message a task sends back to the scheduler when
// it reaches a suspension point.
type suspendKind int

const (
	suspendReady suspendKind = iota
	suspendSleeping
	suspendWaitingIO
	suspendDone
	suspendErrored
)

type suspendMsg struct {
	kind      suspendKind
	deadline  time.Time
	predicate func() bool
	err       error
}

// Task is a cooperatively scheduled logical thread within a worker
// (spec.md §3). It is owned entirely by the Scheduler that spawned it
// and never crosses workers.
type Task struct {
	ID     uint64
	Name   string
	status Status
	err    error

	deadline  time.Time
	predicate func() bool

	resumeCh  chan struct{}
	suspendCh chan suspendMsg
	cancelled bool
}

// Status returns the task's current scheduling state.
func (t *Task) Status() Status { return t.status }

// Err returns the error the task finished with, if Status is Errored.
func (t *Task) Err() error { return t.err }

// TaskContext is handed to a task's function body; it is the only way a
// task may suspend. Every method is a suspension point: control returns
// to the Scheduler and the call resumes only when the condition is
// fulfilled, or the worker stops (in which case it returns
// errors.ErrWorkerStopped — tasks must rely on structured cleanup, not a
// second cancellation signal, per spec.md §4.5).
type TaskContext struct {
	task *Task
}

// Yield suspends the task until the scheduler's next ready pass.
func (c *TaskContext) Yield() error {
	return c.suspend(suspendMsg{kind: suspendReady})
}

// SleepSeconds suspends the task until at least d seconds have elapsed.
func (c *TaskContext) SleepSeconds(d float64) error {
	deadline := time.Now().Add(time.Duration(d * float64(time.Second)))
	return c.suspend(suspendMsg{kind: suspendSleeping, deadline: deadline})
}

// WaitIO suspends the task until predicate returns true. predicate is
// polled by the scheduler, not by the task itself, so it must be cheap
// and non-blocking (typically a non-blocking socket read-ready check).
func (c *TaskContext) WaitIO(predicate func() bool) error {
	return c.suspend(suspendMsg{kind: suspendWaitingIO, predicate: predicate})
}

// Cancelled reports whether the worker's stop flag has been observed for
// this task. A task may check this between suspension points to exit a
// tight loop early, though it isn't required to.
func (c *TaskContext) Cancelled() bool {
	return c.task.cancelled
}

func (c *TaskContext) suspend(msg suspendMsg) error {
	c.task.suspendCh <- msg
	<-c.task.resumeCh
	if c.task.cancelled {
		return errors.ErrWorkerStopped
	}
	return nil
}

// Scheduler is the cooperative scheduler inside one worker: a ready
// queue, a sleeping set keyed by deadline, and a list of IO-waiters, all
// driven by the worker's own goroutine calling RunOnce in a loop (spec.md
// §4.5). Tasks themselves run on their own goroutines but only one task
// executes between dispatch and its next suspension at a time — the
// Scheduler resumes a task and blocks until it suspends again before
// dispatching the next, so "many logical tasks, one OS thread's worth of
// concurrency" holds even though Go's runtime technically schedules the
// goroutines.
type Scheduler struct {
	idleSleep time.Duration

	tasks    map[uint64]*Task
	ready    []*Task
	sleeping []*Task
	waiting  []*Task
	nextID   uint64

	stopped bool
}

// NewScheduler creates an empty scheduler. idleSleep bounds the spin
// when no task ran in a RunOnce pass (spec.md default: 1ms).
func NewScheduler(idleSleep time.Duration) *Scheduler {
	if idleSleep <= 0 {
		idleSleep = time.Millisecond
	}
	return &Scheduler{
		idleSleep: idleSleep,
		tasks:     make(map[uint64]*Task),
	}
}

// Spawn creates a task running fn and places it in the ready queue. fn
// receives a TaskContext through which it may Yield/SleepSeconds/WaitIO;
// it must be finite between suspension points (parsers, packet
// callbacks, and frame callbacks never suspend at all — only
// spawn_task-created tasks do).
func (s *Scheduler) Spawn(name string, fn func(*TaskContext) error) *Task {
	s.nextID++
	t := &Task{
		ID:        s.nextID,
		Name:      name,
		status:    Ready,
		resumeCh:  make(chan struct{}),
		suspendCh: make(chan suspendMsg),
	}
	s.tasks[t.ID] = t
	s.ready = append(s.ready, t)

	go func() {
		<-t.resumeCh // wait for first dispatch
		if t.cancelled {
			t.suspendCh <- suspendMsg{kind: suspendErrored, err: errors.ErrWorkerStopped}
			return
		}
		err := fn(&TaskContext{task: t})
		if err != nil {
			t.suspendCh <- suspendMsg{kind: suspendErrored, err: err}
			return
		}
		t.suspendCh <- suspendMsg{kind: suspendDone}
	}()

	return t
}

// Stop marks the scheduler as stopping: every task still registered is
// injected with a terminal cancellation at its next resumption (spec.md
// §4.5/§5). A task parked in Sleeping or WaitingIO is flushed straight
// into the ready queue rather than left to wait out its deadline or
// predicate, so "cancellation observed at the next suspension point"
// holds for every task, not just ones already ready. RunOnce must still
// be called (by the worker's main loop) until AllDone reports true so
// cancelled tasks actually get the chance to unwind.
func (s *Scheduler) Stop() {
	s.stopped = true
	for _, t := range s.sleeping {
		t.status = Ready
		s.ready = append(s.ready, t)
	}
	s.sleeping = nil
	for _, t := range s.waiting {
		t.status = Ready
		s.ready = append(s.ready, t)
	}
	s.waiting = nil
}

// AllDone reports whether every spawned task has reached Done or
// Errored.
func (s *Scheduler) AllDone() bool {
	for _, t := range s.tasks {
		if t.status != Done && t.status != Errored {
			return false
		}
	}
	return true
}

// RunOnce performs one scheduler loop iteration (spec.md §4.5 steps
// 1-3) and reports whether any task ran.
func (s *Scheduler) RunOnce(now time.Time) bool {
	// 1. Move ready sleepers.
	remaining := s.sleeping[:0]
	for _, t := range s.sleeping {
		if !now.Before(t.deadline) {
			t.status = Ready
			s.ready = append(s.ready, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	s.sleeping = remaining

	// 2. Poll IO-waiters.
	remainingIO := s.waiting[:0]
	for _, t := range s.waiting {
		if t.predicate != nil && t.predicate() {
			t.status = Ready
			s.ready = append(s.ready, t)
		} else {
			remainingIO = append(remainingIO, t)
		}
	}
	s.waiting = remainingIO

	if len(s.ready) == 0 {
		return false
	}

	// 3. Run each ready task to its next suspension point.
	batch := s.ready
	s.ready = nil
	for _, t := range batch {
		if s.stopped {
			t.cancelled = true
		}
		t.resumeCh <- struct{}{}
		msg := <-t.suspendCh
		s.apply(t, msg)
	}
	return true
}

func (s *Scheduler) apply(t *Task, msg suspendMsg) {
	switch msg.kind {
	case suspendReady:
		t.status = Ready
		s.ready = append(s.ready, t)
	case suspendSleeping:
		t.status = Sleeping
		t.deadline = msg.deadline
		s.sleeping = append(s.sleeping, t)
	case suspendWaitingIO:
		t.status = WaitingIO
		t.predicate = msg.predicate
		s.waiting = append(s.waiting, t)
	case suspendDone:
		t.status = Done
	case suspendErrored:
		t.status = Errored
		t.err = msg.err
	}
}

// IdleSleep returns the configured spin-avoidance interval.
func (s *Scheduler) IdleSleep() time.Duration { return s.idleSleep }
