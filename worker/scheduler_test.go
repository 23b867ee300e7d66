package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalforge/engine/errors"
)

func pump(s *Scheduler, deadline time.Time) {
	for i := 0; i < 10000 && !s.AllDone(); i++ {
		s.RunOnce(deadline)
	}
}

func TestSchedulerRunsTaskToCompletion(t *testing.T) {
	s := NewScheduler(time.Millisecond)
	var ran bool
	task := s.Spawn("t", func(ctx *TaskContext) error {
		ran = true
		return nil
	})
	pump(s, time.Now())
	assert.True(t, ran)
	assert.Equal(t, Done, task.Status())
}

func TestSchedulerYieldResumesNextPass(t *testing.T) {
	s := NewScheduler(time.Millisecond)
	steps := 0
	s.Spawn("t", func(ctx *TaskContext) error {
		steps++
		require.NoError(t, ctx.Yield())
		steps++
		require.NoError(t, ctx.Yield())
		steps++
		return nil
	})
	pump(s, time.Now())
	assert.Equal(t, 3, steps)
}

func TestSchedulerSleepDoesNotResumeBeforeDeadline(t *testing.T) {
	s := NewScheduler(time.Millisecond)
	var resumedAt time.Time
	start := time.Now()
	s.Spawn("t", func(ctx *TaskContext) error {
		require.NoError(t, ctx.SleepSeconds(10))
		resumedAt = time.Now()
		return nil
	})

	// Before the deadline: no run happens.
	ran := s.RunOnce(start.Add(5 * time.Second))
	assert.True(t, ran) // first dispatch always runs (to the sleep point)
	assert.True(t, resumedAt.IsZero())

	ran = s.RunOnce(start.Add(5 * time.Second))
	assert.False(t, ran)
	assert.True(t, resumedAt.IsZero())

	s.RunOnce(start.Add(11 * time.Second))
	assert.False(t, resumedAt.IsZero())
}

func TestSchedulerWaitIOResumesWhenPredicateTrue(t *testing.T) {
	s := NewScheduler(time.Millisecond)
	ready := false
	done := false
	s.Spawn("t", func(ctx *TaskContext) error {
		require.NoError(t, ctx.WaitIO(func() bool { return ready }))
		done = true
		return nil
	})

	s.RunOnce(time.Now())
	assert.False(t, done)
	s.RunOnce(time.Now())
	assert.False(t, done)

	ready = true
	s.RunOnce(time.Now())
	assert.True(t, done)
}

func TestSchedulerStopCancelsAtNextSuspension(t *testing.T) {
	s := NewScheduler(time.Millisecond)
	var gotErr error
	s.Spawn("t", func(ctx *TaskContext) error {
		if err := ctx.Yield(); err != nil {
			gotErr = err
			return err
		}
		return nil
	})

	s.RunOnce(time.Now()) // reach the first yield
	s.Stop()
	s.RunOnce(time.Now()) // observes cancellation at resumption

	assert.ErrorIs(t, gotErr, errors.ErrWorkerStopped)
	task := s.tasks[1]
	assert.Equal(t, Errored, task.Status())
}

func TestSchedulerStopFlushesSleepingAndWaitingTasks(t *testing.T) {
	s := NewScheduler(time.Millisecond)
	var sleepErr, ioErr error
	s.Spawn("sleeper", func(ctx *TaskContext) error {
		sleepErr = ctx.SleepSeconds(3600)
		return sleepErr
	})
	s.Spawn("waiter", func(ctx *TaskContext) error {
		ioErr = ctx.WaitIO(func() bool { return false })
		return ioErr
	})

	start := time.Now()
	s.RunOnce(start) // reach SleepSeconds/WaitIO
	assert.Len(t, s.sleeping, 1)
	assert.Len(t, s.waiting, 1)

	s.Stop()
	assert.Empty(t, s.sleeping)
	assert.Empty(t, s.waiting)

	// Neither the sleep deadline nor the IO predicate has actually been
	// satisfied, yet one more pass must unwind both tasks.
	s.RunOnce(start)
	assert.ErrorIs(t, sleepErr, errors.ErrWorkerStopped)
	assert.ErrorIs(t, ioErr, errors.ErrWorkerStopped)
	assert.True(t, s.AllDone())
}

func TestSchedulerAllDoneEventuallyTrue(t *testing.T) {
	s := NewScheduler(time.Millisecond)
	for i := 0; i < 5; i++ {
		s.Spawn("t", func(ctx *TaskContext) error {
			return ctx.Yield()
		})
	}
	s.Stop()
	pump(s, time.Now())
	assert.True(t, s.AllDone())
}
