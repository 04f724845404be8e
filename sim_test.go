package kos

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCriticalNesting(t *testing.T) {
	r := require.New(t)

	k := NewSim()

	outer := k.Enter()
	inner := k.Enter()
	k.Exit(inner)
	k.Exit(outer)

	r.Panics(func() { k.Exit(outer) })
}

func TestCriticalOutOfOrderExit(t *testing.T) {
	r := require.New(t)

	k := NewSim()

	outer := k.Enter()
	k.Enter()

	// Exiting the outer section while the inner one is held.
	r.Panics(func() { k.Exit(outer) })
}

func TestSleepInsideCriticalPanics(t *testing.T) {
	r := require.New(t)

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	k.Spawn("t", 5, func(*Task) {
		k.Enter()
		_ = sem.Pend(k, 10)
	})

	r.Panics(func() { k.Run(context.Background()) })
}

func TestWakeLinkedTaskPanics(t *testing.T) {
	r := require.New(t)

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	waiter := k.Spawn("w", 2, func(*Task) {
		_ = sem.Pend(k, WaitForever)
	})

	k.Spawn("bad", 9, func(*Task) {
		// Waking a task without detaching it from its wait queue
		// leaves a stale link; the sim refuses.
		k.Wake(waiter, 0, 0)
	})

	r.Panics(func() { k.Run(context.Background()) })
}

func TestDoubleWakeIsNoOp(t *testing.T) {
	r := require.New(t)

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	var err error
	waiter := k.Spawn("w", 2, func(*Task) {
		err = sem.Pend(k, WaitForever)
	})

	k.Spawn("rel", 9, func(*Task) {
		r.NoError(sem.Release(k))
		// Already runnable; a second wake must not double-queue it.
		k.Wake(waiter, 0, 0)
	})

	k.Run(context.Background())

	r.NoError(err)
	r.Equal(1, len(k.Trace().Ops(TraceWake)))
}

func TestDeadlockPanics(t *testing.T) {
	r := require.New(t)

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	k.Spawn("stuck", 5, func(*Task) {
		_ = sem.Pend(k, WaitForever)
	})

	// Nobody will ever release; the sim makes the hang loud.
	r.Panics(func() { k.Run(context.Background()) })
}

func TestRunReapsUnfinishedTasks(t *testing.T) {
	r := require.New(t)

	before := runtime.NumGoroutine()

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	k.Spawn("stuck", 5, func(*Task) {
		_ = sem.Pend(k, WaitForever)
	})

	r.Panics(func() { k.Run(context.Background()) })

	// The stuck task's coroutine was cancelled on the way out of Run;
	// its goroutine must not outlive the run.
	deadline := time.Now().Add(time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	r.LessOrEqual(runtime.NumGoroutine(), before)
}

func TestReleasePreemptsLowerPriorityCaller(t *testing.T) {
	r := require.New(t)

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	var order []string
	k.Spawn("hi", 1, func(*Task) {
		r.NoError(sem.Pend(k, WaitForever))
		order = append(order, "hi")
	})

	k.Spawn("lo", 8, func(*Task) {
		r.NoError(sem.Release(k))
		// The waiter outranks us, so it ran to completion before
		// release returned control here.
		order = append(order, "lo")
	})

	k.Run(context.Background())

	r.Equal([]string{"hi", "lo"}, order)
}

func TestReleaseDoesNotPreemptMoreUrgentCaller(t *testing.T) {
	r := require.New(t)

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	var order []string
	k.Spawn("lo", 8, func(*Task) {
		// Spawn the releaser first so it runs once we block.
		k.Spawn("hi", 1, func(*Task) {
			r.NoError(sem.Release(k))
			// The woken waiter is less urgent than us; release
			// returned without a reschedule pass.
			order = append(order, "hi")
		})

		r.NoError(sem.Pend(k, WaitForever))
		order = append(order, "lo")
	})

	k.Run(context.Background())

	r.Equal([]string{"hi", "lo"}, order)
}

func TestSpawnDuringRun(t *testing.T) {
	r := require.New(t)

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	var err error
	k.Spawn("parent", 5, func(*Task) {
		k.Spawn("child", 3, func(*Task) {
			r.NoError(sem.Release(k))
		})
		// The child runs once we suspend.
		err = sem.Pend(k, WaitForever)
	})

	k.Run(context.Background())

	r.NoError(err)
}

func TestNextReadyPrefersCurrentOnTie(t *testing.T) {
	r := require.New(t)

	k := NewSim()

	var next *Task
	var cur *Task
	cur = k.Spawn("a", 4, func(self *Task) {
		k.Spawn("b", 4, func(*Task) {})
		next = k.NextReady(0)
		r.Same(self, cur)
	})

	k.Run(context.Background())

	r.Same(cur, next)
}

func TestTraceRoundTrip(t *testing.T) {
	r := require.New(t)

	k := NewSim()
	var sem Semaphore
	r.NoError(sem.Init(0))

	k.Spawn("w", 3, func(*Task) {
		_ = sem.Pend(k, 7)
	})

	k.Run(context.Background())

	data, err := k.Trace().Encode()
	r.NoError(err)
	events, err := DecodeTrace(data)
	r.NoError(err)
	r.Equal(k.Trace().Events(), events)

	expires := k.Trace().Ops(TraceExpire)
	r.Len(expires, 1)
	r.Equal("w", expires[0].Task)
	r.EqualValues(7, expires[0].Tick)
	r.EqualValues(3, expires[0].Prio)
}
