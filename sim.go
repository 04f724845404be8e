package kos

import (
	"context"
	"fmt"
	"runtime/trace"

	"github.com/webriots/coro"
)

const (
	simTraceTaskType = "kos-sim"
	simTraceCategory = "kos"
)

// never is the deadline of a task sleeping with WaitForever.
const never = ^uint64(0)

// SimKernel is a deterministic, single-threaded host implementation of
// the Kernel contract. Every task runs as a coroutine; the run loop
// always resumes the highest-priority ready task, so execution is
// run-to-completion between suspension points exactly like a
// priority-preemptive kernel observed at scheduling boundaries. Time
// is a virtual tick counter that only advances when no task is ready.
type SimKernel struct {
	noCopy  noCopy
	clock   uint64
	depth   uint32
	current *Task
	ready   taskList
	asleep  taskList
	tasks   []*Task
	tr      Trace
}

// NewSim returns an empty simulated kernel.
func NewSim() *SimKernel {
	return &SimKernel{}
}

// Clock returns the current virtual tick.
func (k *SimKernel) Clock() uint64 {
	return k.clock
}

// Trace returns the kernel's recorded event history.
func (k *SimKernel) Trace() *Trace {
	return &k.tr
}

// Spawn creates a task that will run fn at the given priority. The
// task is ready immediately but does not execute until Run resumes it.
// Spawn may be called from inside a running task; the new task
// competes for the processor at the next suspension point.
func (k *SimKernel) Spawn(name string, prio uint8, fn func(*Task)) *Task {
	t := &Task{name: name, prio: prio, state: stateReady}

	t.resume, t.cancel = coro.New(
		func(_ func(struct{}) struct{}, suspend func() struct{}) (z struct{}) {
			t.suspend = suspend
			fn(t)
			return
		},
	)

	k.tasks = append(k.tasks, t)
	k.ready.insertPrio(t)
	k.tr.record(k.clock, TraceSpawn, t)
	return t
}

// Run drives the spawned tasks until none are ready or sleeping. When
// every remaining task is asleep with a finite deadline, the clock
// jumps to the earliest one and expired sleepers are detached from
// their wait queues and made ready. If every remaining task is asleep
// with no deadline, nothing can ever wake them; Run panics rather than
// hang.
func (k *SimKernel) Run(ctx context.Context) {
	if k.current != nil {
		panic("kos: sim already running")
	}
	defer k.reap()

	var tracer *trace.Task
	ctx, tracer = trace.NewTask(ctx, simTraceTaskType)
	defer tracer.End()

	for {
		t := k.popReady()
		if t == nil {
			if !k.advance() {
				trace.Log(ctx, simTraceCategory, "RUN DONE")
				return
			}
			trace.Logf(ctx, simTraceCategory, "TICK %v", k.clock)
			continue
		}

		trace.Logf(ctx, simTraceCategory, "SWITCH %v", t.name)
		k.tr.record(k.clock, TraceSwitch, t)
		t.state = stateRunning
		k.current = t

		_, suspended := t.resume(struct{}{})

		k.current = nil
		if !suspended {
			if k.depth != 0 {
				panic("kos: task exited inside critical section")
			}
			t.state = stateDone
			k.tr.record(k.clock, TraceExit, t)
		}
	}
}

// Current returns the running task, or nil between tasks.
func (k *SimKernel) Current() *Task {
	return k.current
}

// Sleep suspends the current task until Wake or until ticks have
// elapsed, whichever comes first. Sleeping while the critical section
// is held would park the whole kernel with interrupts masked, so it
// panics instead.
func (k *SimKernel) Sleep(t *Task, ticks uint32) {
	if k.depth != 0 {
		panic("kos: sleep inside critical section")
	}
	if t != k.current {
		panic("kos: sleep on a non-current task")
	}

	if ticks == WaitForever {
		t.deadline = never
	} else {
		t.deadline = k.clock + uint64(ticks)
	}
	t.state = stateSleeping
	k.asleep.insertDeadline(t)
	k.tr.record(k.clock, TraceSleep, t)

	t.suspend()
}

// Wake makes t runnable. The trailing arguments mirror the kernel wake
// primitive's reserved parameters and are unused. Waking a task that
// is already runnable is a no-op; waking a task still linked on a wait
// queue panics, since the waker must detach it first or the link goes
// stale under it.
func (k *SimKernel) Wake(t *Task, _, _ uint32) {
	if t.waitq != nil {
		panic("kos: wake of a task still linked on a wait queue")
	}
	if t.state != stateSleeping {
		return
	}

	k.asleep.remove(t)
	t.deadline = 0
	t.state = stateReady
	k.ready.insertPrio(t)
	k.tr.record(k.clock, TraceWake, t)
}

// Resched yields the processor to a strictly higher-priority ready
// task, if any. The hint is advisory; the ready queue decides. The
// caller resumes once it is again the most urgent runnable task.
func (k *SimKernel) Resched(_ *Task, _ SchedFlags) {
	if k.depth != 0 {
		panic("kos: resched inside critical section")
	}

	cur := k.current
	if cur == nil {
		return
	}

	next := k.ready.front()
	if next == nil || next.prio >= cur.prio {
		return
	}

	cur.state = stateReady
	k.ready.insertPrio(cur)
	cur.suspend()
}

// NextReady returns the task the scheduler would run next: the
// highest-priority ready task, or the current task when it is at least
// as urgent as every ready task.
func (k *SimKernel) NextReady(_ SchedFlags) *Task {
	next := k.ready.front()
	cur := k.current
	if next == nil || (cur != nil && cur.prio <= next.prio) {
		return cur
	}
	return next
}

// Enter begins a critical section; sections nest. The returned state
// must be handed back to Exit in LIFO order.
func (k *SimKernel) Enter() CritState {
	k.depth++
	return CritState(k.depth - 1)
}

// Exit ends a critical section, restoring the saved state. Unbalanced
// or out-of-order exits panic.
func (k *SimKernel) Exit(sr CritState) {
	if k.depth == 0 || uint32(sr) != k.depth-1 {
		panic("kos: unbalanced critical section exit")
	}
	k.depth--
}

// reap tears down the coroutines of tasks that never ran to
// completion, so a run that panics or abandons suspended tasks does
// not leak their goroutines.
func (k *SimKernel) reap() {
	k.current = nil
	for _, t := range k.tasks {
		if t.state != stateDone {
			t.state = stateDone
			t.cancel()
		}
	}
}

func (k *SimKernel) popReady() *Task {
	if k.ready.len() == 0 {
		return nil
	}
	return k.ready.popFront()
}

// advance moves the clock to the earliest sleep deadline and readies
// every sleeper that deadline covers. Expired sleepers are detached
// from their wait queue first, with the sem-wait flag left set, so
// their pend reports the timeout. It reports whether any task became
// ready.
func (k *SimKernel) advance() bool {
	t := k.asleep.front()
	if t == nil {
		return false
	}
	if t.deadline == never {
		panic(fmt.Sprintf("kos: deadlock: %d task(s) blocked forever", k.asleep.len()))
	}

	k.clock = t.deadline
	for k.asleep.len() > 0 && k.asleep.front().deadline <= k.clock {
		exp := k.asleep.popFront()
		exp.Expire()
		exp.state = stateReady
		k.ready.insertPrio(exp)
		k.tr.record(k.clock, TraceExpire, exp)
	}
	return true
}
