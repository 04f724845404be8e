package kos

import "errors"

// WaitForever is the Pend timeout sentinel meaning wait indefinitely,
// until a token is released or the semaphore is deleted. It is passed
// through unchanged to the scheduler's Sleep call.
const WaitForever = ^uint32(0)

var (
	// ErrInvalid reports an absent (nil) semaphore reference. It is a
	// caller programming error and is never recovered internally.
	ErrInvalid = errors.New("kos: invalid semaphore")

	// ErrTimeout reports that no token became available within the
	// requested window. It is a normal outcome, not a bug. Waiters on
	// a deleted semaphore observe ErrTimeout as well.
	ErrTimeout = errors.New("kos: pend timed out")
)

// SchedFlags is passed through to the scheduler's Resched and
// NextReady calls. The semaphore core reserves no bits.
type SchedFlags uint8

// CritState is the saved state returned by Critical.Enter. The
// matching Exit must receive it back; sections nest in LIFO order.
type CritState uint32

// Scheduler is the capability surface the semaphore consumes from the
// kernel scheduler. The ready-queue implementation and task-selection
// policy behind it are the scheduler's own business.
type Scheduler interface {
	// Current returns the running task, or nil outside task context.
	Current() *Task

	// Sleep suspends the current task for at most ticks, returning
	// after the task has been woken or the timeout has elapsed.
	// WaitForever sleeps with no deadline.
	Sleep(t *Task, ticks uint32)

	// Wake makes a specific task runnable. The trailing arguments are
	// reserved and unused by the semaphore core.
	Wake(t *Task, arg1, arg2 uint32)

	// Resched performs a context-switch decision. It may be a no-op
	// when the hint task is already running.
	Resched(hint *Task, flags SchedFlags)

	// NextReady returns the task the scheduler would run next.
	NextReady(flags SchedFlags) *Task
}

// Critical enters and exits a region that is atomic with respect to
// interrupts and other tasks. Every Enter must be balanced by an Exit
// of the returned state on every path, including early error returns.
type Critical interface {
	Enter() CritState
	Exit(CritState)
}

// Kernel is the full collaborator handle the semaphore operations
// take: a Scheduler plus a Critical section guard.
type Kernel interface {
	Scheduler
	Critical
}
