package kos

// taskFlags is the per-task status flag set.
type taskFlags uint8

// flagSemWait marks a task blocked inside Pend. Release clears it
// before waking the task; the timeout path leaves it set. The post-wake
// probe in Pend reads it to tell the two apart.
const flagSemWait taskFlags = 1 << 0

type taskState uint8

const (
	stateReady taskState = iota
	stateRunning
	stateSleeping
	stateDone
)

// Task is one schedulable unit. The semaphore core reads its priority,
// toggles its sem-wait flag, and moves it through wait queues; the
// remaining fields belong to the scheduler that owns the task.
type Task struct {
	name  string
	prio  uint8
	flags taskFlags
	waitq *Semaphore // wait queue the task is linked on, nil when unlinked

	// SimKernel scheduler state.
	state    taskState
	deadline uint64
	resume   func(struct{}) (struct{}, bool)
	suspend  func() struct{}
	cancel   func()
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Priority returns the task's priority. Lower values are more urgent.
func (t *Task) Priority() uint8 { return t.prio }

// Expire is the timeout detach path: it unlinks the task from whatever
// wait queue it sits on and clears the link. The sem-wait flag is left
// untouched so the task's own post-wake check in Pend reports the
// timeout. Schedulers call this before waking an expired sleeper;
// whichever party detaches the task first wins, and both paths clear
// the link so no stale reference remains.
func (t *Task) Expire() {
	if t.waitq == nil {
		return
	}
	t.waitq.waiters.remove(t)
	t.waitq = nil
}
