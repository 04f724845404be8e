package kos

import "github.com/gammazero/deque"

// taskList is an ordered queue of task records backed by a deque. The
// semaphore wait queue and SimKernel's ready queue keep it sorted
// ascending by priority; SimKernel's sleep queue keeps it sorted by
// wake deadline. The zero value is ready to use.
type taskList struct {
	q deque.Deque[*Task]
}

func (l *taskList) len() int { return l.q.Len() }

func (l *taskList) front() *Task {
	if l.q.Len() == 0 {
		return nil
	}
	return l.q.Front()
}

func (l *taskList) popFront() *Task {
	return l.q.PopFront()
}

func (l *taskList) clear() {
	l.q.Clear()
}

// insertPrio places t immediately before the first entry with a
// strictly greater priority value, so entries of equal priority stay
// in arrival order.
func (l *taskList) insertPrio(t *Task) {
	l.insert(t, func(e *Task) bool { return t.prio < e.prio })
}

// insertDeadline keeps the sleep queue ordered earliest-deadline
// first. Infinite sleepers collect at the tail.
func (l *taskList) insertDeadline(t *Task) {
	l.insert(t, func(e *Task) bool { return t.deadline < e.deadline })
}

func (l *taskList) insert(t *Task, before func(*Task) bool) {
	if i := l.q.Index(before); i >= 0 {
		l.q.Insert(i, t)
		return
	}
	l.q.PushBack(t)
}

// remove unlinks t wherever it sits. It reports whether t was present.
func (l *taskList) remove(t *Task) bool {
	i := l.q.Index(func(e *Task) bool { return e == t })
	if i < 0 {
		return false
	}
	l.q.Remove(i)
	return true
}

func (l *taskList) contains(t *Task) bool {
	return l.q.Index(func(e *Task) bool { return e == t }) >= 0
}
