package kos

// Semaphore is a counting semaphore whose waiters are served in
// priority order, FIFO among equal priorities. The record is
// caller-owned storage: Init prepares it, Delete drains it, and the
// caller disposes of it. Whenever tokens is nonzero the wait queue is
// empty; a waiting task is never left queued while a token is free.
type Semaphore struct {
	noCopy  noCopy
	tokens  uint16
	waiters taskList
}

// Init initializes the semaphore with the given number of tokens and
// an empty wait queue. No other party may reference the semaphore
// before Init returns, so it takes no critical section and never talks
// to the scheduler. A record drained by Delete must be re-initialized
// before reuse.
func (s *Semaphore) Init(tokens uint16) error {
	if s == nil {
		return ErrInvalid
	}

	s.tokens = tokens
	s.waiters.clear()

	return nil
}

// Pend waits for a token. A timeout of 0 is a non-blocking probe; a
// timeout of WaitForever waits indefinitely; anything else is a tick
// count handed to the scheduler's Sleep. It returns nil when a token
// was consumed, ErrTimeout when none became available in time, and
// ErrInvalid on a nil semaphore.
func (s *Semaphore) Pend(k Kernel, timeout uint32) error {
	if s == nil {
		return ErrInvalid
	}

	var err error
	sleep := false
	current := k.Current()

	sr := k.Enter()
	switch {
	case s.tokens > 0:
		// Fast path: take a token, no scheduler interaction.
		s.tokens--
	case timeout == 0:
		// Non-blocking probe; the wait queue is never touched.
		err = ErrTimeout
	default:
		if current == nil {
			k.Exit(sr)
			panic("kos: blocking pend outside task context")
		}
		current.flags |= flagSemWait
		s.enqueue(current)
		sleep = true
	}
	k.Exit(sr)

	if !sleep {
		return err
	}

	k.Sleep(current, timeout)

	// The sem-wait flag is the sole arbiter of timeout vs granted:
	// Release clears it before waking, the timeout path leaves it set
	// after detaching the task. The probe runs under the critical
	// section so a concurrent release cannot race the check.
	sr = k.Enter()
	if current.flags&flagSemWait != 0 {
		current.flags &^= flagSemWait
		err = ErrTimeout
	}
	k.Exit(sr)

	return err
}

// Release produces one token. If tasks are waiting, the token is
// handed directly to the head waiter, the highest-priority one, ties
// broken in arrival order, instead of bumping the counter; a third
// party can therefore never steal a token between increment and wake.
// When the woken task outranks the caller, a reschedule pass runs
// after the critical section is released. Release never blocks.
func (s *Semaphore) Release(k Kernel) error {
	if s == nil {
		return ErrInvalid
	}

	resched := false
	current := k.Current()

	sr := k.Enter()
	var rdy *Task
	if s.waiters.len() > 0 {
		rdy = s.waiters.popFront()
		rdy.waitq = nil
		rdy.flags &^= flagSemWait
		k.Wake(rdy, 0, 0)

		// Reschedule only for a strictly more urgent waiter. A nil
		// current task means an interrupt-context release; the
		// interrupt exit path owns that reschedule.
		resched = current != nil && current.prio > rdy.prio
	} else {
		s.tokens++
	}
	k.Exit(sr)

	if resched {
		k.Resched(rdy, 0)
	}

	return nil
}

// Delete drains the semaphore: outstanding tokens are discarded and
// every waiter is detached and woken with its sem-wait flag still set,
// so each waiter's own post-wake check in Pend reports ErrTimeout.
// Waiters on a deleted semaphore always observe failure, never silent
// success. The record itself is not freed; the caller owns disposal.
func (s *Semaphore) Delete(k Kernel) error {
	if s == nil {
		return ErrInvalid
	}

	current := k.Current()

	sr := k.Enter()
	s.tokens = 0

	for s.waiters.len() > 0 {
		rdy := s.waiters.popFront()
		rdy.waitq = nil
		k.Wake(rdy, 0, 0)
	}

	if next := k.NextReady(0); next != current {
		k.Exit(sr)
		k.Resched(next, 0)
	} else {
		k.Exit(sr)
	}

	return nil
}

// Tokens reports the number of currently available, unclaimed tokens.
// The count is shared mutable state, so the read happens inside the
// critical section like every other access.
func (s *Semaphore) Tokens(k Kernel) uint16 {
	sr := k.Enter()
	n := s.tokens
	k.Exit(sr)
	return n
}

// WaitCount reports the number of tasks blocked on the semaphore.
func (s *Semaphore) WaitCount(k Kernel) int {
	sr := k.Enter()
	n := s.waiters.len()
	k.Exit(sr)
	return n
}

// enqueue links t into the wait queue in priority order. A task may be
// linked on at most one wait queue at a time.
func (s *Semaphore) enqueue(t *Task) {
	if t.waitq != nil {
		panic("kos: task already linked on a wait queue")
	}
	s.waiters.insertPrio(t)
	t.waitq = s
}
