// Package kos implements the counting-semaphore core of a small
// priority-preemptive kernel, together with a deterministic hosted
// scheduler for driving it.
//
// Key components:
//
//   - Semaphore: a caller-owned counting semaphore whose waiters are
//     kept in priority order, most urgent first, FIFO among equal
//     priorities. Pend, Release and Delete are short critical-section
//     protocols; the only suspension point is Pend's slow path.
//
//   - Task: the schedulable unit as the semaphore sees it. A task
//     carries a priority, status flags, and a wait-queue membership
//     tag that keeps it on at most one wait queue at a time.
//
//   - Kernel: the capability surface the semaphore consumes, composed
//     of a Scheduler (current task, sleep, wake, reschedule, next
//     ready) and a Critical section guard. Operations take an explicit
//     Kernel handle so a test can substitute its own.
//
//   - SimKernel: a deterministic, single-threaded Kernel built on
//     coroutines. It always runs the highest-priority ready task,
//     advances a virtual tick clock when nothing is ready, and expires
//     pend timeouts by detaching the sleeper from its wait queue.
//
//   - Trace: an append-only log of scheduling events, msgpack-encoded
//     for host-side inspection.
package kos
