package kos

import "github.com/vmihailenco/msgpack/v5"

// Trace event operations.
const (
	TraceSpawn  = "spawn"
	TraceSwitch = "switch"
	TraceSleep  = "sleep"
	TraceWake   = "wake"
	TraceExpire = "expire"
	TraceExit   = "exit"
)

// TraceEvent is one record of SimKernel's event history.
type TraceEvent struct {
	Tick uint64 `msgpack:"tick"`
	Op   string `msgpack:"op"`
	Task string `msgpack:"task"`
	Prio uint8  `msgpack:"prio"`
}

// Trace is an append-only log of scheduling events. Encoded traces are
// msgpack, suitable for shipping to a host-side inspector.
type Trace struct {
	events []TraceEvent
}

func (tr *Trace) record(tick uint64, op string, t *Task) {
	tr.events = append(tr.events, TraceEvent{
		Tick: tick,
		Op:   op,
		Task: t.name,
		Prio: t.prio,
	})
}

// Events returns the recorded events in order.
func (tr *Trace) Events() []TraceEvent {
	return tr.events
}

// Ops returns, in order, the events whose operation matches op.
func (tr *Trace) Ops(op string) []TraceEvent {
	var out []TraceEvent
	for _, e := range tr.events {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

// Encode serializes the trace.
func (tr *Trace) Encode() ([]byte, error) {
	return msgpack.Marshal(tr.events)
}

// DecodeTrace decodes a trace produced by Encode.
func DecodeTrace(b []byte) ([]TraceEvent, error) {
	var events []TraceEvent
	if err := msgpack.Unmarshal(b, &events); err != nil {
		return nil, err
	}
	return events, nil
}
