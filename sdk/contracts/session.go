package contracts

import (
	"context"
	"fmt"
)

// SessionState is the lifecycle state of a forwarding session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionActive
	SessionDraining
	SessionClosed
	SessionFaulted
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionActive:
		return "active"
	case SessionDraining:
		return "draining"
	case SessionClosed:
		return "closed"
	case SessionFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s SessionState) Terminal() bool {
	return s == SessionClosed || s == SessionFaulted
}

// FrameSource yields decoded protocol frames. It returns io.EOF when exhausted.
// Malformed input is reported with an error wrapping ErrProtocolViolation.
type FrameSource interface {
	ReadFrame(ctx context.Context) (Frame, error)
}

// EventSink consumes forwarded events in order.
type EventSink interface {
	Deliver(ctx context.Context, event MidiEvent) error
}

// SessionReport summarizes a session once it reached a terminal state.
type SessionReport struct {
	State     SessionState
	Delivered int
	Dropped   int
	Fault     error
}

// Session is a running forwarding session.
type Session interface {
	ID() string
	Status() SessionState
	Stop(ctx context.Context) (SessionReport, error)
	Done() <-chan struct{}
	Report() SessionReport
}
