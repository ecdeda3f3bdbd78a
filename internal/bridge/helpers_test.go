package bridge

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// scriptSource returns its frames in order, then end (io.EOF when nil).
// With block set it waits for cancellation instead of ending.
type scriptSource struct {
	mu     sync.Mutex
	frames []contracts.Frame
	end    error
	block  bool
}

func (s *scriptSource) ReadFrame(ctx context.Context) (contracts.Frame, error) {
	s.mu.Lock()
	if len(s.frames) > 0 {
		f := s.frames[0]
		s.frames = s.frames[1:]
		s.mu.Unlock()
		return f, nil
	}
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return contracts.Frame{}, ctx.Err()
	}
	if s.end != nil {
		return contracts.Frame{}, s.end
	}
	return contracts.Frame{}, io.EOF
}

// recordingSink keeps delivered events. before runs ahead of each delivery.
type recordingSink struct {
	mu     sync.Mutex
	events []contracts.MidiEvent
	before func(ctx context.Context, n int) error
}

func (r *recordingSink) Deliver(ctx context.Context, ev contracts.MidiEvent) error {
	r.mu.Lock()
	n := len(r.events)
	r.mu.Unlock()

	if r.before != nil {
		if err := r.before(ctx, n); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) notes() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint8, 0, len(r.events))
	for _, ev := range r.events {
		if on, ok := ev.(contracts.NoteOn); ok {
			out = append(out, on.Note)
		}
	}
	return out
}

func note(n uint8) contracts.MidiEvent {
	return contracts.NoteOn{Channel: 0, Note: n, Velocity: 100}
}

func frame(seq uint32, events ...contracts.MidiEvent) contracts.Frame {
	return contracts.Frame{Sequence: seq, Events: events}
}

func start(t *testing.T, source contracts.FrameSource, sink contracts.EventSink, opts ...Option) *Session {
	t.Helper()
	s := NewSession(source, sink, append([]Option{WithClock(NewFakeClock(epoch))}, opts...)...)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func waitDone(t *testing.T, s *Session) contracts.SessionReport {
	t.Helper()
	select {
	case <-s.Done():
		return s.Report()
	case <-time.After(5 * time.Second):
		t.Fatalf("session %s did not finish, state %s", s.ID(), s.Status())
		return contracts.SessionReport{}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
