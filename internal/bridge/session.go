// Package bridge runs forwarding sessions: frames are pulled from a
// FrameSource, checked, buffered and handed to an EventSink in order.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/protocol"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

const (
	DefaultDrainDeadline = 500 * time.Millisecond
	DefaultBuffer        = 256
)

// Option configures a Session.
type Option func(*Session)

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l contracts.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithDrainDeadline bounds how long Stop keeps delivering buffered events.
func WithDrainDeadline(d time.Duration) Option {
	return func(s *Session) { s.drain = d }
}

// WithBuffer sets how many events may wait between reader and sink. The
// reader blocks while the buffer is full.
func WithBuffer(n int) Option {
	return func(s *Session) { s.capacity = n }
}

// Session implements contracts.Session.
//
// One goroutine reads frames and enforces ordering, a second one delivers
// events to the sink. A source that blocks inside ReadFrame without
// honouring its context keeps the reader goroutine alive after the session
// closed; nothing it reads afterwards is delivered. The same holds for a
// sink still inside Deliver when the drain deadline passes: the session
// closes without it and its late result is ignored.
type Session struct {
	id       string
	source   contracts.FrameSource
	sink     contracts.EventSink
	log      contracts.Logger
	clock    Clock
	drain    time.Duration
	capacity int

	readCtx     context.Context
	stopRead    context.CancelFunc
	deliverCtx  context.Context
	stopDeliver context.CancelFunc

	mu         sync.Mutex
	cond       *sync.Cond
	state      contracts.SessionState
	buf        []contracts.MidiEvent
	sourceDone bool
	stopping   bool
	inflight   bool // an event is inside sink.Deliver
	drainBy    time.Time
	delivered  int
	dropped    int
	fault      error

	done chan struct{}
}

var _ contracts.Session = (*Session)(nil)

// NewSession returns an idle session. Call Start to begin forwarding.
func NewSession(source contracts.FrameSource, sink contracts.EventSink, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		source:   source,
		sink:     sink,
		clock:    RealClock(),
		drain:    DefaultDrainDeadline,
		capacity: DefaultBuffer,
		state:    contracts.SessionIdle,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewNopLogger()
	}
	if s.capacity < 1 {
		s.capacity = 1
	}
	s.cond = sync.NewCond(&s.mu)
	s.readCtx, s.stopRead = context.WithCancel(context.Background())
	s.deliverCtx, s.stopDeliver = context.WithCancel(context.Background())
	return s
}

// Start moves the session from Idle to Active.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != contracts.SessionIdle || s.stopping {
		return fmt.Errorf("%w: session %s is %s", contracts.ErrInvalidState, s.id, s.state)
	}
	if s.source == nil || s.sink == nil {
		return fmt.Errorf("%w: session needs a source and a sink", contracts.ErrInvalidState)
	}
	s.state = contracts.SessionActive
	go s.read()
	go s.deliver()

	s.log.Info("forwarding session started", s.log.Field().String("session", s.id))
	return nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Status() contracts.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reached Closed or Faulted.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Report() contracts.SessionReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return contracts.SessionReport{
		State:     s.state,
		Delivered: s.delivered,
		Dropped:   s.dropped,
		Fault:     s.fault,
	}
}

// Buffered returns the number of events waiting for the sink.
func (s *Session) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Stop stops reading and delivers buffered events until the drain deadline.
// Events still buffered at the deadline are dropped. If ctx ends first the
// drain is cut short and ctx's error is returned with the report. Stop is
// idempotent.
func (s *Session) Stop(ctx context.Context) (contracts.SessionReport, error) {
	s.mu.Lock()
	idle := s.state == contracts.SessionIdle
	if idle {
		s.stopping = true
	}
	if s.state == contracts.SessionActive {
		s.beginDrainLocked("stop requested")
	}
	s.mu.Unlock()

	if idle {
		s.terminate()
	}

	select {
	case <-s.done:
		return s.Report(), nil
	case <-ctx.Done():
		s.terminate()
		return s.Report(), ctx.Err()
	}
}

func (s *Session) read() {
	var guard protocol.SequenceGuard
	for {
		f, err := s.source.ReadFrame(s.readCtx)
		if err != nil {
			s.sourceEnded(err)
			return
		}
		if err := guard.Check(f.Sequence); err != nil {
			s.sourceEnded(err)
			return
		}
		for i, ev := range f.Events {
			if err := protocol.Validate(ev); err != nil {
				s.sourceEnded(fmt.Errorf("frame %d event %d: %w", f.Sequence, i, err))
				return
			}
		}
		if !s.push(f.Events) {
			return
		}
	}
}

// push queues the events of one frame, blocking while the buffer is full.
func (s *Session) push(events []contracts.MidiEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, ev := range events {
		for len(s.buf) >= s.capacity && !s.stopping {
			s.cond.Wait()
		}
		if s.stopping {
			if !s.state.Terminal() {
				s.dropped += len(events) - i
			}
			return false
		}
		s.buf = append(s.buf, ev)
		s.cond.Broadcast()
	}
	return true
}

func (s *Session) sourceEnded(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cond.Broadcast()

	s.sourceDone = true
	if s.stopping {
		return
	}

	var incomplete *protocol.IncompleteFrameError
	switch {
	case errors.Is(err, io.EOF):
		s.beginDrainLocked("source exhausted")
	case errors.As(err, &incomplete):
		s.dropped += incomplete.Events
		s.log.Warn("source ended inside a frame",
			s.log.Field().String("session", s.id),
			s.log.Field().Uint32("sequence", incomplete.Sequence),
			s.log.Field().Int("dropped", incomplete.Events))
		s.beginDrainLocked("source truncated")
	default:
		s.faultLocked(err)
	}
}

func (s *Session) beginDrainLocked(reason string) {
	if s.stopping {
		return
	}
	s.stopping = true
	if s.state == contracts.SessionActive {
		s.state = contracts.SessionDraining
	}
	s.drainBy = s.clock.Now().Add(s.drain)
	s.stopRead()
	s.cond.Broadcast()

	// Whatever is left at the deadline is dropped, including an event the
	// sink is still holding.
	timeout := s.clock.After(s.drain)
	go func() {
		select {
		case <-timeout:
			s.terminate()
		case <-s.done:
		}
	}()

	s.log.Info("forwarding session draining",
		s.log.Field().String("session", s.id),
		s.log.Field().String("reason", reason),
		s.log.Field().Int("buffered", len(s.buf)),
		s.log.Field().Duration("deadline", s.drain))
}

func (s *Session) faultLocked(err error) {
	if s.fault != nil {
		return
	}
	s.fault = err
	s.sourceDone = true
	s.log.Error("forwarding session fault",
		s.log.Field().String("session", s.id),
		s.log.Field().Error("error", err))
}

func (s *Session) deliver() {
	defer s.terminate()
	for {
		ev, ok := s.next()
		if !ok {
			return
		}

		err := s.sink.Deliver(s.deliverCtx, ev)

		s.mu.Lock()
		if s.state.Terminal() {
			s.mu.Unlock()
			return
		}
		s.inflight = false
		switch {
		case err == nil:
			s.delivered++
		case s.stopping && s.deliverCtx.Err() != nil:
			s.dropped++
		default:
			s.dropped++
			s.faultLocked(fmt.Errorf("delivering %s: %w", ev.Kind(), err))
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// next pops the oldest buffered event. It reports false once the session has
// nothing more to deliver or the drain deadline passed.
func (s *Session) next() (contracts.MidiEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if len(s.buf) > 0 {
			if s.stopping && !s.clock.Now().Before(s.drainBy) {
				return nil, false
			}
			ev := s.buf[0]
			s.buf[0] = nil
			s.buf = s.buf[1:]
			s.inflight = true
			s.cond.Broadcast()
			return ev, true
		}
		if s.stopping || s.sourceDone || s.state.Terminal() {
			return nil, false
		}
		s.cond.Wait()
	}
}

// terminate moves the session to Closed, or Faulted when a fault was
// recorded. Buffered events and an event still held by the sink count as
// dropped. Only the first call has an effect.
func (s *Session) terminate() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.dropped += len(s.buf)
	if s.inflight {
		s.dropped++
		s.inflight = false
	}
	s.buf = nil
	s.stopping = true
	if s.fault != nil {
		s.state = contracts.SessionFaulted
	} else {
		s.state = contracts.SessionClosed
	}
	report := contracts.SessionReport{State: s.state, Delivered: s.delivered, Dropped: s.dropped, Fault: s.fault}
	s.cond.Broadcast()
	s.mu.Unlock()

	s.stopRead()
	s.stopDeliver()
	close(s.done)

	s.log.Info("forwarding session finished",
		s.log.Field().String("session", s.id),
		s.log.Field().String("state", report.State.String()),
		s.log.Field().Int("delivered", report.Delivered),
		s.log.Field().Int("dropped", report.Dropped))
}
