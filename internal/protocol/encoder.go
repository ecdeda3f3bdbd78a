package protocol

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Encoder stamps outgoing events with a private, strictly increasing
// sequence number starting at 1 and a timestamp in microseconds since the
// encoder was created. Timestamps come from the monotonic clock.
type Encoder struct {
	mu    sync.Mutex
	seq   uint32
	epoch time.Time
	now   func() time.Time
}

// NewEncoder returns an encoder whose epoch is now.
func NewEncoder() *Encoder {
	return NewEncoderWithClock(time.Now)
}

// NewEncoderWithClock returns an encoder reading time from now.
func NewEncoderWithClock(now func() time.Time) *Encoder {
	return &Encoder{epoch: now(), now: now}
}

// Next wraps events into the next frame.
func (e *Encoder) Next(events ...contracts.MidiEvent) (contracts.Frame, error) {
	if len(events) > MaxEvents {
		return contracts.Frame{}, violation("frame carries %d events, limit is %d", len(events), MaxEvents)
	}
	for i, ev := range events {
		if err := Validate(ev); err != nil {
			return contracts.Frame{}, fmt.Errorf("event %d: %w", i, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seq == math.MaxUint32 {
		return contracts.Frame{}, fmt.Errorf("%w: sequence numbers exhausted", contracts.ErrInvalidState)
	}
	e.seq++
	elapsed := e.now().Sub(e.epoch)
	if elapsed < 0 {
		elapsed = 0
	}
	return contracts.Frame{
		Sequence:  e.seq,
		Timestamp: uint64(elapsed / time.Microsecond),
		Events:    append([]contracts.MidiEvent(nil), events...),
	}, nil
}

// Encode wraps events into the next frame and serializes it.
func (e *Encoder) Encode(events ...contracts.MidiEvent) ([]byte, error) {
	f, err := e.Next(events...)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(f)
}

// SequenceGuard enforces non-decreasing sequence numbers on the receive side.
// The zero value accepts any first frame.
type SequenceGuard struct {
	last uint32
	seen bool
}

// Check accepts seq or reports a regression as a protocol violation.
func (g *SequenceGuard) Check(seq uint32) error {
	if g.seen && seq < g.last {
		return violation("sequence regressed from %d to %d", g.last, seq)
	}
	g.last = seq
	g.seen = true
	return nil
}

// Last returns the highest accepted sequence number.
func (g *SequenceGuard) Last() (uint32, bool) {
	return g.last, g.seen
}
