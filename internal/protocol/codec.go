package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// HeaderSize is the encoded size of sequence, timestamp and event count.
const HeaderSize = 4 + 8 + 2

// MaxEvents is the largest event count a frame can carry.
const MaxEvents = math.MaxUint16

var byteOrder = binary.LittleEndian

// EncodeFrame serializes f. Every event is validated first.
func EncodeFrame(f contracts.Frame) ([]byte, error) {
	return AppendFrame(make([]byte, 0, HeaderSize+4*len(f.Events)), f)
}

// AppendFrame appends the encoding of f to dst.
func AppendFrame(dst []byte, f contracts.Frame) ([]byte, error) {
	if len(f.Events) > MaxEvents {
		return dst, violation("frame carries %d events, limit is %d", len(f.Events), MaxEvents)
	}
	dst = byteOrder.AppendUint32(dst, f.Sequence)
	dst = byteOrder.AppendUint64(dst, f.Timestamp)
	dst = byteOrder.AppendUint16(dst, uint16(len(f.Events)))

	for i, ev := range f.Events {
		if err := Validate(ev); err != nil {
			return dst, fmt.Errorf("event %d: %w", i, err)
		}
		dst = appendEvent(dst, ev)
	}
	return dst, nil
}

func appendEvent(dst []byte, ev contracts.MidiEvent) []byte {
	dst = append(dst, byte(ev.Kind()))
	switch e := ev.(type) {
	case contracts.NoteOn:
		dst = append(dst, e.Channel, e.Note, e.Velocity)
	case contracts.NoteOff:
		dst = append(dst, e.Channel, e.Note, e.Velocity)
	case contracts.ControlChange:
		dst = append(dst, e.Channel, e.Controller, e.Value)
	case contracts.ProgramChange:
		dst = append(dst, e.Channel, e.Program)
	case contracts.SystemExclusive:
		dst = byteOrder.AppendUint32(dst, uint32(len(e.Payload)))
		dst = append(dst, e.Payload...)
	case contracts.Other:
		dst = byteOrder.AppendUint32(dst, uint32(len(e.Raw)))
		dst = append(dst, e.Raw...)
	}
	return dst
}

// DecodeFrame parses exactly one frame from buf. Truncated input, trailing
// bytes, unknown tags and out-of-range values are protocol violations.
func DecodeFrame(buf []byte) (contracts.Frame, error) {
	r := bytes.NewReader(buf)
	f, err := readFrame(r)
	if err != nil {
		var inc *IncompleteFrameError
		if errors.As(err, &inc) {
			return contracts.Frame{}, violation("truncated frame %d: %v", inc.Sequence, inc.Err)
		}
		if errors.Is(err, io.EOF) {
			return contracts.Frame{}, violation("empty frame")
		}
		return contracts.Frame{}, err
	}
	if r.Len() != 0 {
		return contracts.Frame{}, violation("%d trailing bytes after frame %d", r.Len(), f.Sequence)
	}
	return f, nil
}

// IncompleteFrameError reports input that ended inside a frame. Events is
// the declared event count, or zero when the header itself was cut short.
type IncompleteFrameError struct {
	Sequence uint32
	Events   int
	Err      error
}

func (e *IncompleteFrameError) Error() string {
	return fmt.Sprintf("incomplete frame %d (%d events): %v", e.Sequence, e.Events, e.Err)
}

func (e *IncompleteFrameError) Unwrap() error { return e.Err }

// readFrame returns io.EOF only when r is exhausted before the first byte.
func readFrame(r io.Reader) (contracts.Frame, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	switch {
	case err == io.EOF && n == 0:
		return contracts.Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return contracts.Frame{}, &IncompleteFrameError{Err: err}
	case err != nil:
		return contracts.Frame{}, err
	}

	f := contracts.Frame{
		Sequence:  byteOrder.Uint32(hdr[0:4]),
		Timestamp: byteOrder.Uint64(hdr[4:12]),
	}
	count := int(byteOrder.Uint16(hdr[12:14]))
	f.Events = make([]contracts.MidiEvent, 0, count)

	for i := 0; i < count; i++ {
		ev, err := readEvent(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return contracts.Frame{}, &IncompleteFrameError{Sequence: f.Sequence, Events: count, Err: io.ErrUnexpectedEOF}
			}
			return contracts.Frame{}, fmt.Errorf("frame %d event %d: %w", f.Sequence, i, err)
		}
		f.Events = append(f.Events, ev)
	}
	return f, nil
}

func readEvent(r io.Reader) (contracts.MidiEvent, error) {
	var fixed [4]byte
	if _, err := io.ReadFull(r, fixed[:1]); err != nil {
		return nil, err
	}

	var ev contracts.MidiEvent
	switch kind := contracts.EventKind(fixed[0]); kind {
	case contracts.KindNoteOn, contracts.KindNoteOff, contracts.KindControlChange:
		if _, err := io.ReadFull(r, fixed[1:4]); err != nil {
			return nil, err
		}
		a, b, c := fixed[1], fixed[2], fixed[3]
		switch kind {
		case contracts.KindNoteOn:
			ev = contracts.NoteOn{Channel: a, Note: b, Velocity: c}
		case contracts.KindNoteOff:
			ev = contracts.NoteOff{Channel: a, Note: b, Velocity: c}
		default:
			ev = contracts.ControlChange{Channel: a, Controller: b, Value: c}
		}
	case contracts.KindProgramChange:
		if _, err := io.ReadFull(r, fixed[1:3]); err != nil {
			return nil, err
		}
		ev = contracts.ProgramChange{Channel: fixed[1], Program: fixed[2]}
	case contracts.KindSystemExclusive, contracts.KindOther:
		payload, err := readPayload(r)
		if err != nil {
			return nil, err
		}
		if kind == contracts.KindSystemExclusive {
			ev = contracts.SystemExclusive{Payload: payload}
		} else {
			ev = contracts.Other{Raw: payload}
		}
	default:
		return nil, violation("unknown event tag 0x%02X", byte(kind))
	}

	if err := Validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func readPayload(r io.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, noEOF(err)
	}
	n := byteOrder.Uint32(size[:])
	if n > MaxPayload {
		return nil, violation("payload length %d exceeds %d", n, MaxPayload)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, noEOF(err)
	}
	return payload, nil
}

// noEOF turns a clean EOF inside an event into ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
