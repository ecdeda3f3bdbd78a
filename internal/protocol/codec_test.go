package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 128)
	}
	return p
}

func TestRoundTrip(t *testing.T) {
	events := []contracts.MidiEvent{
		contracts.NoteOn{Channel: 0, Note: 60, Velocity: 100},
		contracts.NoteOff{Channel: 15, Note: 127, Velocity: 0},
		contracts.ControlChange{Channel: 9, Controller: 64, Value: 127},
		contracts.ProgramChange{Channel: 3, Program: 42},
		contracts.SystemExclusive{Payload: payload(0)},
		contracts.SystemExclusive{Payload: payload(1)},
		contracts.SystemExclusive{Payload: payload(65536)},
		contracts.Other{Raw: []byte{0xF8}},
	}

	for _, ev := range events {
		t.Run(ev.Kind().String(), func(t *testing.T) {
			in := contracts.Frame{Sequence: 7, Timestamp: 123456789, Events: []contracts.MidiEvent{ev}}
			buf, err := EncodeFrame(in)
			if err != nil {
				t.Fatalf("EncodeFrame: %v", err)
			}
			out, err := DecodeFrame(buf)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if !reflect.DeepEqual(in, out) {
				t.Fatalf("round trip mismatch:\n in: %#v\nout: %#v", in.Events[0], out.Events[0])
			}
		})
	}
}

func TestRoundTripMultipleEvents(t *testing.T) {
	in := contracts.Frame{Sequence: 1, Events: []contracts.MidiEvent{
		contracts.NoteOn{Channel: 1, Note: 2, Velocity: 3},
		contracts.SystemExclusive{Payload: []byte{0x7E, 0x7F, 0x09, 0x01}},
		contracts.NoteOff{Channel: 1, Note: 2, Velocity: 0},
	}}
	buf, err := EncodeFrame(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("got %#v, want %#v", out, in)
	}
}

func TestWireLayout(t *testing.T) {
	f := contracts.Frame{
		Sequence:  0x01020304,
		Timestamp: 0x0A0B0C0D0E0F1011,
		Events: []contracts.MidiEvent{
			contracts.NoteOn{Channel: 1, Note: 60, Velocity: 100},
			contracts.SystemExclusive{Payload: []byte{0x41, 0x10}},
		},
	}
	buf, err := EncodeFrame(f)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x04, 0x03, 0x02, 0x01,
		0x11, 0x10, 0x0F, 0x0E, 0x0D, 0x0C, 0x0B, 0x0A,
		0x02, 0x00,
		0x01, 0x01, 0x3C, 0x64,
		0x05, 0x02, 0x00, 0x00, 0x00, 0x41, 0x10,
	}
	if !bytes.Equal(buf, want) {
		t.Fatalf("encoding = % X\n      want % X", buf, want)
	}
}

func TestDecodeViolations(t *testing.T) {
	valid, _ := EncodeFrame(contracts.Frame{Sequence: 1, Events: []contracts.MidiEvent{
		contracts.SystemExclusive{Payload: payload(10)},
	}})

	header := func(count byte) []byte {
		return []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, count, 0}
	}

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short header", []byte{1, 0, 0}},
		{"truncated sysex", valid[:len(valid)-3]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x00)},
		{"unknown tag", append(header(1), 0x7F)},
		{"channel out of range", append(header(1), 0x01, 16, 60, 100)},
		{"velocity out of range", append(header(1), 0x01, 0, 60, 200)},
		{"sysex terminator in payload", append(header(1), 0x05, 1, 0, 0, 0, 0xF7)},
		{"payload too large", append(header(1), 0x05, 0xFF, 0xFF, 0xFF, 0xFF)},
		{"missing events", header(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.buf)
			if !errors.Is(err, contracts.ErrProtocolViolation) {
				t.Fatalf("err = %v, want ErrProtocolViolation", err)
			}
		})
	}
}

func TestEncodeRejectsInvalidEvents(t *testing.T) {
	bad := []contracts.MidiEvent{
		contracts.NoteOn{Channel: 16},
		contracts.ControlChange{Value: 128},
		contracts.ProgramChange{Program: 200},
		contracts.SystemExclusive{Payload: []byte{0xF0}},
		contracts.Other{},
		nil,
	}
	for _, ev := range bad {
		if _, err := EncodeFrame(contracts.Frame{Events: []contracts.MidiEvent{ev}}); !errors.Is(err, contracts.ErrProtocolViolation) {
			t.Errorf("EncodeFrame(%#v) err = %v, want ErrProtocolViolation", ev, err)
		}
	}
}

func TestStreamReader(t *testing.T) {
	var stream bytes.Buffer
	w := NewWriter(&stream)
	enc := NewEncoder()
	for i := 0; i < 3; i++ {
		f, err := enc.Next(contracts.NoteOn{Channel: 0, Note: uint8(60 + i), Velocity: 90})
		if err != nil {
			t.Fatal(err)
		}
		if err := w.WriteFrame(f); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReader(&stream)
	for want := uint32(1); want <= 3; want++ {
		f, err := r.ReadFrame(context.Background())
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", want, err)
		}
		if f.Sequence != want {
			t.Errorf("sequence = %d, want %d", f.Sequence, want)
		}
	}
	if _, err := r.ReadFrame(context.Background()); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestStreamReaderIncompleteFrame(t *testing.T) {
	buf, _ := EncodeFrame(contracts.Frame{Sequence: 9, Events: []contracts.MidiEvent{
		contracts.NoteOn{Note: 1},
		contracts.SystemExclusive{Payload: payload(100)},
	}})

	r := NewReader(bytes.NewReader(buf[:len(buf)-50]))
	_, err := r.ReadFrame(context.Background())

	var inc *IncompleteFrameError
	if !errors.As(err, &inc) {
		t.Fatalf("err = %v, want *IncompleteFrameError", err)
	}
	if inc.Sequence != 9 || inc.Events != 2 {
		t.Errorf("incomplete = %+v, want sequence 9 with 2 events", inc)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err does not wrap io.ErrUnexpectedEOF")
	}
}

func TestStreamReaderStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewReader(bytes.NewReader(nil))
	if _, err := r.ReadFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEncoderSequenceAndTimestamp(t *testing.T) {
	now := time.Unix(1000, 0)
	enc := NewEncoderWithClock(func() time.Time { return now })

	f1, _ := enc.Next()
	now = now.Add(1500 * time.Microsecond)
	f2, _ := enc.Next(contracts.ProgramChange{Program: 1})

	if f1.Sequence != 1 || f2.Sequence != 2 {
		t.Errorf("sequences = %d, %d; want 1, 2", f1.Sequence, f2.Sequence)
	}
	if f1.Timestamp != 0 || f2.Timestamp != 1500 {
		t.Errorf("timestamps = %d, %d; want 0, 1500", f1.Timestamp, f2.Timestamp)
	}

	if _, err := enc.Next(contracts.NoteOn{Channel: 99}); !errors.Is(err, contracts.ErrProtocolViolation) {
		t.Errorf("invalid event err = %v", err)
	}
	f3, _ := enc.Next()
	if f3.Sequence != 3 {
		t.Errorf("rejected event consumed a sequence number: got %d, want 3", f3.Sequence)
	}
}

func TestSequenceGuard(t *testing.T) {
	var g SequenceGuard
	for _, seq := range []uint32{1, 3, 3, 4} {
		if err := g.Check(seq); err != nil {
			t.Fatalf("Check(%d): %v", seq, err)
		}
	}
	if err := g.Check(2); !errors.Is(err, contracts.ErrProtocolViolation) {
		t.Fatalf("Check(2) err = %v, want ErrProtocolViolation", err)
	}
	if last, _ := g.Last(); last != 4 {
		t.Errorf("Last() = %d, want 4", last)
	}
}
