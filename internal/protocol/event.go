// Package protocol implements the bridge wire format: little-endian frames
// carrying a sequence number, a timestamp and a list of MIDI events.
package protocol

import (
	"fmt"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

const (
	maxChannel = 15
	maxData    = 127
	// MaxPayload bounds SysEx and raw payloads. Larger length prefixes are
	// rejected before anything is allocated.
	MaxPayload = 16 << 20
)

// Validate checks the value ranges of ev.
func Validate(ev contracts.MidiEvent) error {
	switch e := ev.(type) {
	case contracts.NoteOn:
		return checkChannel(e.Channel, e.Note, e.Velocity)
	case contracts.NoteOff:
		return checkChannel(e.Channel, e.Note, e.Velocity)
	case contracts.ControlChange:
		return checkChannel(e.Channel, e.Controller, e.Value)
	case contracts.ProgramChange:
		return checkChannel(e.Channel, e.Program)
	case contracts.SystemExclusive:
		if len(e.Payload) > MaxPayload {
			return violation("sysex payload of %d bytes exceeds %d", len(e.Payload), MaxPayload)
		}
		for i, b := range e.Payload {
			if b > maxData {
				return violation("sysex payload byte %d is 0x%02X, status bytes are not allowed", i, b)
			}
		}
		return nil
	case contracts.Other:
		if len(e.Raw) == 0 {
			return violation("empty raw message")
		}
		if len(e.Raw) > MaxPayload {
			return violation("raw message of %d bytes exceeds %d", len(e.Raw), MaxPayload)
		}
		return nil
	case nil:
		return violation("nil event")
	default:
		return violation("unsupported event type %T", ev)
	}
}

func checkChannel(channel uint8, data ...uint8) error {
	if channel > maxChannel {
		return violation("channel %d out of range", channel)
	}
	for _, d := range data {
		if d > maxData {
			return violation("data byte %d out of range", d)
		}
	}
	return nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", contracts.ErrProtocolViolation, fmt.Sprintf(format, args...))
}

// FromMessage converts a raw MIDI message into an event. Messages the bridge
// does not model become Other.
func FromMessage(msg midi.Message) contracts.MidiEvent {
	var ch, a, b uint8
	var data []byte

	switch {
	case msg.GetNoteOn(&ch, &a, &b):
		return contracts.NoteOn{Channel: ch, Note: a, Velocity: b}
	case msg.GetNoteOff(&ch, &a, &b):
		return contracts.NoteOff{Channel: ch, Note: a, Velocity: b}
	case msg.GetControlChange(&ch, &a, &b):
		return contracts.ControlChange{Channel: ch, Controller: a, Value: b}
	case msg.GetProgramChange(&ch, &a):
		return contracts.ProgramChange{Channel: ch, Program: a}
	case msg.GetSysEx(&data):
		return contracts.SystemExclusive{Payload: append([]byte{}, data...)}
	default:
		return contracts.Other{Raw: append([]byte{}, msg...)}
	}
}

// ToMessage converts ev into raw MIDI bytes.
func ToMessage(ev contracts.MidiEvent) (midi.Message, error) {
	if err := Validate(ev); err != nil {
		return nil, err
	}
	switch e := ev.(type) {
	case contracts.NoteOn:
		return midi.NoteOn(e.Channel, e.Note, e.Velocity), nil
	case contracts.NoteOff:
		return midi.NoteOffVelocity(e.Channel, e.Note, e.Velocity), nil
	case contracts.ControlChange:
		return midi.ControlChange(e.Channel, e.Controller, e.Value), nil
	case contracts.ProgramChange:
		return midi.ProgramChange(e.Channel, e.Program), nil
	case contracts.SystemExclusive:
		return midi.SysEx(e.Payload), nil
	default:
		return midi.Message(append([]byte{}, ev.(contracts.Other).Raw...)), nil
	}
}
