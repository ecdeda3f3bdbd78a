package contracts

import "fmt"

// EventKind identifies a MidiEvent variant. The numeric values double as wire tags.
type EventKind byte

const (
	KindNoteOn          EventKind = 0x01
	KindNoteOff         EventKind = 0x02
	KindControlChange   EventKind = 0x03
	KindProgramChange   EventKind = 0x04
	KindSystemExclusive EventKind = 0x05
	KindOther           EventKind = 0x06
)

func (k EventKind) String() string {
	switch k {
	case KindNoteOn:
		return "NoteOn"
	case KindNoteOff:
		return "NoteOff"
	case KindControlChange:
		return "ControlChange"
	case KindProgramChange:
		return "ProgramChange"
	case KindSystemExclusive:
		return "SystemExclusive"
	case KindOther:
		return "Other"
	default:
		return fmt.Sprintf("EventKind(0x%02X)", byte(k))
	}
}

// MidiEvent is one decoded MIDI message. The set of implementations is closed;
// use a type switch on the concrete types below.
type MidiEvent interface {
	Kind() EventKind
	isMidiEvent()
}

// NoteOn starts a note.
type NoteOn struct {
	Channel  uint8 // 0-15
	Note     uint8 // 0-127
	Velocity uint8 // 0-127
}

// NoteOff releases a note.
type NoteOff struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// ControlChange sets a controller value.
type ControlChange struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

// ProgramChange selects an instrument program on a channel.
type ProgramChange struct {
	Channel uint8
	Program uint8
}

// SystemExclusive carries a vendor payload without the 0xF0/0xF7 framing bytes.
// The payload is always forwarded as a single unit.
type SystemExclusive struct {
	Payload []byte
}

// Other carries any message the bridge does not model, as raw bytes.
type Other struct {
	Raw []byte
}

func (NoteOn) Kind() EventKind          { return KindNoteOn }
func (NoteOff) Kind() EventKind         { return KindNoteOff }
func (ControlChange) Kind() EventKind   { return KindControlChange }
func (ProgramChange) Kind() EventKind   { return KindProgramChange }
func (SystemExclusive) Kind() EventKind { return KindSystemExclusive }
func (Other) Kind() EventKind           { return KindOther }

func (NoteOn) isMidiEvent()          {}
func (NoteOff) isMidiEvent()         {}
func (ControlChange) isMidiEvent()   {}
func (ProgramChange) isMidiEvent()   {}
func (SystemExclusive) isMidiEvent() {}
func (Other) isMidiEvent()           {}

// Frame is the wire envelope: a sequence number, a timestamp in microseconds
// since the encoder's epoch, and zero or more events.
type Frame struct {
	Sequence  uint32
	Timestamp uint64
	Events    []MidiEvent
}

// MIDICommand represents the status nibble of a channel message, used for event filtering.
type MIDICommand byte

const (
	// NoteOffCommand is the MIDI command for a Note Off event (0x80).
	NoteOffCommand MIDICommand = 0x80
	// NoteOnCommand is the MIDI command for a Note On event (0x90).
	NoteOnCommand MIDICommand = 0x90
	// ControlChangeCommand is the MIDI command for a Control Change event (0xB0).
	ControlChangeCommand MIDICommand = 0xB0
	// ProgramChangeCommand is the MIDI command for a Program Change event (0xC0).
	ProgramChangeCommand MIDICommand = 0xC0
)

// MIDIEventFilter allows users to specify which MIDI commands a device source captures.
type MIDIEventFilter struct {
	Commands []MIDICommand // List of MIDI commands to keep.
}

// Allows reports whether a raw status byte passes the filter. A nil filter allows everything.
func (f *MIDIEventFilter) Allows(status byte) bool {
	if f == nil {
		return true
	}
	command := status & 0xF0
	for _, allowed := range f.Commands {
		if command == byte(allowed) {
			return true
		}
	}
	return false
}
