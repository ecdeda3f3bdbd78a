// Package capture holds the driver-independent half of the device sources:
// splitting raw packets into messages, filtering and handing decoded events
// to the capture channel.
package capture

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midibridge/internal/protocol"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrNoMIDIDevices        = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice    = errors.New("invalid MIDI device")
	ErrMIDIConnectionError  = errors.New("error connecting to MIDI device")
	ErrCreateInputPort      = errors.New("error creating input port")
	ErrIncompleteMIDIPacket = errors.New("incomplete MIDI packet")
	ErrUnavailable          = errors.New("MIDI functionality is not available on this platform")
)

// Dispatcher turns raw messages from a driver callback into events and sends
// them to the attached channel without blocking. Messages arriving while no
// channel is attached are discarded.
type Dispatcher struct {
	logger  contracts.Logger
	filter  *contracts.MIDIEventFilter
	mu      sync.RWMutex // held for reading while a dispatch is in progress
	channel chan<- contracts.MidiEvent
	dropped atomic.Uint64
}

func NewDispatcher(logger contracts.Logger, filter *contracts.MIDIEventFilter) *Dispatcher {
	return &Dispatcher{logger: logger, filter: filter}
}

// Attach starts delivering to ch.
func (d *Dispatcher) Attach(ch chan<- contracts.MidiEvent) {
	d.mu.Lock()
	d.channel = ch
	d.mu.Unlock()
}

// Detach stops delivery and waits for in-progress dispatches.
func (d *Dispatcher) Detach() {
	d.mu.Lock()
	d.channel = nil
	d.mu.Unlock()
}

func (d *Dispatcher) Attached() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.channel != nil
}

// Dropped counts events discarded because the channel was full.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Dispatch delivers one complete MIDI message. It reports whether an event
// was queued.
func (d *Dispatcher) Dispatch(raw []byte) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ch := d.channel
	if ch == nil || len(raw) == 0 {
		return false
	}
	if !d.filter.Allows(raw[0]) {
		return false
	}

	select {
	case ch <- protocol.FromMessage(midi.Message(raw)):
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("Event buffer full; dropping MIDI event")
		return false
	}
}

// DispatchPacket splits a packet that may carry several messages and
// dispatches each of them.
func (d *Dispatcher) DispatchPacket(data []byte) {
	msgs, err := Split(data)
	for _, msg := range msgs {
		d.Dispatch(msg)
	}
	if err != nil {
		d.logger.Warn(err.Error(), d.logger.Field().Int("bytes", len(data)))
	}
}
