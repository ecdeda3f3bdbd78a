package bridge

import (
	"context"
	"io"
	"sync"

	"github.com/leandrodaf/midibridge/internal/protocol"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// maxBatch bounds how many queued device events are packed into one frame.
const maxBatch = 64

// DeviceFrameSource turns live device events into frames. Each ReadFrame
// call packs every event already waiting (up to a limit) into one frame
// stamped by a private Encoder.
type DeviceFrameSource struct {
	device  contracts.DeviceSource
	events  chan contracts.MidiEvent
	encoder *protocol.Encoder
	log     contracts.Logger

	startOnce sync.Once
	closeOnce sync.Once
	closed    chan struct{}
}

var _ contracts.FrameSource = (*DeviceFrameSource)(nil)

// NewDeviceFrameSource wraps a device that already has a device selected.
// Capture starts on the first ReadFrame.
func NewDeviceFrameSource(device contracts.DeviceSource, buffer int, log contracts.Logger) *DeviceFrameSource {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &DeviceFrameSource{
		device:  device,
		events:  make(chan contracts.MidiEvent, buffer),
		encoder: protocol.NewEncoder(),
		log:     log,
		closed:  make(chan struct{}),
	}
}

func (d *DeviceFrameSource) ReadFrame(ctx context.Context) (contracts.Frame, error) {
	d.startOnce.Do(func() { d.device.StartCapture(d.events) })

	var batch []contracts.MidiEvent
	for len(batch) == 0 {
		select {
		case ev := <-d.events:
			batch = d.appendValid(batch, ev)
		case <-d.closed:
			return contracts.Frame{}, io.EOF
		case <-ctx.Done():
			return contracts.Frame{}, ctx.Err()
		}
	}

pending:
	for len(batch) < maxBatch {
		select {
		case ev := <-d.events:
			batch = d.appendValid(batch, ev)
		default:
			break pending
		}
	}
	return d.encoder.Next(batch...)
}

func (d *DeviceFrameSource) appendValid(batch []contracts.MidiEvent, ev contracts.MidiEvent) []contracts.MidiEvent {
	if err := protocol.Validate(ev); err != nil {
		if d.log != nil {
			d.log.Warn("discarding device event", d.log.Field().Error("error", err))
		}
		return batch
	}
	return append(batch, ev)
}

// Close stops the device. Pending and later reads return io.EOF.
func (d *DeviceFrameSource) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		err = d.device.Stop()
	})
	return err
}
