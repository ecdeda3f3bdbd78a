//go:build !windows
// +build !windows

package midiwindows

import (
	"github.com/leandrodaf/midibridge/internal/midi/capture"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

type dummyMIDIClient struct {
	logger contracts.Logger
}

// NewDeviceSource returns a placeholder device source for non-Windows systems.
func NewDeviceSource(options *contracts.ClientOptions) (contracts.DeviceSource, error) {
	options.Logger.Info("Using dummy MIDI client for non-Windows system")
	return &dummyMIDIClient{
		logger: options.Logger,
	}, nil
}

// ListDevices reports that MIDI functionality is unavailable on this platform.
func (m *dummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	m.logger.Warn("ListDevices called on dummy MIDI client")
	return nil, capture.ErrUnavailable
}

// SelectDevice reports that MIDI functionality is unavailable on this platform.
func (m *dummyMIDIClient) SelectDevice(deviceID int) error {
	m.logger.Warn("SelectDevice called on dummy MIDI client")
	return capture.ErrUnavailable
}

// StartCapture logs a warning; no events are ever produced.
func (m *dummyMIDIClient) StartCapture(eventChannel chan<- contracts.MidiEvent) {
	m.logger.Warn("StartCapture called on dummy MIDI client")
}

// Stop logs a warning indicating that Stop was called on the dummy MIDI client.
func (m *dummyMIDIClient) Stop() error {
	m.logger.Warn("Stop called on dummy MIDI client")
	return nil
}
