//go:build !darwin
// +build !darwin

package mididarwin

import (
	"github.com/leandrodaf/midibridge/internal/midi/capture"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

type DummyMIDIClient struct {
	logger contracts.Logger
}

func NewDeviceSource(options *contracts.ClientOptions) (contracts.DeviceSource, error) {
	options.Logger.Info("Using dummy MIDI client for non-macOS system")
	return &DummyMIDIClient{
		logger: options.Logger,
	}, nil
}

func (m *DummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	m.logger.Warn("ListDevices called on dummy MIDI client")
	return nil, capture.ErrUnavailable
}

func (m *DummyMIDIClient) SelectDevice(deviceID int) error {
	m.logger.Warn("SelectDevice called on dummy MIDI client")
	return capture.ErrUnavailable
}

func (m *DummyMIDIClient) StartCapture(eventChannel chan<- contracts.MidiEvent) {
	m.logger.Warn("StartCapture called on dummy MIDI client")
}

func (m *DummyMIDIClient) Stop() error {
	m.logger.Warn("Stop called on dummy MIDI client")
	return nil
}
