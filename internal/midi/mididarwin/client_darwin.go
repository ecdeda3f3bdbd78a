//go:build darwin
// +build darwin

package mididarwin

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/internal/midi/capture"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// ClientMid captures MIDI events from CoreMIDI sources on Darwin (macOS).
type ClientMid struct {
	logger    contracts.Logger
	dispatch  *capture.Dispatcher    // Filters, decodes and forwards incoming messages.
	client    coremidi.Client        // CoreMIDI client instance for MIDI operations.
	inputPort coremidi.InputPort     // Input port for receiving MIDI events.
	portConn  internalPortConnection // Connection to the MIDI port.
	mu        sync.Mutex             // Mutex for thread safety on shared resources.
	capturing bool                   // Indicates if event capturing is currently active.
	stopOnce  sync.Once              // Ensures Stop() is executed only once.
}

// NewDeviceSource creates a CoreMIDI client named after options.CoreMIDIConfig.
func NewDeviceSource(options *contracts.ClientOptions) (contracts.DeviceSource, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrMIDIConnectionError, err)
	}
	options.Logger.Info("MIDI client successfully created",
		options.Logger.Field().String("client", options.CoreMIDIConfig.ClientName))

	return &ClientMid{
		logger:   options.Logger,
		dispatch: capture.NewDispatcher(options.Logger, options.MIDIEventFilter),
		client:   client,
	}, nil
}

// ListDevices retrieves and returns available MIDI sources.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		m.logger.Warn(capture.ErrNoMIDIDevices.Error())
		return nil, capture.ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		sourceEntity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         source.Name(),
			EntityName:   sourceEntity.Name(),
			Manufacturer: sourceEntity.Manufacturer(),
		}
	}
	return devices, nil
}

// SelectDevice connects to the source at deviceID, replacing any previous connection.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, err := coremidi.AllSources()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if deviceID < 0 || deviceID >= len(sources) {
		m.logger.Error(capture.ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return capture.ErrInvalidMIDIDevice
	}

	if m.portConn != nil {
		m.portConn.Disconnect()
		m.portConn = nil
	}

	source := sources[deviceID]
	m.logger.Info("MIDI device selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", source.Name()))

	m.inputPort, err = coremidi.NewInputPort(m.client, "Input Port", m.handleMIDIMessage)
	if err != nil {
		m.logger.Error(capture.ErrCreateInputPort.Error())
		return fmt.Errorf("%w: %v", capture.ErrCreateInputPort, err)
	}

	m.portConn, err = m.inputPort.Connect(source)
	if err != nil {
		m.logger.Error(capture.ErrMIDIConnectionError.Error())
		return fmt.Errorf("%w: %v", capture.ErrMIDIConnectionError, err)
	}

	m.logger.Info("MIDI device successfully connected")
	return nil
}

// handleMIDIMessage runs on the CoreMIDI thread. A packet may hold several messages.
func (m *ClientMid) handleMIDIMessage(source coremidi.Source, packet coremidi.Packet) {
	m.dispatch.DispatchPacket(packet.Data)
}

// StartCapture begins forwarding events to eventChannel.
func (m *ClientMid) StartCapture(eventChannel chan<- contracts.MidiEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eventChannel == nil {
		m.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	if m.capturing {
		m.logger.Warn("Capture already started; replacing event channel")
	}

	m.logger.Info("Starting MIDI event capture")
	m.dispatch.Attach(eventChannel)
	m.capturing = true
}

// Stop halts capturing, disconnects from the device and waits for in-flight
// callbacks. It only runs once.
func (m *ClientMid) Stop() error {
	m.stopOnce.Do(func() {
		m.logger.Info("Stopping MIDI capture")
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.portConn != nil {
			m.portConn.Disconnect()
			m.portConn = nil
		}
		if m.capturing {
			m.capturing = false
			m.dispatch.Detach()
			m.logger.Info("MIDI capture stopped",
				m.logger.Field().Uint64("dropped", m.dispatch.Dropped()))
		}
	})
	return nil
}
