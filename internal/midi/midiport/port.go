// Package midiport captures events from ports of the registered gomidi
// driver. The host registers a driver with a blank import, for example
// gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
package midiport

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/internal/midi/capture"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Source implements contracts.DeviceSource over gomidi input ports.
type Source struct {
	logger   contracts.Logger
	dispatch *capture.Dispatcher
	ins      func() []drivers.In

	mu   sync.Mutex
	port drivers.In
	stop func()
}

func NewDeviceSource(options *contracts.ClientOptions) (contracts.DeviceSource, error) {
	return &Source{
		logger:   options.Logger,
		dispatch: capture.NewDispatcher(options.Logger, options.MIDIEventFilter),
		ins:      func() []drivers.In { return midi.GetInPorts() },
	}, nil
}

func (s *Source) ListDevices() ([]contracts.DeviceInfo, error) {
	ports := s.ins()
	if len(ports) == 0 {
		s.logger.Warn(capture.ErrNoMIDIDevices.Error())
		return nil, capture.ErrNoMIDIDevices
	}
	devices := make([]contracts.DeviceInfo, len(ports))
	for i, p := range ports {
		devices[i] = contracts.DeviceInfo{
			Name:       p.String(),
			EntityName: fmt.Sprintf("port %d", p.Number()),
		}
	}
	return devices, nil
}

// SelectDevice opens the input port at deviceID and starts listening.
// Messages are discarded until StartCapture.
func (s *Source) SelectDevice(deviceID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ports := s.ins()
	if deviceID < 0 || deviceID >= len(ports) {
		s.logger.Error(capture.ErrInvalidMIDIDevice.Error(), s.logger.Field().Int("deviceID", deviceID))
		return capture.ErrInvalidMIDIDevice
	}
	s.closeLocked()

	port := ports[deviceID]
	if err := port.Open(); err != nil {
		return fmt.Errorf("%w: %v", capture.ErrMIDIConnectionError, err)
	}
	stop, err := midi.ListenTo(port, s.onMessage, midi.UseSysEx(), midi.HandleError(s.onError))
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("%w: %v", capture.ErrMIDIConnectionError, err)
	}
	s.port, s.stop = port, stop

	s.logger.Info("MIDI port connected",
		s.logger.Field().Int("deviceID", deviceID),
		s.logger.Field().String("deviceName", port.String()))
	return nil
}

func (s *Source) onMessage(msg midi.Message, _ int32) {
	s.dispatch.Dispatch(msg)
}

func (s *Source) onError(err error) {
	s.logger.Warn("MIDI listener error", s.logger.Field().Error("error", err))
}

func (s *Source) StartCapture(eventChannel chan<- contracts.MidiEvent) {
	if eventChannel == nil {
		s.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	s.dispatch.Attach(eventChannel)
	s.logger.Info("Starting MIDI event capture")
}

func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.dispatch.Detach()
	return nil
}

func (s *Source) closeLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.port != nil {
		if err := s.port.Close(); err != nil {
			s.logger.Warn("closing MIDI port", s.logger.Field().Error("error", err))
		}
		s.port = nil
	}
}

// OpenOutput opens the output port at index and returns a function sending
// raw messages to it, together with the port's Close.
func OpenOutput(index int) (send func([]byte) error, closeFn func() error, err error) {
	outs := midi.GetOutPorts()
	if index < 0 || index >= len(outs) {
		return nil, nil, capture.ErrInvalidMIDIDevice
	}
	out := outs[index]
	sendTo, err := midi.SendTo(out)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", capture.ErrMIDIConnectionError, err)
	}
	return func(msg []byte) error { return sendTo(midi.Message(msg)) }, out.Close, nil
}
