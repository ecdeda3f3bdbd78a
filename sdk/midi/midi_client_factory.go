package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midibridge/internal/midi/mididarwin"
	"github.com/leandrodaf/midibridge/internal/midi/midiport"
	"github.com/leandrodaf/midibridge/internal/midi/midiwindows"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system has no device source.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// deviceInitializers maps OS names to device source initializers. Linux
// uses whichever gomidi driver the host registered.
var deviceInitializers = map[string]func(*contracts.ClientOptions) (contracts.DeviceSource, error){
	"darwin":  mididarwin.NewDeviceSource,  // macOS CoreMIDI.
	"windows": midiwindows.NewDeviceSource, // Windows winmm.
	"linux":   midiport.NewDeviceSource,    // gomidi driver ports.
}

// NewClient initializes the device source for the current operating system.
func NewClient(opts *contracts.ClientOptions) (contracts.DeviceSource, error) {
	return newClientFor(runtime.GOOS, opts)
}

func newClientFor(goos string, opts *contracts.ClientOptions) (contracts.DeviceSource, error) {
	if initializer, exists := deviceInitializers[goos]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
}

// NewPortClient returns a device source over the registered gomidi driver on
// any operating system.
func NewPortClient(opts ...contracts.Option) (contracts.DeviceSource, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return midiport.NewDeviceSource(&options)
}
