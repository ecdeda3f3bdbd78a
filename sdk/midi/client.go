package midi

import (
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// NewMIDIClient creates the device source of the current platform with the
// specified options.
func NewMIDIClient(opts ...contracts.Option) (contracts.DeviceSource, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(&options)
	if err != nil {
		return nil, err
	}

	return client, nil
}
