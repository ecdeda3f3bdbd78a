package contracts

// DeviceInfo contains information about a MIDI device.
type DeviceInfo struct {
	Name         string // Device name.
	Manufacturer string // Device manufacturer.
	EntityName   string // Name of the entity to which the device belongs.
}

// DeviceSource captures live MIDI events from a hardware or software port.
type DeviceSource interface {
	Stop() error                                // Stops capture and releases the port.
	ListDevices() ([]DeviceInfo, error)         // Lists all available MIDI input devices.
	SelectDevice(deviceID int) error            // Connects to the device at the given index.
	StartCapture(eventChannel chan<- MidiEvent) // Starts delivering decoded events to eventChannel.
}
