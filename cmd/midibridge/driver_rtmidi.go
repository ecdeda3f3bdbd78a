//go:build rtmidi

package main

// Registers the RtMidi driver for port:N endpoints. Needs cgo.
import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
