package capture

import "fmt"

// MessageLength returns the size of the message starting with status, 0 for
// SysEx (terminated by 0xF7) and -1 for a data byte.
func MessageLength(status byte) int {
	switch {
	case status < 0x80:
		return -1
	case status < 0xC0, status >= 0xE0 && status < 0xF0:
		return 3
	case status < 0xE0:
		return 2
	}
	switch status {
	case 0xF0:
		return 0
	case 0xF1, 0xF3:
		return 2
	case 0xF2:
		return 3
	default:
		return 1
	}
}

// Split cuts a packet into complete messages. Data bytes without a leading
// status byte are skipped. A message cut short at the end of data is
// reported with ErrIncompleteMIDIPacket; the complete ones before it are
// still returned.
func Split(data []byte) ([][]byte, error) {
	var msgs [][]byte
	for i := 0; i < len(data); {
		n := MessageLength(data[i])
		switch {
		case n < 0:
			i++
			continue
		case n == 0:
			end := i + 1
			for end < len(data) && data[end] != 0xF7 {
				end++
			}
			if end == len(data) {
				return msgs, fmt.Errorf("%w: unterminated SysEx", ErrIncompleteMIDIPacket)
			}
			n = end - i + 1
		case i+n > len(data):
			return msgs, fmt.Errorf("%w: status 0x%02X needs %d bytes, %d left", ErrIncompleteMIDIPacket, data[i], n, len(data)-i)
		}
		msgs = append(msgs, data[i:i+n])
		i += n
	}
	return msgs, nil
}
