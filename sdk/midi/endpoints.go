package midi

import (
	"io"

	"github.com/leandrodaf/midibridge/internal/bridge"
	"github.com/leandrodaf/midibridge/internal/protocol"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// NewStreamSource decodes frames from r.
func NewStreamSource(r io.Reader) contracts.FrameSource {
	return protocol.NewReader(r)
}

// NewStreamSink encodes every delivered event as a frame on w.
func NewStreamSink(w io.Writer) contracts.EventSink {
	return bridge.NewWriterSink(w)
}

// NewLogSink logs every delivered event.
func NewLogSink(log contracts.Logger) contracts.EventSink {
	return bridge.LogSink{Logger: log}
}

// NewMessageSink sends every delivered event as raw MIDI bytes.
func NewMessageSink(send func(msg []byte) error) contracts.EventSink {
	return bridge.MessageSink(send)
}
