package bridge

import (
	"context"
	"io"

	"github.com/leandrodaf/midibridge/internal/protocol"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// SinkFunc adapts a function to contracts.EventSink.
type SinkFunc func(ctx context.Context, ev contracts.MidiEvent) error

func (f SinkFunc) Deliver(ctx context.Context, ev contracts.MidiEvent) error { return f(ctx, ev) }

// WriterSink re-encodes every delivered event as a one-event frame on w.
type WriterSink struct {
	encoder *protocol.Encoder
	writer  *protocol.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{encoder: protocol.NewEncoder(), writer: protocol.NewWriter(w)}
}

func (s *WriterSink) Deliver(ctx context.Context, ev contracts.MidiEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := s.encoder.Next(ev)
	if err != nil {
		return err
	}
	return s.writer.WriteFrame(f)
}

// MessageSink sends delivered events as raw MIDI bytes, for example to a
// gomidi output port's Send method.
type MessageSink func(msg []byte) error

func (send MessageSink) Deliver(ctx context.Context, ev contracts.MidiEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := protocol.ToMessage(ev)
	if err != nil {
		return err
	}
	return send(msg)
}

// LogSink logs every delivered event.
type LogSink struct {
	Logger contracts.Logger
}

func (s LogSink) Deliver(_ context.Context, ev contracts.MidiEvent) error {
	log := s.Logger
	fields := []contracts.Field{log.Field().String("kind", ev.Kind().String())}

	switch e := ev.(type) {
	case contracts.NoteOn:
		fields = append(fields, log.Field().Uint8("channel", e.Channel), log.Field().Uint8("note", e.Note), log.Field().Uint8("velocity", e.Velocity))
	case contracts.NoteOff:
		fields = append(fields, log.Field().Uint8("channel", e.Channel), log.Field().Uint8("note", e.Note), log.Field().Uint8("velocity", e.Velocity))
	case contracts.ControlChange:
		fields = append(fields, log.Field().Uint8("channel", e.Channel), log.Field().Uint8("controller", e.Controller), log.Field().Uint8("value", e.Value))
	case contracts.ProgramChange:
		fields = append(fields, log.Field().Uint8("channel", e.Channel), log.Field().Uint8("program", e.Program))
	case contracts.SystemExclusive:
		fields = append(fields, log.Field().Int("bytes", len(e.Payload)))
	case contracts.Other:
		fields = append(fields, log.Field().Int("bytes", len(e.Raw)))
	}

	log.Info("MIDI event", fields...)
	return nil
}
