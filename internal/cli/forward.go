package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/leandrodaf/midibridge/internal/bridge"
	"github.com/leandrodaf/midibridge/internal/midi/midiport"
	"github.com/leandrodaf/midibridge/internal/protocol"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/leandrodaf/midibridge/sdk/midi"
	"github.com/spf13/cobra"
)

func newForwardCommand(a *app) *cobra.Command {
	var (
		from     string
		to       string
		duration time.Duration
		filter   []string
	)
	cmd := &cobra.Command{
		Use:   "forward",
		Short: "Forward MIDI events from a source to a sink",
		Long: `Forward MIDI events until the source ends, the duration elapses or the
process is interrupted.

Sources: a frame stream file, "-" for stdin, "device:N" for the platform MIDI
input N, or "port:N" for input N of the registered gomidi driver.
Sinks: a frame stream file, "-" for stdout, "log", or "port:N" for output N
of the registered gomidi driver.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []contracts.Option
			if len(filter) > 0 {
				f, err := parseFilter(filter)
				if err != nil {
					return err
				}
				extra = append(extra, contracts.WithMIDIEventFilter(f))
			}
			opts, err := a.options(extra...)
			if err != nil {
				return err
			}
			b, err := midi.NewBridge(opts...)
			if err != nil {
				return err
			}

			sink, closeSink, err := openSink(to, b.Logger(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeSink()

			session, closeSource, err := startForward(b, from, sink, opts, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeSource()

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			select {
			case <-session.Done():
			case <-ctx.Done():
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), b.Options().DrainDeadline*2)
			defer cancel()
			report, err := session.Stop(stopCtx)
			fmt.Fprintf(cmd.ErrOrStderr(), "session %s %s: %d delivered, %d dropped\n",
				session.ID(), report.State, report.Delivered, report.Dropped)
			if err != nil {
				return err
			}
			if report.Fault != nil {
				return report.Fault
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "-", "event source")
	cmd.Flags().StringVar(&to, "to", "log", "event sink")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until the source ends)")
	cmd.Flags().StringSliceVar(&filter, "filter", nil, "device commands to keep: note-on, note-off, control-change, program-change")
	return cmd
}

func startForward(b *midi.Bridge, from string, sink contracts.EventSink, opts []contracts.Option, stdin io.Reader) (contracts.Session, func(), error) {
	kind, index, isPort, err := parseEndpoint(from)
	if err != nil {
		return nil, nil, err
	}
	if !isPort {
		r, closeFn, err := openInput(from, stdin)
		if err != nil {
			return nil, nil, err
		}
		s, err := b.ForwardMIDI(protocol.NewReader(r), sink)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return s, closeFn, nil
	}

	var device contracts.DeviceSource
	if kind == "port" {
		device, err = midi.NewPortClient(opts...)
	} else {
		device, err = midi.NewMIDIClient(opts...)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := device.SelectDevice(index); err != nil {
		_ = device.Stop()
		return nil, nil, err
	}
	s, source, err := b.ForwardDevice(device, sink)
	if err != nil {
		_ = device.Stop()
		return nil, nil, err
	}
	return s, func() { _ = source.Close() }, nil
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func openSink(to string, log contracts.Logger, stdout io.Writer) (contracts.EventSink, func(), error) {
	kind, index, isPort, err := parseEndpoint(to)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case to == "log":
		return bridge.LogSink{Logger: log}, func() {}, nil
	case to == "-":
		return bridge.NewWriterSink(stdout), func() {}, nil
	case isPort && kind == "port":
		send, closeFn, err := midiport.OpenOutput(index)
		if err != nil {
			return nil, nil, err
		}
		return bridge.MessageSink(send), func() { _ = closeFn() }, nil
	case isPort:
		return nil, nil, fmt.Errorf("%q cannot be used as a sink", to)
	}

	f, err := os.Create(to)
	if err != nil {
		return nil, nil, err
	}
	return bridge.NewWriterSink(f), func() { f.Close() }, nil
}

// parseEndpoint recognizes "device:N" and "port:N".
func parseEndpoint(s string) (kind string, index int, ok bool, err error) {
	kind, rest, found := strings.Cut(s, ":")
	if !found || (kind != "device" && kind != "port") {
		return "", 0, false, nil
	}
	index, err = strconv.Atoi(rest)
	if err != nil || index < 0 {
		return "", 0, false, fmt.Errorf("invalid %s index %q", kind, rest)
	}
	return kind, index, true, nil
}

func parseFilter(names []string) (contracts.MIDIEventFilter, error) {
	var f contracts.MIDIEventFilter
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "note-on":
			f.Commands = append(f.Commands, contracts.NoteOnCommand)
		case "note-off":
			f.Commands = append(f.Commands, contracts.NoteOffCommand)
		case "control-change":
			f.Commands = append(f.Commands, contracts.ControlChangeCommand)
		case "program-change":
			f.Commands = append(f.Commands, contracts.ProgramChangeCommand)
		default:
			return f, fmt.Errorf("unknown filter command %q", name)
		}
	}
	return f, nil
}
