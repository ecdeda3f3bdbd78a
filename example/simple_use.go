package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/leandrodaf/midibridge/sdk/midi"
)

func main() {
	log := logger.NewZapLogger()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: simple_use <instrument-dir> [id...]")
		os.Exit(2)
	}

	provider, err := midi.NewLocalProvider(os.Args[1])
	if err != nil {
		log.Error("Failed to open instrument directory", log.Field().Error("error", err))
		return
	}

	b, err := midi.NewBridge(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithProvider(midi.NewCachedProvider(provider)),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
			Commands: []contracts.MIDICommand{contracts.NoteOnCommand, contracts.NoteOffCommand},
		}),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI bridge", log.Field().Error("error", err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcomes, err := b.MidiInstall(ctx, os.Args[2:])
	if err != nil {
		log.Error("Install failed", log.Field().Error("error", err))
		return
	}
	for id, out := range outcomes {
		fmt.Printf("%s: %s\n", id, out.Status)
	}

	client, err := midi.NewMIDIClient(contracts.WithLogger(log))
	if err != nil {
		log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
		return
	}

	devices, err := client.ListDevices()
	if err != nil || len(devices) == 0 {
		log.Error("No MIDI devices found or error listing devices", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI devices:", devices)

	if err = client.SelectDevice(0); err != nil {
		log.Error("Failed to select MIDI device", log.Field().Error("error", err))
		return
	}

	session, source, err := b.ForwardDevice(client, midi.NewLogSink(log))
	if err != nil {
		log.Error("Failed to start forwarding", log.Field().Error("error", err))
		return
	}
	defer source.Close()

	fmt.Println("Forwarding MIDI events... Press Ctrl+C to exit.")
	select {
	case <-ctx.Done():
	case <-session.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	report, err := session.Stop(stopCtx)
	if err != nil {
		log.Warn("Drain cut short", log.Field().Error("error", err))
	}
	fmt.Printf("delivered %d, dropped %d\n", report.Delivered, report.Dropped)
}
