package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/protocol"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

type fakeDevice struct {
	mu      sync.Mutex
	ch      chan<- contracts.MidiEvent
	started chan struct{}
	stopped bool
}

func newFakeDevice() *fakeDevice { return &fakeDevice{started: make(chan struct{})} }

func (d *fakeDevice) ListDevices() ([]contracts.DeviceInfo, error) {
	return []contracts.DeviceInfo{{Name: "fake"}}, nil
}
func (d *fakeDevice) SelectDevice(int) error { return nil }

func (d *fakeDevice) StartCapture(ch chan<- contracts.MidiEvent) {
	d.mu.Lock()
	d.ch = ch
	d.mu.Unlock()
	close(d.started)
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) emit(events ...contracts.MidiEvent) {
	<-d.started
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ev := range events {
		d.ch <- ev
	}
}

func TestDeviceFrameSourceBatchesPendingEvents(t *testing.T) {
	dev := newFakeDevice()
	src := NewDeviceFrameSource(dev, 16, logger.NewNopLogger())

	go dev.emit(note(1), contracts.Other{}, note(2))
	f, err := src.ReadFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", f.Sequence)
	}
	total := len(f.Events)
	for total < 2 {
		next, err := src.ReadFrame(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if next.Sequence <= f.Sequence {
			t.Fatalf("sequence %d after %d", next.Sequence, f.Sequence)
		}
		f = next
		total += len(next.Events)
	}
	if total != 2 {
		t.Errorf("read %d events, want 2 (invalid event discarded)", total)
	}
}

func TestDeviceFrameSourceClose(t *testing.T) {
	dev := newFakeDevice()
	src := NewDeviceFrameSource(dev, 4, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := src.ReadFrame(context.Background())
		errc <- err
	}()
	<-dev.started
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("err = %v, want io.EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReadFrame did not return after Close")
	}
	if !dev.stopped {
		t.Error("device not stopped")
	}
}

func TestDeviceToStreamForwarding(t *testing.T) {
	dev := newFakeDevice()
	src := NewDeviceFrameSource(dev, 16, nil)
	var out bytes.Buffer
	var mu sync.Mutex
	sink := NewWriterSink(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return out.Write(p)
	}))

	s := start(t, src, sink)
	dev.emit(note(60), contracts.ControlChange{Channel: 1, Controller: 64, Value: 127})
	eventually(t, "two deliveries", func() bool { return s.Report().Delivered == 2 })

	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	report := waitDone(t, s)
	if report.State != contracts.SessionClosed {
		t.Fatalf("state = %s", report.State)
	}

	mu.Lock()
	r := protocol.NewReader(bytes.NewReader(out.Bytes()))
	mu.Unlock()
	var got []contracts.MidiEvent
	for {
		f, err := r.ReadFrame(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, f.Events...)
	}
	if len(got) != 2 || got[0] != note(60) {
		t.Errorf("stream carried %v", got)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
