package midi

import (
	"errors"
	"testing"

	"github.com/leandrodaf/midibridge/internal/bridge"
	"github.com/leandrodaf/midibridge/internal/install"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

func TestApplyDefaultOptions(t *testing.T) {
	options, err := applyDefaultOptions(contracts.WithLogger(logger.NewNopLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if options.CoreMIDIConfig.ClientName != DefaultClientName {
		t.Errorf("client name = %q", options.CoreMIDIConfig.ClientName)
	}
	if options.Retry.MaxRetries != install.DefaultMaxRetries {
		t.Errorf("retries = %d", options.Retry.MaxRetries)
	}
	if options.MaxConcurrentInstalls != install.DefaultMaxConcurrent {
		t.Errorf("concurrency = %d", options.MaxConcurrentInstalls)
	}
	if options.DrainDeadline != bridge.DefaultDrainDeadline || options.EventBuffer != bridge.DefaultBuffer {
		t.Errorf("session defaults = %v, %d", options.DrainDeadline, options.EventBuffer)
	}
}

func TestApplyDefaultOptionsKeepsOverrides(t *testing.T) {
	options, err := applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithCoreMIDIConfig(contracts.CoreMIDIConfig{ClientName: "studio"}),
		contracts.WithMaxConcurrentInstalls(9),
		contracts.WithEventBuffer(3),
	)
	if err != nil {
		t.Fatal(err)
	}
	if options.CoreMIDIConfig.ClientName != "studio" || options.MaxConcurrentInstalls != 9 || options.EventBuffer != 3 {
		t.Errorf("overrides lost: %+v", options)
	}
}

func TestStorageDefaults(t *testing.T) {
	dir := t.TempDir()
	options := contracts.ClientOptions{AssetDir: dir}
	if err := applyStorageDefaults(&options); err != nil {
		t.Fatal(err)
	}
	if options.Storage == nil {
		t.Fatal("no storage created")
	}
}

func TestClientFactory(t *testing.T) {
	opts := &contracts.ClientOptions{Logger: logger.NewNopLogger()}
	if _, err := newClientFor("plan9", opts); !errors.Is(err, ErrUnsupportedOS) {
		t.Errorf("plan9 err = %v, want ErrUnsupportedOS", err)
	}
	for _, goos := range []string{"darwin", "windows", "linux"} {
		src, err := newClientFor(goos, opts)
		if err != nil || src == nil {
			t.Errorf("%s: source %v, err %v", goos, src, err)
		}
	}
}
