package midi

import (
	"os"
	"path/filepath"

	"github.com/leandrodaf/midibridge/internal/bridge"
	"github.com/leandrodaf/midibridge/internal/install"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/storage"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// DefaultClientName names the CoreMIDI client when none is configured.
const DefaultClientName = "midibridge"

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Set defaults if options are not provided
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}

	if options.CoreMIDIConfig == nil {
		options.CoreMIDIConfig = &contracts.CoreMIDIConfig{ClientName: DefaultClientName}
	}
	if options.Retry == nil {
		options.Retry = &contracts.RetryPolicy{
			MaxRetries:      install.DefaultMaxRetries,
			InitialInterval: install.DefaultInitialInterval,
			MaxInterval:     install.DefaultMaxInterval,
		}
	}
	if options.MaxConcurrentInstalls <= 0 {
		options.MaxConcurrentInstalls = install.DefaultMaxConcurrent
	}
	if options.DrainDeadline <= 0 {
		options.DrainDeadline = bridge.DefaultDrainDeadline
	}
	if options.EventBuffer <= 0 {
		options.EventBuffer = bridge.DefaultBuffer
	}
	return *options, nil
}

// applyStorageDefaults creates the file storage when no Storage was given.
func applyStorageDefaults(options *contracts.ClientOptions) error {
	if options.Storage != nil {
		return nil
	}
	if options.AssetDir == "" {
		options.AssetDir = DefaultAssetDir()
	}
	fs, err := storage.NewFileStorage(options.AssetDir)
	if err != nil {
		return err
	}
	options.Storage = fs
	return nil
}

// DefaultAssetDir is the user cache directory, or the temp directory when
// the platform has none.
func DefaultAssetDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "midibridge", "instruments")
}
