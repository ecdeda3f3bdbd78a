package contracts

import "time"

// RetryPolicy bounds the retries of transient fetch failures.
type RetryPolicy struct {
	MaxRetries      uint64        // Retries after the first attempt.
	InitialInterval time.Duration // First backoff delay.
	MaxInterval     time.Duration // Upper bound of a single delay.
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// ClientOptions defines the configuration options for the bridge and its device sources.
type ClientOptions struct {
	Logger                Logger           // Logger for logging events and errors.
	LogLevel              LogLevel         // Level of logging to use.
	LogFilePath           string           // File path for logging if file logging is enabled.
	MIDIEventFilter       *MIDIEventFilter // Optional filter for captured device events.
	CoreMIDIConfig        *CoreMIDIConfig  // Configuration specific to CoreMIDI.
	Provider              Provider         // Initial provider of the container.
	Storage               Storage          // Asset storage used by installs.
	AssetDir              string           // Directory for the default file storage.
	Retry                 *RetryPolicy     // Fetch retry policy.
	MaxConcurrentInstalls int64            // Simultaneous fetches across a batch.
	DrainDeadline         time.Duration    // Upper bound for draining a stopped session.
	EventBuffer           int              // Buffered events per session.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs logs to path.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithMIDIEventFilter sets the MIDI event filter for device sources.
func WithMIDIEventFilter(filter MIDIEventFilter) Option {
	return func(opts *ClientOptions) {
		opts.MIDIEventFilter = &filter
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *ClientOptions) {
		opts.CoreMIDIConfig = &config
	}
}

// WithProvider sets the initial provider.
func WithProvider(p Provider) Option {
	return func(opts *ClientOptions) {
		opts.Provider = p
	}
}

// WithStorage sets the asset storage collaborator.
func WithStorage(s Storage) Option {
	return func(opts *ClientOptions) {
		opts.Storage = s
	}
}

// WithAssetDir sets the directory used by the default file storage.
func WithAssetDir(dir string) Option {
	return func(opts *ClientOptions) {
		opts.AssetDir = dir
	}
}

// WithRetryPolicy overrides the fetch retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(opts *ClientOptions) {
		opts.Retry = &p
	}
}

// WithMaxConcurrentInstalls bounds simultaneous fetches.
func WithMaxConcurrentInstalls(n int64) Option {
	return func(opts *ClientOptions) {
		opts.MaxConcurrentInstalls = n
	}
}

// WithDrainDeadline bounds how long a stopped session keeps delivering buffered events.
func WithDrainDeadline(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.DrainDeadline = d
	}
}

// WithEventBuffer sets the per-session event buffer size.
func WithEventBuffer(n int) Option {
	return func(opts *ClientOptions) {
		opts.EventBuffer = n
	}
}
