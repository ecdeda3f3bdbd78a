package midi

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/leandrodaf/midibridge/internal/bridge"
	"github.com/leandrodaf/midibridge/internal/install"
	"github.com/leandrodaf/midibridge/internal/provider"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.uber.org/multierr"
)

// Bridge is the host command surface. It owns the provider container, the
// install coordinator built on it and the forwarding sessions it started.
type Bridge struct {
	options   contracts.ClientOptions
	logger    contracts.Logger
	container *provider.Container
	installer *install.Coordinator

	mu       sync.Mutex
	sessions map[string]*bridge.Session
}

// NewBridge creates a bridge. The initial provider comes from
// contracts.WithProvider; without one, installs fail with ErrInvalidState
// until a provider is set on Container().
func NewBridge(opts ...contracts.Option) (*Bridge, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	if err := applyStorageDefaults(&options); err != nil {
		return nil, err
	}

	container := provider.NewContainer(options.Provider, options.Logger)
	b := &Bridge{
		options:   options,
		logger:    options.Logger,
		container: container,
		installer: install.New(container, options.Storage,
			install.WithLogger(options.Logger),
			install.WithRetryPolicy(*options.Retry),
			install.WithMaxConcurrent(options.MaxConcurrentInstalls),
		),
		sessions: make(map[string]*bridge.Session),
	}
	return b, nil
}

// Container returns the shared provider container.
func (b *Bridge) Container() contracts.ProviderContainer { return b.container }

func (b *Bridge) Logger() contracts.Logger { return b.logger }

// Options returns the effective options after defaults were applied.
func (b *Bridge) Options() contracts.ClientOptions { return b.options }

// MidiInstall installs ids, listing the provider first when the catalog is
// still empty.
func (b *Bridge) MidiInstall(ctx context.Context, ids []string) (contracts.InstallOutcomes, error) {
	if len(b.container.Catalog()) == 0 {
		if err := b.container.RefreshCatalog(ctx); err != nil {
			return nil, fmt.Errorf("refreshing catalog: %w", err)
		}
	}
	return b.InstallInstruments(ctx, ids)
}

// InstallInstruments installs ids against the current catalog.
func (b *Bridge) InstallInstruments(ctx context.Context, ids []string) (contracts.InstallOutcomes, error) {
	return b.installer.InstallInstruments(ctx, ids)
}

// CancelInstall aborts the in-flight install of id.
func (b *Bridge) CancelInstall(id string) bool {
	return b.installer.Cancel(id)
}

// ForwardMIDI starts a session forwarding events from source to sink.
func (b *Bridge) ForwardMIDI(source contracts.FrameSource, sink contracts.EventSink) (contracts.Session, error) {
	s := bridge.NewSession(source, sink,
		bridge.WithLogger(b.logger),
		bridge.WithDrainDeadline(b.options.DrainDeadline),
		bridge.WithBuffer(b.options.EventBuffer),
	)
	if err := s.Start(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.sessions[s.ID()] = s
	b.mu.Unlock()

	go func() {
		<-s.Done()
		b.mu.Lock()
		delete(b.sessions, s.ID())
		b.mu.Unlock()
	}()
	return s, nil
}

// ForwardDevice captures events from a device with a selected port and
// forwards them to sink. Stopping the session does not stop the device;
// close the returned source for that.
func (b *Bridge) ForwardDevice(device contracts.DeviceSource, sink contracts.EventSink) (contracts.Session, io.Closer, error) {
	source := bridge.NewDeviceFrameSource(device, b.options.EventBuffer, b.logger)
	s, err := b.ForwardMIDI(source, sink)
	if err != nil {
		return nil, nil, err
	}
	return s, source, nil
}

// Sessions returns the identifiers of sessions that have not finished.
func (b *Bridge) Sessions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every running session.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	running := make([]*bridge.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		running = append(running, s)
	}
	b.mu.Unlock()

	var err error
	for _, s := range running {
		if _, stopErr := s.Stop(ctx); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("session %s: %w", s.ID(), stopErr))
		}
	}
	return err
}
