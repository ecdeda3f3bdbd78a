package install

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/leandrodaf/midibridge/internal/provider"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// scriptedProvider returns, per identifier, the queued errors first and the
// asset afterwards. When gate is non-nil every fetch blocks until it is
// closed or the fetch context ends.
type scriptedProvider struct {
	instruments []contracts.Instrument
	assets      map[string][]byte
	failures    map[string][]error
	gate        chan struct{}

	mu      sync.Mutex
	calls   map[string]int
	started chan string
	active  int
	maxSeen int
}

func newScripted(assets map[string][]byte, order ...string) *scriptedProvider {
	p := &scriptedProvider{
		assets:   assets,
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		started:  make(chan string, 64),
	}
	for _, id := range order {
		p.instruments = append(p.instruments, contracts.Instrument{ID: id, Name: id})
	}
	return p
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) List(ctx context.Context) ([]contracts.Instrument, error) {
	return append([]contracts.Instrument(nil), p.instruments...), nil
}

func (p *scriptedProvider) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	p.mu.Lock()
	p.calls[id]++
	p.active++
	if p.active > p.maxSeen {
		p.maxSeen = p.active
	}
	var err error
	if q := p.failures[id]; len(q) > 0 {
		err, p.failures[id] = q[0], q[1:]
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	p.started <- id
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	data, ok := p.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNotFound, id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *scriptedProvider) fetches(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

// memStorage records written assets.
type memStorage struct {
	mu     sync.Mutex
	assets map[string][]byte
	err    error
}

func newMemStorage() *memStorage { return &memStorage{assets: make(map[string][]byte)} }

func (s *memStorage) WriteAsset(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.assets[id] = append([]byte(nil), data...)
	return nil
}

func zeroBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func setup(t *testing.T, p contracts.Provider, opts ...Option) (*Coordinator, *provider.Container, *memStorage) {
	t.Helper()
	container := provider.NewContainer(p, nil)
	if err := container.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("RefreshCatalog: %v", err)
	}
	store := newMemStorage()
	opts = append([]Option{WithBackOff(zeroBackOff)}, opts...)
	return New(container, store, opts...), container, store
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func waitStarted(t *testing.T, p *scriptedProvider, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.started:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d fetches started", i, n)
		}
	}
}

func statusOf(t *testing.T, c *provider.Container, id string) contracts.InstallStatus {
	t.Helper()
	for _, inst := range c.Catalog() {
		if inst.ID == id {
			return inst.Status
		}
	}
	t.Fatalf("instrument %s not in catalog", id)
	return contracts.InstallStatus{}
}
