// Package provider holds the active instrument provider and its catalog, and
// implements the remote, local and cached provider variants.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/internal/catalog"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Container is the process-wide holder of the active provider and the
// catalog derived from it. Reads take a shared lock; SetProvider takes the
// exclusive lock and is rejected while any install holds a Lease.
type Container struct {
	mu         sync.RWMutex
	provider   contracts.Provider
	catalog    *catalog.Catalog
	generation uint64
	leases     int
	logger     contracts.Logger
}

// NewContainer creates a container with p as the initial provider.
func NewContainer(p contracts.Provider, log contracts.Logger) *Container {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Container{
		provider: p,
		catalog:  catalog.New(),
		logger:   log,
	}
}

// Lease pins the provider and catalog of one generation while an install
// runs. Release must be called once per lease; extra calls are ignored.
type Lease struct {
	Provider   contracts.Provider
	Catalog    *catalog.Catalog
	Generation uint64

	container *Container
	once      sync.Once
}

// Release returns the lease to the container.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.container.mu.Lock()
		l.container.leases--
		l.container.mu.Unlock()
	})
}

// Share returns an additional lease on the same generation, for work that
// may outlive the holder of l.
func (l *Lease) Share() *Lease {
	l.container.mu.Lock()
	defer l.container.mu.Unlock()
	return l.container.newLeaseLocked()
}

func (c *Container) newLeaseLocked() *Lease {
	c.leases++
	return &Lease{
		Provider:   c.provider,
		Catalog:    c.catalog,
		Generation: c.generation,
		container:  c,
	}
}

// CurrentProvider returns the active provider. It may be nil before one is set.
func (c *Container) CurrentProvider() contracts.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

// Catalog returns a snapshot of the current catalog.
func (c *Container) Catalog() []contracts.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalog.List()
}

// Generation increments every time the provider is replaced.
func (c *Container) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Acquire pins the current provider for an install batch. While any lease is
// held, SetProvider fails with ErrInvalidState.
func (c *Container) Acquire() (*Lease, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		return nil, fmt.Errorf("%w: no active provider", contracts.ErrInvalidState)
	}
	return c.newLeaseLocked(), nil
}

// SetProvider atomically replaces the active provider and clears the
// catalog. Switching while an install is in flight is rejected.
func (c *Container) SetProvider(p contracts.Provider) error {
	if p == nil {
		return fmt.Errorf("%w: nil provider", contracts.ErrInvalidState)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.leases > 0 {
		return fmt.Errorf("%w: %d install batch(es) in flight for provider %s",
			contracts.ErrInvalidState, c.leases, providerName(c.provider))
	}

	prev := providerName(c.provider)
	c.provider = p
	c.generation++
	c.catalog.Reset()

	c.logger.Info("Provider switched",
		c.logger.Field().String("from", prev),
		c.logger.Field().String("to", p.Name()),
		c.logger.Field().Uint64("generation", c.generation))
	return nil
}

// RefreshCatalog lists the active provider and upserts every result. On
// failure the catalog is left untouched and the error is returned. If the
// provider was switched while listing, the stale result is discarded.
func (c *Container) RefreshCatalog(ctx context.Context) error {
	c.mu.RLock()
	p, gen := c.provider, c.generation
	c.mu.RUnlock()

	if p == nil {
		return fmt.Errorf("%w: no active provider", contracts.ErrInvalidState)
	}

	instruments, err := p.List(ctx)
	if err != nil {
		c.logger.Error("Failed to list instruments",
			c.logger.Field().String("provider", p.Name()),
			c.logger.Field().Error("error", err))
		return fmt.Errorf("listing instruments from %s: %w", p.Name(), err)
	}

	seen := make(map[string]struct{}, len(instruments))
	for _, inst := range instruments {
		if inst.ID == "" {
			return fmt.Errorf("%w: provider %s listed an instrument without identifier", contracts.ErrInvalidState, p.Name())
		}
		if _, dup := seen[inst.ID]; dup {
			return fmt.Errorf("%w: provider %s listed %q twice", contracts.ErrInvalidState, p.Name(), inst.ID)
		}
		seen[inst.ID] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return fmt.Errorf("%w: provider switched during refresh", contracts.ErrInvalidState)
	}
	for _, inst := range instruments {
		inst.Status = contracts.StatusNotInstalled
		if err := c.catalog.Upsert(inst); err != nil {
			return err
		}
	}

	c.logger.Info("Catalog refreshed",
		c.logger.Field().String("provider", p.Name()),
		c.logger.Field().Int("instruments", len(instruments)))
	return nil
}

func providerName(p contracts.Provider) string {
	if p == nil {
		return "<none>"
	}
	return p.Name()
}
