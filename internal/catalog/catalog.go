// Package catalog holds the ordered set of installable instruments known to
// the active provider session.
package catalog

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Catalog is an ordered collection of instruments keyed by identifier.
// It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	order []string
	items map[string]contracts.Instrument
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{items: make(map[string]contracts.Instrument)}
}

// Upsert inserts inst or replaces the entry with the same ID. Existing entries
// keep their position; new ones are appended. A replacement whose status is
// NotInstalled keeps the stored status so a metadata refresh never rolls back
// install progress.
func (c *Catalog) Upsert(inst contracts.Instrument) error {
	if inst.ID == "" {
		return fmt.Errorf("%w: instrument without identifier", contracts.ErrInvalidState)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.items[inst.ID]
	if !exists {
		c.order = append(c.order, inst.ID)
	} else if inst.Status == contracts.StatusNotInstalled {
		inst.Status = prev.Status
	}
	c.items[inst.ID] = inst
	return nil
}

// Get returns the instrument with the given ID.
func (c *Catalog) Get(id string) (contracts.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.items[id]
	if !ok {
		return contracts.Instrument{}, fmt.Errorf("%w: instrument %q", contracts.ErrNotFound, id)
	}
	return inst, nil
}

// SetStatus moves the instrument to status. It fails with ErrNotFound for an
// unknown ID and with ErrInvalidState for a transition that would move
// progress backwards.
func (c *Catalog) SetStatus(id string, status contracts.InstallStatus) error {
	_, err := c.CompareAndSetStatus(id, nil, status)
	return err
}

// CompareAndSetStatus applies status only when guard, if non-nil, accepts the
// current status. It returns the status seen before the update.
func (c *Catalog) CompareAndSetStatus(id string, guard func(contracts.InstallStatus) bool, status contracts.InstallStatus) (contracts.InstallStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.items[id]
	if !ok {
		return contracts.InstallStatus{}, fmt.Errorf("%w: instrument %q", contracts.ErrNotFound, id)
	}
	prev := inst.Status
	if guard != nil && !guard(prev) {
		return prev, fmt.Errorf("%w: instrument %q is %s", contracts.ErrInvalidState, id, prev)
	}
	if !prev.CanTransition(status) {
		return prev, fmt.Errorf("%w: instrument %q cannot move from %s to %s",
			contracts.ErrInvalidState, id, prev, status)
	}
	inst.Status = status
	c.items[id] = inst
	return prev, nil
}

// List returns a snapshot of the instruments in catalog order.
func (c *Catalog) List() []contracts.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]contracts.Instrument, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Len returns the number of instruments.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Reset removes every instrument.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.items = make(map[string]contracts.Instrument)
}
