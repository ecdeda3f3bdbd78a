package contracts

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/multierr"
)

// Provider is a source of instrument metadata and asset bytes.
//
// Fetch errors wrap ErrNotFound, ErrNetworkFailure, ErrPermissionDenied or ErrIOFailure
// so that callers can decide whether a retry makes sense.
type Provider interface {
	Name() string
	List(ctx context.Context) ([]Instrument, error)
	Fetch(ctx context.Context, id string) (io.ReadCloser, error)
}

// Storage persists installed asset bytes. Errors wrap ErrIOFailure or ErrInsufficientSpace.
type Storage interface {
	WriteAsset(ctx context.Context, id string, data []byte) error
}

// ProviderContainer is the shared handle to the active provider and its catalog.
// Hosts thread it through subsequent calls without depending on its concrete type.
type ProviderContainer interface {
	CurrentProvider() Provider
	SetProvider(p Provider) error
	RefreshCatalog(ctx context.Context) error
	Catalog() []Instrument
}

// InstallOutcome is the final result for one identifier of an install batch.
type InstallOutcome struct {
	Status InstallStatus
	Err    error
}

// OK reports whether the instrument ended up installed.
func (o InstallOutcome) OK() bool { return o.Status.State == Installed }

// InstallOutcomes maps each requested identifier of a batch to its outcome.
type InstallOutcomes map[string]InstallOutcome

// Failed returns the identifiers that did not end up installed, sorted.
func (o InstallOutcomes) Failed() []string {
	var ids []string
	for id, out := range o {
		if !out.OK() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Err combines the errors of every failed identifier, or returns nil.
func (o InstallOutcomes) Err() error {
	var err error
	for _, id := range o.Failed() {
		err = multierr.Append(err, fmt.Errorf("%s: %w", id, o[id].Err))
	}
	return err
}
