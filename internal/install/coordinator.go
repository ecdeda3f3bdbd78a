// Package install fetches, verifies and stores instrument assets from the
// active provider.
package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/provider"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"golang.org/x/sync/semaphore"
)

// Defaults used when no policy is configured.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
	DefaultMaxConcurrent   = 4
)

var errCancelRequested = errors.New("install cancelled by request")

// Outcomes maps each requested identifier to its final outcome.
type Outcomes = contracts.InstallOutcomes

// forgetter is implemented by providers that memoize assets.
type forgetter interface {
	Forget(id string)
}

// Coordinator installs instruments with at most one in-flight install per
// identifier. Concurrent requests for the same identifier attach to the
// running flight and receive its outcome.
type Coordinator struct {
	container  *provider.Container
	storage    contracts.Storage
	logger     contracts.Logger
	retry      contracts.RetryPolicy
	sem        *semaphore.Weighted
	newBackOff func() backoff.BackOff

	mu      sync.Mutex
	flights map[string]*flight
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l contracts.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithRetryPolicy sets the retry bound and backoff curve for transient fetch errors.
func WithRetryPolicy(p contracts.RetryPolicy) Option {
	return func(c *Coordinator) {
		c.retry = p
	}
}

// WithMaxConcurrent bounds how many fetches run at once.
func WithMaxConcurrent(n int64) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithBackOff replaces the backoff curve. The retry bound still applies.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Coordinator) {
		c.newBackOff = f
	}
}

// New creates a coordinator installing from container into storage.
func New(container *provider.Container, storage contracts.Storage, opts ...Option) *Coordinator {
	c := &Coordinator{
		container: container,
		storage:   storage,
		logger:    logger.NewNopLogger(),
		retry: contracts.RetryPolicy{
			MaxRetries:      DefaultMaxRetries,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
		},
		sem:     semaphore.NewWeighted(DefaultMaxConcurrent),
		flights: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.newBackOff == nil {
		c.newBackOff = c.exponentialBackOff
	}
	return c
}

func (c *Coordinator) exponentialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// InstallInstruments installs every identifier in ids. Each identifier is
// reported independently; the batch as a whole is never atomic. The error is
// non-nil only when the batch could not start at all (no active provider).
func (c *Coordinator) InstallInstruments(ctx context.Context, ids []string) (Outcomes, error) {
	lease, err := c.container.Acquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	unique := dedupe(ids)
	results := make(Outcomes, len(unique))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range unique {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out := c.installOne(ctx, lease, id)
			mu.Lock()
			results[id] = out
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	c.logger.Info("Install batch finished",
		c.logger.Field().Int("requested", len(unique)),
		c.logger.Field().Strings("failed", results.Failed()))
	return results, nil
}

// Cancel aborts the in-flight install of id. Every waiter receives
// Failed("cancelled"). It reports whether a flight was running.
func (c *Coordinator) Cancel(id string) bool {
	c.mu.Lock()
	f, ok := c.flights[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	f.cancel(errCancelRequested)
	c.logger.Info("Install cancellation requested", c.logger.Field().String("id", id))
	return true
}

// InFlight returns the identifiers currently being installed.
func (c *Coordinator) InFlight() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.flights))
	for id := range c.flights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Coordinator) installOne(ctx context.Context, lease *provider.Lease, id string) contracts.InstallOutcome {
	f, out, done := c.claim(ctx, lease, id)
	if done {
		return out
	}
	return f.wait(ctx)
}

// claim attaches to a running flight for id or starts one. When the outcome
// is already known (unknown id, already installed) done is true.
func (c *Coordinator) claim(ctx context.Context, lease *provider.Lease, id string) (*flight, contracts.InstallOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flights[id]; ok {
		c.logger.Debug("Joining in-flight install", c.logger.Field().String("id", id))
		return f, contracts.InstallOutcome{}, false
	}

	inst, err := lease.Catalog.Get(id)
	if err != nil {
		return nil, contracts.InstallOutcome{Status: contracts.StatusFailed("not found"), Err: err}, true
	}

	switch inst.Status.State {
	case contracts.Installed:
		return nil, contracts.InstallOutcome{Status: contracts.StatusInstalled}, true
	case contracts.Failed:
		if err := lease.Catalog.SetStatus(id, contracts.StatusNotInstalled); err != nil {
			return nil, failed(err), true
		}
	}
	// Installing without a flight here means another coordinator on the same
	// container owns the install.
	prev, err := lease.Catalog.CompareAndSetStatus(id, notInstalling, contracts.StatusInstalling)
	switch {
	case err == nil:
	case prev.State == contracts.Installing:
		c.logger.Warn("Install owned elsewhere", c.logger.Field().String("id", id))
		return nil, contracts.InstallOutcome{
			Status: contracts.StatusFailed("already in progress"),
			Err:    fmt.Errorf("%w: instrument %q", contracts.ErrAlreadyInProgress, id),
		}, true
	default:
		return nil, failed(err), true
	}

	fctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	f := newFlight(cancel)
	c.flights[id] = f

	go c.run(fctx, lease.Share(), inst, f)
	return f, contracts.InstallOutcome{}, false
}

func (c *Coordinator) run(ctx context.Context, lease *provider.Lease, inst contracts.Instrument, f *flight) {
	out := c.install(ctx, lease, inst)

	if err := lease.Catalog.SetStatus(inst.ID, out.Status); err != nil {
		c.logger.Error("Failed to record install status",
			c.logger.Field().String("id", inst.ID),
			c.logger.Field().Error("error", err))
	}
	f.cancel(nil)
	// Must happen before waiters wake: callers may switch providers as soon as they return.
	lease.Release()

	c.mu.Lock()
	delete(c.flights, inst.ID)
	c.mu.Unlock()
	f.finish(out)
}

func (c *Coordinator) install(ctx context.Context, lease *provider.Lease, inst contracts.Instrument) contracts.InstallOutcome {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.cancelled(ctx, inst.ID)
	}
	defer c.sem.Release(1)

	start := time.Now()
	c.logger.Info("Installing instrument",
		c.logger.Field().String("id", inst.ID),
		c.logger.Field().String("provider", lease.Provider.Name()))

	data, err := c.fetch(ctx, lease.Provider, inst)
	if err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, inst.ID)
		}
		c.logger.Error("Instrument fetch failed",
			c.logger.Field().String("id", inst.ID),
			c.logger.Field().Error("error", err))
		return failed(err)
	}

	if err := c.storage.WriteAsset(ctx, inst.ID, data); err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, inst.ID)
		}
		c.logger.Error("Failed to store instrument asset",
			c.logger.Field().String("id", inst.ID),
			c.logger.Field().Error("error", err))
		return failed(err)
	}

	c.logger.Info("Instrument installed",
		c.logger.Field().String("id", inst.ID),
		c.logger.Field().Int("bytes", len(data)),
		c.logger.Field().Duration("elapsed", time.Since(start)))
	return contracts.InstallOutcome{Status: contracts.StatusInstalled}
}

// fetch retries transient provider errors with backoff. Verification
// failures and non-transient provider errors end the retry loop at once.
func (c *Coordinator) fetch(ctx context.Context, p contracts.Provider, inst contracts.Instrument) ([]byte, error) {
	var data []byte
	attempt := 0

	op := func() error {
		attempt++
		rc, err := p.Fetch(ctx, inst.ID)
		if err != nil {
			if contracts.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		defer rc.Close()

		body, err := readAsset(rc, inst.Size)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", contracts.ErrNetworkFailure, inst.ID, err)
		}
		if err := verify(inst, body); err != nil {
			if fg, ok := p.(forgetter); ok {
				fg.Forget(inst.ID)
			}
			return backoff.Permanent(err)
		}
		data = body
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying instrument fetch",
			c.logger.Field().String("id", inst.ID),
			c.logger.Field().Int("attempt", attempt),
			c.logger.Field().Duration("wait", wait),
			c.logger.Field().Error("error", err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.retry.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Coordinator) cancelled(ctx context.Context, id string) contracts.InstallOutcome {
	cause := context.Cause(ctx)
	c.logger.Warn("Install cancelled",
		c.logger.Field().String("id", id),
		c.logger.Field().Error("cause", cause))
	return contracts.InstallOutcome{
		Status: contracts.StatusFailed("cancelled"),
		Err:    fmt.Errorf("%w: install of %s: %v", contracts.ErrCancelled, id, cause),
	}
}

// readAsset reads the whole stream, reading at most one byte past an
// expected size so oversized assets are caught without buffering them.
func readAsset(r io.Reader, size int64) ([]byte, error) {
	if size > 0 {
		r = io.LimitReader(r, size+1)
	}
	return io.ReadAll(r)
}

func verify(inst contracts.Instrument, data []byte) error {
	if inst.Size > 0 && int64(len(data)) != inst.Size {
		return fmt.Errorf("%w: %s: expected %d bytes, got %d",
			contracts.ErrChecksumMismatch, inst.ID, inst.Size, len(data))
	}
	if inst.Checksum != "" {
		sum := sha256.Sum256(data)
		actual := hex.EncodeToString(sum[:])
		if !strings.EqualFold(actual, inst.Checksum) {
			return fmt.Errorf("%w: %s: expected %s, got %s",
				contracts.ErrChecksumMismatch, inst.ID, inst.Checksum, actual)
		}
	}
	return nil
}

func notInstalling(s contracts.InstallStatus) bool { return s.State != contracts.Installing }

func failed(err error) contracts.InstallOutcome {
	return contracts.InstallOutcome{Status: contracts.StatusFailed(err.Error()), Err: err}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
