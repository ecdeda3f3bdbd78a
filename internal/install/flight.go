package install

import (
	"context"
	"fmt"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// flight is one running install shared by every caller that asked for the
// same identifier while it was in progress.
type flight struct {
	done    chan struct{}
	outcome contracts.InstallOutcome
	cancel  context.CancelCauseFunc
}

func newFlight(cancel context.CancelCauseFunc) *flight {
	return &flight{done: make(chan struct{}), cancel: cancel}
}

// finish publishes the outcome to all waiters. It must be called exactly once.
func (f *flight) finish(out contracts.InstallOutcome) {
	f.outcome = out
	close(f.done)
}

// wait blocks until the flight finishes or ctx ends. A caller that stops
// waiting does not affect the flight or its other waiters.
func (f *flight) wait(ctx context.Context) contracts.InstallOutcome {
	select {
	case <-f.done:
		return f.outcome
	case <-ctx.Done():
		return contracts.InstallOutcome{
			Status: contracts.StatusFailed("cancelled"),
			Err:    fmt.Errorf("%w: stopped waiting: %v", contracts.ErrCancelled, ctx.Err()),
		}
	}
}
