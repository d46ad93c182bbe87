package game

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errCatalogUnreachable = errors.New("location source unreachable")

// CatalogLoader is satisfied by *Session.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (CatalogReport, error)
}

// Refresher reloads the location catalog with exponential backoff until both
// origins have been fetched. An origin that answers with an empty or unusable
// list stays on fallback data without further retries.
type Refresher struct {
	loader     CatalogLoader
	logger     *slog.Logger
	initial    time.Duration
	maxBackoff time.Duration
}

// NewRefresher creates a Refresher. Non-positive intervals default to 200ms
// and 5s.
func NewRefresher(loader CatalogLoader, initial, maxBackoff time.Duration, logger *slog.Logger) *Refresher {
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}
	return &Refresher{loader: loader, logger: logger, initial: initial, maxBackoff: maxBackoff}
}

// Run loads the catalog and keeps retrying while a source is unreachable. It
// returns nil once both sources answered or ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = r.maxBackoff
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	attempts := 0
	op := func() error {
		attempts++
		report, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if report.AnyUnreachable() {
			return errCatalogUnreachable
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("catalog refresh scheduled", "error", err, "attempt", attempts, "retry_in", wait)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err != nil {
		if ctx.Err() != nil {
			r.logger.Info("catalog refresher stopping", "reason", ctx.Err())
			return nil
		}
		return err
	}
	r.logger.Info("catalog refreshed", "attempts", attempts)
	return nil
}
