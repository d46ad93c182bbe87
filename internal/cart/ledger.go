// Package cart keeps a read-through cached copy of each user's remote
// purchase ledger. The remote store is authoritative: every mutation is
// followed by a confirming re-fetch and nothing is changed locally before the
// store acknowledges it.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

// Store is the remote ledger, keyed by username.
type Store interface {
	Cart(ctx context.Context, username string) ([]domain.CartEntry, error)
	AddCartItem(ctx context.Context, username string, entry domain.CartEntry) error
	RemoveCartItem(ctx context.Context, username string, index int) error
	ClearCart(ctx context.Context, username string) error
	CarbonFootprint(ctx context.Context, username string) (float64, error)
}

// Ledger serializes cart mutations per username and caches the latest
// confirmed snapshot of each cart.
type Ledger struct {
	store   Store
	locks   *keyedLocks
	logger  *slog.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	snapshots map[string]domain.CartSnapshot
}

// NewLedger creates a Ledger over store. metrics may be nil.
func NewLedger(store Store, logger *slog.Logger, metrics *observability.Metrics) *Ledger {
	return &Ledger{
		store:     store,
		locks:     newKeyedLocks(),
		logger:    logger,
		metrics:   metrics,
		snapshots: make(map[string]domain.CartSnapshot),
	}
}

// Snapshot returns the cached snapshot for username, if one was fetched.
func (l *Ledger) Snapshot(username string) (domain.CartSnapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.snapshots[username]
	return cloneSnapshot(s), ok
}

// Fetch reads the cart and its carbon footprint. Read failures never
// surface as errors: the snapshot is empty and flagged Degraded instead.
func (l *Ledger) Fetch(ctx context.Context, username string) domain.CartSnapshot {
	release, err := l.locks.acquire(ctx, username)
	if err != nil {
		l.logger.Warn("cart fetch abandoned", "username", username, "error", err)
		l.countDegradedRead()
		return domain.CartSnapshot{Username: username, Entries: []domain.CartEntry{}, Degraded: true, FootprintDegraded: true}
	}
	defer release()
	return l.refresh(ctx, username)
}

// CarbonFootprint returns the footprint of username's cart, or 0 and
// degraded=true when it cannot be read.
func (l *Ledger) CarbonFootprint(ctx context.Context, username string) (footprint float64, degraded bool) {
	fp, err := l.store.CarbonFootprint(ctx, username)
	if err != nil {
		l.logger.Warn("carbon footprint unavailable", "username", username, "error", err)
		l.countDegradedRead()
		return 0, true
	}
	return fp, false
}

// Add ledgers loc for username and returns the re-fetched snapshot.
func (l *Ledger) Add(ctx context.Context, username string, loc domain.Location) (domain.CartSnapshot, error) {
	return l.mutate(ctx, username, "add", func(ctx context.Context, _ domain.CartSnapshot) error {
		if err := l.store.AddCartItem(ctx, username, domain.NewCartEntry(loc)); err != nil {
			return fmt.Errorf("add %s to cart: %w", loc.ID, asNetworkFailure(err))
		}
		return nil
	})
}

// Remove deletes the entry at index in the currently known ordering. An index
// outside the known cart yields domain.ErrNotFound without calling the store.
func (l *Ledger) Remove(ctx context.Context, username string, index int) (domain.CartSnapshot, error) {
	return l.mutate(ctx, username, "remove", func(ctx context.Context, known domain.CartSnapshot) error {
		if index < 0 || index >= len(known.Entries) {
			return fmt.Errorf("cart index %d of %d: %w", index, len(known.Entries), domain.ErrNotFound)
		}
		if err := l.store.RemoveCartItem(ctx, username, index); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("remove cart index %d: %w", index, err)
			}
			return fmt.Errorf("remove cart index %d: %w", index, asNetworkFailure(err))
		}
		return nil
	})
}

// Clear deletes every entry of username's cart.
func (l *Ledger) Clear(ctx context.Context, username string) (domain.CartSnapshot, error) {
	return l.mutate(ctx, username, "clear", func(ctx context.Context, _ domain.CartSnapshot) error {
		if err := l.store.ClearCart(ctx, username); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("clear cart: %w", asNetworkFailure(err))
		}
		return nil
	})
}

// mutate runs op and the confirming re-fetch while holding username's lock.
// op receives the snapshot known before the mutation, fetching one first if
// none is cached. On failure the cached snapshot is returned unchanged.
func (l *Ledger) mutate(ctx context.Context, username, name string, op func(context.Context, domain.CartSnapshot) error) (domain.CartSnapshot, error) {
	release, err := l.locks.acquire(ctx, username)
	if err != nil {
		snap, _ := l.Snapshot(username)
		return snap, fmt.Errorf("cart %s: %w", name, err)
	}
	defer release()

	known, ok := l.Snapshot(username)
	if !ok {
		known = l.refresh(ctx, username)
	}

	if err := op(ctx, known); err != nil {
		l.countMutation(name, err)
		l.logger.Warn("cart mutation failed", "op", name, "username", username, "error", err)
		return known, err
	}
	l.countMutation(name, nil)
	return l.refresh(ctx, username), nil
}

// refresh fetches and caches a snapshot. Callers hold username's lock.
func (l *Ledger) refresh(ctx context.Context, username string) domain.CartSnapshot {
	snap := domain.CartSnapshot{Username: username}

	entries, err := l.store.Cart(ctx, username)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// The backend has no cart for users who never added anything.
		l.logger.Debug("no cart yet, showing empty cart", "username", username)
		entries = nil
	case err != nil:
		l.logger.Warn("cart unavailable, showing empty cart", "username", username, "error", err)
		l.countDegradedRead()
		snap.Degraded = true
		entries = nil
	}
	if entries == nil {
		entries = []domain.CartEntry{}
	}
	snap.Entries = entries
	snap.CarbonFootprint, snap.FootprintDegraded = l.CarbonFootprint(ctx, username)

	l.mu.Lock()
	l.snapshots[username] = snap
	l.mu.Unlock()
	return cloneSnapshot(snap)
}

func (l *Ledger) countDegradedRead() {
	if l.metrics != nil {
		l.metrics.CartReadsDegraded.Inc()
	}
}

func (l *Ledger) countMutation(op string, err error) {
	if l.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	l.metrics.CartMutations.WithLabelValues(op, outcome).Inc()
}

func asNetworkFailure(err error) error {
	if errors.Is(err, domain.ErrNetworkFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
}

func cloneSnapshot(s domain.CartSnapshot) domain.CartSnapshot {
	if s.Entries != nil {
		entries := make([]domain.CartEntry, len(s.Entries))
		copy(entries, s.Entries)
		s.Entries = entries
	}
	return s
}
