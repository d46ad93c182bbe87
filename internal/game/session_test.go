package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

type fakeLocations struct {
	mu       sync.Mutex
	payloads map[domain.Origin]string
	errs     map[domain.Origin]error
	calls    int
}

func (f *fakeLocations) Locations(_ context.Context, origin domain.Origin) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[origin]; err != nil {
		return nil, err
	}
	return []byte(f.payloads[origin]), nil
}

type stubDetails struct {
	details domain.PropertyDetails
	err     error
}

func (s stubDetails) PropertyDetails(context.Context, domain.Coordinates) (domain.PropertyDetails, error) {
	return s.details, s.err
}

type fakeSimulation struct {
	run domain.SimulationRun
	err error
}

func (f fakeSimulation) Simulation(context.Context, string) (domain.SimulationRun, error) {
	return f.run, f.err
}

const (
	existingPayload  = `[{"id":"a","name":"Alpha","latitude":1,"longitude":2},{"ID":"b","Name":"Bravo","Latitude":3,"Longitude":4},{"id":"c","name":"Charlie","position":{"lat":5,"lng":6}},{"id":"d","name":"Delta","latitude":7,"longitude":8}]`
	potentialPayload = `{"latitude":37.7749,"longitude":-122.4194}`
)

var sessionScorer = domain.FixedScorer{Values: domain.Scores{Climate: 80, Renewable: 60, Grid: 50, Risk: 70}, Land: 3_000_000}

func newTestSession(t *testing.T, src *fakeLocations, details domain.PropertyDetailSource) (*Session, *fakeLedger) {
	t.Helper()
	return newTestSessionWithBudget(t, src, details, DefaultStartingBudget)
}

func newTestSessionWithBudget(t *testing.T, src *fakeLocations, details domain.PropertyDetailSource, budget int) (*Session, *fakeLedger) {
	t.Helper()
	ledger := &fakeLedger{}
	s := NewSession(Options{
		Username:       testUser,
		StartingBudget: budget,
		ScalingFactor:  domain.DefaultScalingFactor,
		Locations:      src,
		Enricher:       domain.NewEnricher(details, sessionScorer, discardLogger()),
		Ledger:         ledger,
		Simulation:     fakeSimulation{},
		Normalizer:     domain.NewNormalizer(domain.MissingAsZero),
		Logger:         discardLogger(),
		Metrics:        observability.NewMetricsForTesting(),
	})
	return s, ledger
}

func healthySource() *fakeLocations {
	return &fakeLocations{payloads: map[domain.Origin]string{
		domain.OriginExisting:  existingPayload,
		domain.OriginPotential: potentialPayload,
	}}
}

func TestLoadCatalog(t *testing.T) {
	s, _ := newTestSession(t, healthySource(), nil)
	require.Error(t, s.CheckReadiness(context.Background()))

	report, err := s.LoadCatalog(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, report.Existing)
	assert.Equal(t, 1, report.Potential)
	assert.False(t, report.AnyDegraded())
	assert.NoError(t, s.CheckReadiness(context.Background()))
	assert.False(t, s.CatalogDegraded())

	existing, potential := s.Catalog()
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(existing))
	assert.Equal(t, []string{"potential-1"}, ids(potential))
	assert.Nil(t, s.State().Notification)
}

func TestLoadCatalog_Fallback(t *testing.T) {
	tests := []struct {
		name            string
		src             *fakeLocations
		wantUnreachable bool
	}{
		{"source error", &fakeLocations{
			payloads: map[domain.Origin]string{domain.OriginPotential: potentialPayload},
			errs:     map[domain.Origin]error{domain.OriginExisting: domain.ErrNetworkFailure},
		}, true},
		{"empty list", &fakeLocations{payloads: map[domain.Origin]string{
			domain.OriginExisting:  `[]`,
			domain.OriginPotential: potentialPayload,
		}}, false},
		{"every record rejected", &fakeLocations{payloads: map[domain.Origin]string{
			domain.OriginExisting:  `[{"lat":1,"lon":2},{"foo":"bar"}]`,
			domain.OriginPotential: potentialPayload,
		}}, false},
		{"not json", &fakeLocations{payloads: map[domain.Origin]string{
			domain.OriginExisting:  `<html>`,
			domain.OriginPotential: potentialPayload,
		}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t, tt.src, nil)

			report, err := s.LoadCatalog(context.Background())

			require.NoError(t, err)
			assert.True(t, report.Degraded[domain.OriginExisting])
			assert.False(t, report.Degraded[domain.OriginPotential])
			assert.Equal(t, tt.wantUnreachable, report.AnyUnreachable())
			assert.Equal(t, 5, report.Existing)
			assert.True(t, s.CatalogDegraded())
			assert.NoError(t, s.CheckReadiness(context.Background()))

			existing, _ := s.Catalog()
			assert.Equal(t, "Northern Virginia", existing[0].Name)

			st := s.State()
			require.NotNil(t, st.Notification)
			assert.Equal(t, Warning("Using fallback data while connecting to server..."), *st.Notification)
			assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.CatalogFallbacks.WithLabelValues("existing")))
		})
	}
}

func TestLoadCatalog_FallbackNoticeOnlyOnChange(t *testing.T) {
	src := &fakeLocations{payloads: map[domain.Origin]string{
		domain.OriginExisting:  existingPayload,
		domain.OriginPotential: `[]`,
	}}
	s, _ := newTestSession(t, src, nil)
	ctx := context.Background()

	_, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, Warning(msgCatalogFallback), *s.State().Notification)

	_, err = s.Select(ctx, "a")
	require.NoError(t, err)
	_, err = s.Build(ctx, "1")
	require.NoError(t, err)
	built := *s.State().Notification

	// Still degraded: a reload keeps the newer notification.
	_, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.State().Notification)
	assert.Equal(t, built, *s.State().Notification)

	// Recovering leaves a non-fallback notice alone.
	src.mu.Lock()
	src.payloads[domain.OriginPotential] = potentialPayload
	src.mu.Unlock()
	_, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, built, *s.State().Notification)

	// Turning degraded again raises the warning.
	src.mu.Lock()
	src.payloads[domain.OriginPotential] = `[]`
	src.mu.Unlock()
	_, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, Warning(msgCatalogFallback), *s.State().Notification)
}

func TestLoadCatalog_CancelledContext(t *testing.T) {
	s, _ := newTestSession(t, healthySource(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LoadCatalog(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Error(t, s.CheckReadiness(context.Background()))
}

func TestSelect_ScenarioD(t *testing.T) {
	s, _ := newTestSession(t, healthySource(), nil)
	_, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := s.Select(context.Background(), id)
		require.NoError(t, err)
	}

	st := s.State()
	require.NotNil(t, st.Selection)
	assert.Equal(t, "d", st.Selection.ID)
	assert.Equal(t, []string{"c", "b", "a"}, ids(st.RecentlyViewed))
}

func TestSelect_Reselect(t *testing.T) {
	s, _ := newTestSession(t, healthySource(), nil)
	_, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "a", "a"} {
		_, err := s.Select(context.Background(), id)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"b"}, ids(s.State().RecentlyViewed))
}

func TestSelect_UnknownLocation(t *testing.T) {
	s, _ := newTestSession(t, healthySource(), nil)
	_, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)

	_, err = s.Select(context.Background(), "nope")

	require.ErrorIs(t, err, domain.ErrUnknownLocation)
	_, ok := s.Selection()
	assert.False(t, ok)
}

func TestSelect_DegradedEnrichment(t *testing.T) {
	s, _ := newTestSession(t, healthySource(), stubDetails{err: domain.ErrNetworkFailure})
	_, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)

	loc, err := s.Select(context.Background(), "potential-1")

	require.ErrorIs(t, err, domain.ErrEnrichmentDegraded)
	require.True(t, loc.Enriched())
	assert.True(t, loc.Enrichment.Degraded)
	assert.Equal(t, 3_000_000, loc.Enrichment.LandCost)

	sel, ok := s.Selection()
	require.True(t, ok)
	assert.Equal(t, "potential-1", sel.ID)

	st := s.State()
	require.NotNil(t, st.Notification)
	assert.Equal(t, KindWarning, st.Notification.Kind)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.EnrichmentDegraded))
}

// gatedEnricher blocks enrichment of one id until released.
type gatedEnricher struct {
	inner   LocationEnricher
	blockID string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEnricher) Enrich(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if loc.ID == g.blockID {
		close(g.entered)
		<-g.release
	}
	return g.inner.Enrich(ctx, loc)
}

func TestSelect_StaleResultDiscarded(t *testing.T) {
	s, _ := newTestSession(t, healthySource(), nil)
	gate := &gatedEnricher{
		inner:   s.enricher,
		blockID: "a",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s.enricher = gate
	_, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Select(context.Background(), "a")
		errc <- err
	}()
	<-gate.entered

	_, err = s.Select(context.Background(), "b")
	require.NoError(t, err)
	close(gate.release)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, domain.ErrStaleSelection)
	case <-time.After(time.Second):
		t.Fatal("stale selection did not return")
	}

	sel, ok := s.Selection()
	require.True(t, ok)
	assert.Equal(t, "b", sel.ID)
	assert.Empty(t, s.State().RecentlyViewed)
}

func TestSessionBuild(t *testing.T) {
	s, ledger := newTestSession(t, healthySource(), nil)
	_, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)

	_, err = s.Build(context.Background(), "1")
	require.ErrorIs(t, err, domain.ErrNoSelection)

	_, err = s.Select(context.Background(), "a")
	require.NoError(t, err)

	_, err = s.Build(context.Background(), "42")
	require.ErrorIs(t, err, domain.ErrUnknownBuilding)

	tx, err := s.Build(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, tx.State)

	st := s.State()
	assert.Equal(t, 5_000_000, st.Budget)
	require.Len(t, st.Facilities, 1)
	assert.Equal(t, "a", st.Facilities[0].Location.ID)
	assert.InDelta(t, 65.0, st.Score, 1e-9)
	require.Len(t, st.Cart.Entries, 1)
	assert.Equal(t, "Alpha", st.Cart.Entries[0].Name)
	assert.Len(t, ledger.added, 1)
	require.NotNil(t, st.Notification)
	assert.Equal(t, Success("Successfully built Standard Data Center in Alpha!"), *st.Notification)

	// The selection stays in place after a build.
	require.NotNil(t, st.Selection)
	assert.Equal(t, "a", st.Selection.ID)

	_, err = s.Build(context.Background(), "3")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, 5_000_000, s.State().Budget)
	assert.Equal(t, Error("Insufficient funds!"), *s.State().Notification)
}

func TestSessionBuild_ZeroBudget(t *testing.T) {
	s, ledger := newTestSessionWithBudget(t, healthySource(), nil, 0)
	assert.Zero(t, s.State().Budget, "a zero starting budget is kept")

	_, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)
	_, err = s.Select(context.Background(), "a")
	require.NoError(t, err)

	for _, b := range s.Buildings().Options() {
		_, err := s.Build(context.Background(), b.ID)
		require.ErrorIs(t, err, domain.ErrInsufficientFunds, "building %s", b.ID)
	}
	st := s.State()
	assert.Zero(t, st.Budget)
	assert.Empty(t, st.Facilities)
	assert.Empty(t, ledger.added)
}

func TestSessionCart(t *testing.T) {
	s, _ := newTestSession(t, healthySource(), nil)
	_, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)

	_, err = s.AddSelectedToCart(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSelection)

	for _, id := range []string{"a", "b"} {
		_, err = s.Select(context.Background(), id)
		require.NoError(t, err)
		_, err = s.AddSelectedToCart(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, s.Cart().Entries, 2)

	snap, err := s.RemoveFromCart(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "Bravo", snap.Entries[0].Name)

	_, err = s.RemoveFromCart(context.Background(), 5)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, s.Cart().Entries, 1)

	snap, err = s.ClearCart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
	assert.Empty(t, s.RefreshCart(context.Background()).Entries)
}

func TestSimulate(t *testing.T) {
	run := domain.SimulationRun{
		WithDataCenters:    []domain.ClimatePoint{{Year: 2025, TotalTemperature: 14.0}, {Year: 2026, TotalTemperature: 14.2}},
		WithoutDataCenters: []domain.ClimatePoint{{Year: 2025, TotalTemperature: 13.5}, {Year: 2026, TotalTemperature: 13.6}},
		TotalTimeToEnd:     120,
	}

	t.Run("projects the run", func(t *testing.T) {
		s, _ := newTestSession(t, healthySource(), nil)
		s.simulation = fakeSimulation{run: run}

		series, err := s.Simulate(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"2025", "2026"}, series.Labels)
		assert.InDeltaSlice(t, []float64{5.0, 6.0}, series.Difference, 1e-9)
		assert.Equal(t, 120, series.TotalTimeToEnd)
	})

	t.Run("length mismatch", func(t *testing.T) {
		s, _ := newTestSession(t, healthySource(), nil)
		bad := run
		bad.WithoutDataCenters = bad.WithoutDataCenters[:1]
		s.simulation = fakeSimulation{run: bad}

		_, err := s.Simulate(context.Background())

		require.ErrorIs(t, err, domain.ErrSeriesLengthMismatch)
	})

	t.Run("backend failure", func(t *testing.T) {
		s, _ := newTestSession(t, healthySource(), nil)
		s.simulation = fakeSimulation{err: domain.ErrNetworkFailure}

		_, err := s.Simulate(context.Background())

		require.ErrorIs(t, err, domain.ErrNetworkFailure)
	})
}

type scriptedLoader struct {
	mu      sync.Mutex
	reports []CatalogReport
	calls   int
}

func (l *scriptedLoader) LoadCatalog(ctx context.Context) (CatalogReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return CatalogReport{}, err
	}
	r := l.reports[min(l.calls, len(l.reports)-1)]
	l.calls++
	return r, nil
}

func TestRefresher(t *testing.T) {
	unreachable := CatalogReport{
		Degraded:    map[domain.Origin]bool{domain.OriginExisting: true},
		Unreachable: map[domain.Origin]bool{domain.OriginExisting: true},
	}
	empty := CatalogReport{Degraded: map[domain.Origin]bool{domain.OriginPotential: true}}
	clean := CatalogReport{Degraded: map[domain.Origin]bool{}}

	t.Run("retries until reachable", func(t *testing.T) {
		loader := &scriptedLoader{reports: []CatalogReport{unreachable, unreachable, clean}}
		r := NewRefresher(loader, time.Millisecond, 5*time.Millisecond, discardLogger())

		require.NoError(t, r.Run(context.Background()))
		assert.Equal(t, 3, loader.calls)
	})

	t.Run("empty list is not retried", func(t *testing.T) {
		loader := &scriptedLoader{reports: []CatalogReport{empty, clean}}
		r := NewRefresher(loader, time.Millisecond, 5*time.Millisecond, discardLogger())

		require.NoError(t, r.Run(context.Background()))
		assert.Equal(t, 1, loader.calls)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		loader := &scriptedLoader{reports: []CatalogReport{unreachable}}
		r := NewRefresher(loader, time.Millisecond, 2*time.Millisecond, discardLogger())
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		require.NoError(t, r.Run(ctx))
		assert.Positive(t, loader.calls)
	})

	t.Run("refreshes a session", func(t *testing.T) {
		src := &fakeLocations{
			payloads: map[domain.Origin]string{domain.OriginPotential: potentialPayload},
			errs:     map[domain.Origin]error{domain.OriginExisting: errors.New("connection refused")},
		}
		s, _ := newTestSession(t, src, nil)
		_, err := s.LoadCatalog(context.Background())
		require.NoError(t, err)
		require.True(t, s.CatalogDegraded())

		src.mu.Lock()
		src.errs = nil
		src.payloads[domain.OriginExisting] = existingPayload
		src.mu.Unlock()

		require.NoError(t, NewRefresher(s, time.Millisecond, time.Millisecond, discardLogger()).Run(context.Background()))
		assert.False(t, s.CatalogDegraded())
		existing, _ := s.Catalog()
		assert.Equal(t, "Alpha", existing[0].Name)
		assert.Nil(t, s.State().Notification)
	})
}

func ids(locs []domain.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.ID
	}
	return out
}
