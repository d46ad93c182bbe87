package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

const (
	msgCatalogFallback   = "Using fallback data while connecting to server..."
	msgEnrichmentDegrade = "Could not load full location details. Using fallback data."
)

// LocationSource returns the raw upstream location list for an origin.
type LocationSource interface {
	Locations(ctx context.Context, origin domain.Origin) ([]byte, error)
}

// LocationEnricher attaches derived metrics to a location.
type LocationEnricher interface {
	Enrich(ctx context.Context, loc domain.Location) (domain.Location, error)
}

// CartLedger is the cart surface a Session drives.
type CartLedger interface {
	CartAdder
	Fetch(ctx context.Context, username string) domain.CartSnapshot
	Remove(ctx context.Context, username string, index int) (domain.CartSnapshot, error)
	Clear(ctx context.Context, username string) (domain.CartSnapshot, error)
}

// SimulationSource runs the backend climate simulation.
type SimulationSource interface {
	Simulation(ctx context.Context, username string) (domain.SimulationRun, error)
}

// Options wires a Session. Locations, Enricher, Ledger and Simulation are
// required. StartingBudget and ScalingFactor are used as given, zero
// included; config.Load supplies their defaults. Logger and Buildings
// default when nil.
type Options struct {
	Username       string
	StartingBudget int
	ScalingFactor  float64

	Locations  LocationSource
	Enricher   LocationEnricher
	Ledger     CartLedger
	Simulation SimulationSource
	Events     EventPublisher
	Buildings  *domain.BuildingCatalog
	Normalizer domain.Normalizer

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Session is one player's game state. It is safe for concurrent use; its
// lock is never held across a remote call.
type Session struct {
	username      string
	scalingFactor float64
	locations     LocationSource
	enricher      LocationEnricher
	ledger        CartLedger
	simulation    SimulationSource
	buildings     *domain.BuildingCatalog
	normalizer    domain.Normalizer
	engine        *Engine
	logger        *slog.Logger
	metrics       *observability.Metrics

	mu           sync.Mutex
	loaded       bool
	existing     []domain.Location
	potential    []domain.Location
	byID         map[string]domain.Location
	degraded     map[domain.Origin]bool
	selection    *domain.Location
	generation   uint64
	ring         []domain.Location
	cart         domain.CartSnapshot
	notification *Notification
}

// NewSession creates a Session with an empty catalog. Call LoadCatalog
// before selecting locations.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Buildings == nil {
		opts.Buildings = domain.DefaultBuildingCatalog()
	}
	logger := opts.Logger.With("username", opts.Username)

	return &Session{
		username:      opts.Username,
		scalingFactor: opts.ScalingFactor,
		locations:     opts.Locations,
		enricher:      opts.Enricher,
		ledger:        opts.Ledger,
		simulation:    opts.Simulation,
		buildings:     opts.Buildings,
		normalizer:    opts.Normalizer,
		engine:        NewEngine(opts.StartingBudget, opts.Ledger, opts.Events, logger, opts.Metrics),
		logger:        logger,
		metrics:       opts.Metrics,
		byID:          make(map[string]domain.Location),
		degraded:      make(map[domain.Origin]bool),
		cart:          domain.CartSnapshot{Username: opts.Username, Entries: []domain.CartEntry{}},
	}
}

// Username returns the player this session belongs to.
func (s *Session) Username() string { return s.username }

// Engine exposes the session's transaction engine.
func (s *Session) Engine() *Engine { return s.engine }

// AdvanceDays moves the game clock forward by n days.
func (s *Session) AdvanceDays(n int) int { return s.engine.AdvanceDays(n) }

// Buildings returns the building catalog.
func (s *Session) Buildings() *domain.BuildingCatalog { return s.buildings }

// CatalogReport describes one LoadCatalog run. Unreachable marks the origins
// whose fetch itself failed; an origin that answered with no usable record is
// Degraded but reachable.
type CatalogReport struct {
	Existing    int                    `json:"existing"`
	Potential   int                    `json:"potential"`
	Degraded    map[domain.Origin]bool `json:"degraded"`
	Unreachable map[domain.Origin]bool `json:"unreachable"`
	Rejected    int                    `json:"rejected"`
}

// AnyDegraded reports whether either origin fell back.
func (r CatalogReport) AnyDegraded() bool {
	return anySet(r.Degraded)
}

// AnyUnreachable reports whether either origin could not be fetched.
func (r CatalogReport) AnyUnreachable() bool {
	return anySet(r.Unreachable)
}

func anySet(m map[domain.Origin]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

// LoadCatalog fetches both location lists concurrently and replaces the
// catalog. A source that fails or yields no usable record is replaced by its
// fallback list. The fallback warning is raised when the catalog turns
// degraded and cleared when it recovers. It fails only when ctx is done.
func (s *Session) LoadCatalog(ctx context.Context) (CatalogReport, error) {
	origins := []domain.Origin{domain.OriginExisting, domain.OriginPotential}
	results := make([]originLoad, len(origins))

	g, gctx := errgroup.WithContext(ctx)
	for i, origin := range origins {
		g.Go(func() error {
			results[i] = s.loadOrigin(gctx, origin)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return CatalogReport{}, fmt.Errorf("load catalog: %w", err)
	}

	report := CatalogReport{
		Existing:    len(results[0].locations),
		Potential:   len(results[1].locations),
		Degraded:    map[domain.Origin]bool{},
		Unreachable: map[domain.Origin]bool{},
	}
	for i, r := range results {
		report.Degraded[origins[i]] = r.degraded
		report.Unreachable[origins[i]] = r.unreachable
		report.Rejected += r.rejected
	}

	s.mu.Lock()
	wasDegraded := s.loaded && anySet(s.degraded)
	s.existing = results[0].locations
	s.potential = results[1].locations
	s.byID = make(map[string]domain.Location, report.Existing+report.Potential)
	for _, loc := range append(append([]domain.Location{}, s.existing...), s.potential...) {
		s.byID[loc.ID] = loc
	}
	s.degraded = report.Degraded
	s.loaded = true
	switch {
	case report.AnyDegraded() && !wasDegraded:
		s.notify(Warning(msgCatalogFallback))
	case !report.AnyDegraded() && s.notification != nil && s.notification.Message == msgCatalogFallback:
		s.notification = nil
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CatalogLoaded.Set(1)
	}
	s.logger.Info("location catalog loaded",
		"existing", report.Existing,
		"potential", report.Potential,
		"rejected", report.Rejected,
		"degraded", report.AnyDegraded(),
	)
	return report, nil
}

type originLoad struct {
	locations   []domain.Location
	degraded    bool
	unreachable bool
	rejected    int
}

func (s *Session) loadOrigin(ctx context.Context, origin domain.Origin) originLoad {
	payload, err := s.locations.Locations(ctx, origin)
	if err != nil {
		load := s.fallback(origin, err, 0)
		load.unreachable = true
		return load
	}

	locs, rejected, err := s.normalizer.NormalizeAll(payload, origin)
	if err != nil {
		return s.fallback(origin, err, 0)
	}
	for _, r := range rejected {
		s.logger.Warn("location record rejected", "origin", origin, "error", r)
	}
	if len(locs) == 0 {
		return s.fallback(origin, errors.New("no usable location records"), len(rejected))
	}
	return originLoad{locations: locs, rejected: len(rejected)}
}

func (s *Session) fallback(origin domain.Origin, cause error, rejected int) originLoad {
	s.logger.Warn("location source unavailable, using fallback catalog", "origin", origin, "error", cause)
	if s.metrics != nil {
		s.metrics.CatalogFallbacks.WithLabelValues(string(origin)).Inc()
	}
	return originLoad{locations: domain.FallbackLocations(origin), degraded: true, rejected: rejected}
}

// CheckReadiness returns nil once the catalog has been loaded.
func (s *Session) CheckReadiness(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return errors.New("location catalog not loaded yet")
	}
	return nil
}

// CatalogDegraded reports whether the current catalog contains fallback data.
func (s *Session) CatalogDegraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.loaded || anySet(s.degraded)
}

// Catalog returns the existing and potential locations.
func (s *Session) Catalog() (existing, potential []domain.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLocations(s.existing), cloneLocations(s.potential)
}

// Select enriches location id and makes it the current selection. When the
// enrichment degraded, the fallback-enriched location is still selected and
// the returned error wraps domain.ErrEnrichmentDegraded. If another Select
// started while this one was enriching, the result is dropped and
// domain.ErrStaleSelection is returned.
func (s *Session) Select(ctx context.Context, id string) (domain.Location, error) {
	s.mu.Lock()
	loc, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return domain.Location{}, fmt.Errorf("select %q: %w", id, domain.ErrUnknownLocation)
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	enriched, enrichErr := s.enricher.Enrich(ctx, loc)
	degraded := enrichErr != nil
	if degraded && !enriched.Enriched() {
		return domain.Location{}, fmt.Errorf("select %q: %w", id, enrichErr)
	}
	if degraded && s.metrics != nil {
		s.metrics.EnrichmentDegraded.Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("discarding superseded selection", "location_id", id)
		return domain.Location{}, fmt.Errorf("select %q: %w", id, domain.ErrStaleSelection)
	}

	s.ring = domain.RecordSelection(s.ring, s.selection, enriched)
	s.selection = &enriched
	if degraded {
		s.notify(Warning(msgEnrichmentDegrade))
	} else {
		s.notification = nil
	}
	return enriched, enrichErr
}

// Selection returns the current selection.
func (s *Session) Selection() (domain.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return domain.Location{}, false
	}
	return *s.selection, true
}

// Build builds buildingID on the current selection.
func (s *Session) Build(ctx context.Context, buildingID string) (Transaction, error) {
	building, err := s.buildings.Lookup(buildingID)
	if err != nil {
		return Transaction{}, err
	}
	loc, ok := s.Selection()
	if !ok {
		return Transaction{}, domain.ErrNoSelection
	}

	tx, err := s.engine.Build(ctx, s.username, building, loc)

	s.mu.Lock()
	for _, n := range tx.Notifications {
		s.notify(n)
	}
	if tx.Cart != nil {
		s.cart = *tx.Cart
	}
	s.mu.Unlock()
	return tx, err
}

// AddSelectedToCart ledgers the current selection without building on it.
func (s *Session) AddSelectedToCart(ctx context.Context) (domain.CartSnapshot, error) {
	loc, ok := s.Selection()
	if !ok {
		return s.Cart(), domain.ErrNoSelection
	}
	snap, err := s.ledger.Add(ctx, s.username, loc)
	return s.storeCart(snap, err)
}

// RemoveFromCart deletes the cart entry at index.
func (s *Session) RemoveFromCart(ctx context.Context, index int) (domain.CartSnapshot, error) {
	snap, err := s.ledger.Remove(ctx, s.username, index)
	return s.storeCart(snap, err)
}

// ClearCart deletes every cart entry.
func (s *Session) ClearCart(ctx context.Context) (domain.CartSnapshot, error) {
	snap, err := s.ledger.Clear(ctx, s.username)
	return s.storeCart(snap, err)
}

// RefreshCart re-reads the cart from the backend.
func (s *Session) RefreshCart(ctx context.Context) domain.CartSnapshot {
	snap, _ := s.storeCart(s.ledger.Fetch(ctx, s.username), nil)
	return snap
}

// Cart returns the last known cart snapshot.
func (s *Session) Cart() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

func (s *Session) storeCart(snap domain.CartSnapshot, err error) (domain.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.notify(Error("Could not update your cart."))
		return s.cart, err
	}
	s.cart = snap
	return snap, nil
}

// Simulate runs the climate simulation and projects it for charting.
func (s *Session) Simulate(ctx context.Context) (domain.ChartSeries, error) {
	run, err := s.simulation.Simulation(ctx, s.username)
	if err != nil {
		return domain.ChartSeries{}, fmt.Errorf("simulation: %w", err)
	}
	series, err := domain.Project(run, s.scalingFactor)
	if err != nil {
		s.logger.Warn("simulation series rejected", "error", err)
		return domain.ChartSeries{}, err
	}
	return series, nil
}

// State is a point-in-time view of the session.
type State struct {
	Username        string                 `json:"username"`
	Budget          int                    `json:"budget"`
	Day             int                    `json:"day"`
	Score           float64                `json:"score"`
	Selection       *domain.Location       `json:"selection,omitempty"`
	RecentlyViewed  []domain.Location      `json:"recently_viewed"`
	Facilities      []domain.BuiltFacility `json:"facilities"`
	Cart            domain.CartSnapshot    `json:"cart"`
	CatalogLoaded   bool                   `json:"catalog_loaded"`
	CatalogDegraded map[domain.Origin]bool `json:"catalog_degraded"`
	Notification    *Notification          `json:"notification,omitempty"`
}

// State snapshots the session.
func (s *Session) State() State {
	facilities := s.engine.Facilities()
	st := State{
		Username:   s.username,
		Budget:     s.engine.Budget(),
		Day:        s.engine.Day(),
		Score:      Score(facilities),
		Facilities: facilities,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection != nil {
		sel := *s.selection
		st.Selection = &sel
	}
	st.RecentlyViewed = cloneLocations(s.ring)
	if st.RecentlyViewed == nil {
		st.RecentlyViewed = []domain.Location{}
	}
	st.Cart = s.cart
	st.CatalogLoaded = s.loaded
	st.CatalogDegraded = make(map[domain.Origin]bool, len(s.degraded))
	for k, v := range s.degraded {
		st.CatalogDegraded[k] = v
	}
	if s.notification != nil {
		n := *s.notification
		st.Notification = &n
	}
	return st
}

// Score is the mean location score of the built facilities, 0 with none built.
func Score(facilities []domain.BuiltFacility) float64 {
	if len(facilities) == 0 {
		return 0
	}
	var total float64
	for _, f := range facilities {
		total += domain.LocationScore(f.Location)
	}
	return total / float64(len(facilities))
}

// notify must be called with mu held.
func (s *Session) notify(n Notification) {
	s.notification = &n
}

func cloneLocations(in []domain.Location) []domain.Location {
	if in == nil {
		return nil
	}
	out := make([]domain.Location, len(in))
	copy(out, in)
	return out
}
