package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/game"
)

// Game is the session surface served over HTTP. *game.Session satisfies it.
type Game interface {
	sharedobs.ReadinessChecker

	State() game.State
	Catalog() (existing, potential []domain.Location)
	CatalogDegraded() bool
	Buildings() *domain.BuildingCatalog
	Select(ctx context.Context, id string) (domain.Location, error)
	Build(ctx context.Context, buildingID string) (game.Transaction, error)
	AdvanceDays(n int) int
	RefreshCart(ctx context.Context) domain.CartSnapshot
	AddSelectedToCart(ctx context.Context) (domain.CartSnapshot, error)
	RemoveFromCart(ctx context.Context, index int) (domain.CartSnapshot, error)
	ClearCart(ctx context.Context) (domain.CartSnapshot, error)
	Simulate(ctx context.Context) (domain.ChartSeries, error)
}

// Server exposes health, readiness, metrics, and the game session API.
type Server struct {
	httpServer *http.Server
	game       Game
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api session routes.
func NewServer(addr string, g Game, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		game:   g,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(g))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/locations", s.handleLocations)
	mux.HandleFunc("GET /api/buildings", s.handleBuildings)
	mux.HandleFunc("POST /api/selection", s.handleSelect)
	mux.HandleFunc("POST /api/builds", s.handleBuild)
	mux.HandleFunc("POST /api/days", s.handleAdvanceDays)
	mux.HandleFunc("GET /api/cart", s.handleCart)
	mux.HandleFunc("POST /api/cart", s.handleAddToCart)
	mux.HandleFunc("DELETE /api/cart/{index}", s.handleRemoveFromCart)
	mux.HandleFunc("DELETE /api/cart", s.handleClearCart)
	mux.HandleFunc("GET /api/simulation", s.handleSimulation)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
