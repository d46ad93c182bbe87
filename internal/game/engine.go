package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

// DefaultStartingBudget is the budget of a new game.
const DefaultStartingBudget = 10_000_000

// TransactionState is the lifecycle stage of a build attempt.
type TransactionState string

const (
	StateEvaluating TransactionState = "evaluating"
	StateCommitted  TransactionState = "committed"
	StateRejected   TransactionState = "rejected"
)

// Transaction records one build attempt.
type Transaction struct {
	State        TransactionState      `json:"state"`
	Building     domain.BuildingOption `json:"building"`
	Location     domain.Location       `json:"location"`
	TotalCost    int                   `json:"total_cost"`
	BudgetBefore int                   `json:"budget_before"`
	BudgetAfter  int                   `json:"budget_after"`

	// Facility is set once a committed transaction has been applied.
	Facility *domain.BuiltFacility `json:"facility,omitempty"`

	// Reason explains a rejection.
	Reason error `json:"-"`

	// LedgerErr is a cart failure after commit. The build stands regardless.
	LedgerErr error `json:"-"`

	Cart          *domain.CartSnapshot `json:"cart,omitempty"`
	Notifications []Notification       `json:"notifications,omitempty"`
}

// Evaluate decides a build without side effects. A committed result carries
// the budget the build would leave; a rejected one leaves the budget as is.
func Evaluate(budget int, building domain.BuildingOption, loc domain.Location) Transaction {
	tx := Transaction{
		State:        StateEvaluating,
		Building:     building,
		Location:     loc,
		BudgetBefore: budget,
		BudgetAfter:  budget,
	}

	landCost, ok := loc.LandCost()
	if !ok {
		tx.State = StateRejected
		tx.Reason = fmt.Errorf("build on %s: %w", loc.ID, domain.ErrLocationNotEnriched)
		return tx
	}

	tx.TotalCost = building.Cost + landCost
	if budget < tx.TotalCost {
		tx.State = StateRejected
		tx.Reason = fmt.Errorf("build %s on %s costs %d, budget %d: %w",
			building.Name, loc.Name, tx.TotalCost, budget, domain.ErrInsufficientFunds)
		return tx
	}

	tx.State = StateCommitted
	tx.BudgetAfter = budget - tx.TotalCost
	return tx
}

// CartAdder ledgers a built location.
type CartAdder interface {
	Add(ctx context.Context, username string, loc domain.Location) (domain.CartSnapshot, error)
}

// EventPublisher announces committed builds.
type EventPublisher interface {
	PublishFacilityBuilt(ctx context.Context, event domain.FacilityBuiltEvent) error
}

// Engine owns the budget, the day counter and the built facilities.
type Engine struct {
	ledger  CartAdder
	events  EventPublisher
	logger  *slog.Logger
	metrics *observability.Metrics

	// buildMu orders whole builds, ledger call included, so cart entries
	// follow facility order. mu guards the fields below and is never held
	// across a remote call.
	buildMu    sync.Mutex
	mu         sync.Mutex
	budget     int
	day        int
	facilities []domain.BuiltFacility
}

// NewEngine creates an Engine on day 1. ledger, events and metrics may be nil.
func NewEngine(budget int, ledger CartAdder, events EventPublisher, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	e := &Engine{
		ledger:  ledger,
		events:  events,
		logger:  logger,
		metrics: metrics,
		budget:  budget,
		day:     1,
	}
	if metrics != nil {
		metrics.Budget.Set(float64(budget))
	}
	return e
}

// Build evaluates and, when affordable, applies a build of building on loc:
// the budget is debited and the facility recorded before the location is
// ledgered for username. A rejected build returns its Reason as the error and
// changes nothing.
func (e *Engine) Build(ctx context.Context, username string, building domain.BuildingOption, loc domain.Location) (Transaction, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	tx := e.apply(building, loc)
	if tx.State == StateRejected {
		e.countBuild(StateRejected)
		e.logger.Info("build rejected", "building", building.ID, "location_id", loc.ID, "reason", tx.Reason)
		tx.Notifications = []Notification{rejectionNotice(tx.Reason)}
		return tx, tx.Reason
	}

	e.countBuild(StateCommitted)
	e.logger.Info("build committed",
		"facility_id", tx.Facility.ID,
		"building", building.ID,
		"location_id", loc.ID,
		"total_cost", tx.TotalCost,
		"budget_after", tx.BudgetAfter,
	)
	tx.Notifications = []Notification{
		Success(fmt.Sprintf("Successfully built %s in %s!", building.Name, loc.Name)),
	}

	if e.ledger != nil {
		snap, err := e.ledger.Add(ctx, username, tx.Facility.Location)
		if err != nil {
			tx.LedgerErr = err
			tx.Notifications = append(tx.Notifications, Warning("Facility built, but it could not be added to your cart."))
			e.logger.Warn("build ledger entry failed", "facility_id", tx.Facility.ID, "error", err)
		} else {
			tx.Cart = &snap
		}
	}

	if e.events != nil {
		event := domain.NewFacilityBuiltEvent(username, *tx.Facility, tx.TotalCost, tx.BudgetAfter)
		if err := e.events.PublishFacilityBuilt(ctx, event); err != nil {
			e.logger.Error("build event publish failed", "facility_id", tx.Facility.ID, "error", err)
		}
	}

	return tx, nil
}

// apply evaluates against the current budget and commits under mu.
func (e *Engine) apply(building domain.BuildingOption, loc domain.Location) Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := Evaluate(e.budget, building, loc)
	if tx.State != StateCommitted {
		return tx
	}

	built := loc
	built.Origin = domain.OriginBuilt
	facility := domain.BuiltFacility{
		ID:       uuid.NewString(),
		Building: building,
		Location: built,
		DayBuilt: e.day,
		BuiltAt:  domain.Now(),
	}

	e.budget = tx.BudgetAfter
	e.facilities = append(e.facilities, facility)
	tx.Facility = &facility

	if e.metrics != nil {
		e.metrics.Budget.Set(float64(e.budget))
	}
	return tx
}

// Budget returns the remaining budget.
func (e *Engine) Budget() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.budget
}

// Day returns the current day counter.
func (e *Engine) Day() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.day
}

// AdvanceDays moves the day counter forward by n and returns the new day.
// Non-positive n leaves it unchanged.
func (e *Engine) AdvanceDays(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > 0 {
		e.day += n
	}
	return e.day
}

// Facilities returns the built facilities in build order.
func (e *Engine) Facilities() []domain.BuiltFacility {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.BuiltFacility, len(e.facilities))
	copy(out, e.facilities)
	return out
}

func (e *Engine) countBuild(state TransactionState) {
	if e.metrics != nil {
		e.metrics.BuildTransactions.WithLabelValues(string(state)).Inc()
	}
}
