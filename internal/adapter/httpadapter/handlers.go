package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/game"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error        string             `json:"error"`
	Notification *game.Notification `json:"notification,omitempty"`
	Transaction  *game.Transaction  `json:"transaction,omitempty"`
}

type locationsResponse struct {
	Existing  []domain.Location `json:"existing"`
	Potential []domain.Location `json:"potential"`
	Degraded  bool              `json:"degraded"`
}

type selectionRequest struct {
	ID string `json:"id"`
}

type selectionResponse struct {
	Selection domain.Location `json:"selection"`
	Degraded  bool            `json:"degraded"`
	Warning   string          `json:"warning,omitempty"`
}

type buildRequest struct {
	BuildingID string `json:"building_id"`
}

type daysRequest struct {
	Days int `json:"days"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.game.State())
}

func (s *Server) handleLocations(w http.ResponseWriter, _ *http.Request) {
	existing, potential := s.game.Catalog()
	writeJSON(w, http.StatusOK, locationsResponse{
		Existing:  nonNil(existing),
		Potential: nonNil(potential),
		Degraded:  s.game.CatalogDegraded(),
	})
}

func (s *Server) handleBuildings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.game.Buildings().Options())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil || req.ID == "" {
		s.writeError(w, badRequest(err, "id is required"))
		return
	}

	loc, err := s.game.Select(r.Context(), req.ID)
	if err != nil && !errors.Is(err, domain.ErrEnrichmentDegraded) {
		s.writeError(w, err)
		return
	}

	resp := selectionResponse{Selection: loc, Degraded: err != nil}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := decodeBody(r, &req); err != nil || req.BuildingID == "" {
		s.writeError(w, badRequest(err, "building_id is required"))
		return
	}

	tx, err := s.game.Build(r.Context(), req.BuildingID)
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		if tx.State == game.StateRejected {
			resp.Transaction = &tx
			if len(tx.Notifications) > 0 {
				resp.Notification = &tx.Notifications[0]
			}
		}
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleAdvanceDays(w http.ResponseWriter, r *http.Request) {
	var req daysRequest
	if err := decodeBody(r, &req); err != nil || req.Days <= 0 {
		s.writeError(w, badRequest(err, "days must be positive"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"day": s.game.AdvanceDays(req.Days)})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.game.RefreshCart(r.Context()))
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.game.AddSelectedToCart(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		s.writeError(w, badRequest(err, "index must be a non-negative integer"))
		return
	}

	snap, err := s.game.RemoveFromCart(r.Context(), index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.game.ClearCart(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	series, err := s.game.Simulate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("bad request")

func badRequest(cause error, msg string) error {
	if cause != nil && !errors.Is(cause, io.EOF) {
		return fmt.Errorf("%w: %s: %w", errBadRequest, msg, cause)
	}
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownLocation),
		errors.Is(err, domain.ErrUnknownBuilding):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrLocationNotEnriched),
		errors.Is(err, domain.ErrNoSelection),
		errors.Is(err, domain.ErrStaleSelection):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSeriesLengthMismatch),
		errors.Is(err, domain.ErrNetworkFailure),
		errors.Is(err, domain.ErrMalformedSchema):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func nonNil(locs []domain.Location) []domain.Location {
	if locs == nil {
		return []domain.Location{}
	}
	return locs
}
