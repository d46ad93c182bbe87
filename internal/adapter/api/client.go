package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

// SessionCookie carries the opaque credential issued by the auth service.
const SessionCookie = "session_id"

// maxErrorBody caps how much of an error response is kept in the error text.
const maxErrorBody = 512

// Client talks to the game backend. It implements the location, property
// detail, cart and simulation ports used by the game packages.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a backend client. metrics may be nil.
func NewClient(baseURL, sessionID string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:   baseURL,
		sessionID: sessionID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Locations returns the raw list payload for origin. Payloads are left
// undecoded because their shape varies between backend builds.
func (c *Client) Locations(ctx context.Context, origin domain.Origin) ([]byte, error) {
	var path, endpoint string
	switch origin {
	case domain.OriginExisting:
		path, endpoint = "/alldatacenters", "existing_locations"
	case domain.OriginPotential:
		path, endpoint = "/api/possible-datacenters", "potential_locations"
	default:
		return nil, fmt.Errorf("no location endpoint for origin %q", origin)
	}

	var raw json.RawMessage
	if err := c.do(ctx, endpoint, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// PropertyDetails looks up the property record nearest to at.
func (c *Client) PropertyDetails(ctx context.Context, at domain.Coordinates) (domain.PropertyDetails, error) {
	q := url.Values{
		"lat": {strconv.FormatFloat(at.Latitude, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(at.Longitude, 'f', -1, 64)},
	}
	var details domain.PropertyDetails
	if err := c.do(ctx, "property_details", http.MethodGet, "/api/property-details", q, nil, &details); err != nil {
		return domain.PropertyDetails{}, err
	}
	return details, nil
}

// cartResponse accepts both the documented "items" key and the "Items" spelling
// of older backends; encoding/json matches either.
type cartResponse struct {
	Items []domain.CartEntry `json:"items"`
}

// Cart returns the user's ledger entries. A user without a cart yields an
// error wrapping domain.ErrNotFound.
func (c *Client) Cart(ctx context.Context, username string) ([]domain.CartEntry, error) {
	var resp cartResponse
	if err := c.do(ctx, "cart", http.MethodGet, "/cart", url.Values{"username": {username}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

type addCartItemRequest struct {
	Username string           `json:"username"`
	Item     domain.CartEntry `json:"item"`
	Cost     int              `json:"cost"`
}

// AddCartItem appends entry to the user's ledger.
func (c *Client) AddCartItem(ctx context.Context, username string, entry domain.CartEntry) error {
	item := entry
	item.Cost = 0
	body := addCartItemRequest{Username: username, Item: item, Cost: entry.Cost}
	return c.do(ctx, "cart_add", http.MethodPost, "/cart/add", nil, body, nil)
}

// RemoveCartItem deletes the entry at index. The backend answers an index it
// does not hold with 400, which is reported as domain.ErrNotFound.
func (c *Client) RemoveCartItem(ctx context.Context, username string, index int) error {
	q := url.Values{"username": {username}, "index": {strconv.Itoa(index)}}
	err := c.do(ctx, "cart_remove", http.MethodDelete, "/cart/item", q, nil, nil)

	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusBadRequest {
		return fmt.Errorf("remove cart item %d: %w: %v", index, domain.ErrNotFound, se)
	}
	return err
}

// ClearCart deletes the user's whole ledger.
func (c *Client) ClearCart(ctx context.Context, username string) error {
	return c.do(ctx, "cart_clear", http.MethodDelete, "/cart", url.Values{"username": {username}}, nil, nil)
}

// CarbonFootprint returns the footprint of the user's ledger.
func (c *Client) CarbonFootprint(ctx context.Context, username string) (float64, error) {
	var resp struct {
		CarbonFootprint domain.Number `json:"carbon_footprint"`
	}
	if err := c.do(ctx, "carbon_footprint", http.MethodGet, "/cart/carbon-footprint", url.Values{"username": {username}}, nil, &resp); err != nil {
		return 0, err
	}
	return resp.CarbonFootprint.Or(0), nil
}

// Simulation runs the climate projection for the user's facilities.
func (c *Client) Simulation(ctx context.Context, username string) (domain.SimulationRun, error) {
	var run domain.SimulationRun
	if err := c.do(ctx, "simulation", http.MethodGet, "/api/simulation", url.Values{"username": {username}}, nil, &run); err != nil {
		return domain.SimulationRun{}, err
	}
	return run, nil
}

// do issues one request. A nil out discards the response body. In the
// returned error, transport failures and unexpected statuses wrap
// domain.ErrNetworkFailure, 404 wraps domain.ErrNotFound and an undecodable
// body wraps domain.ErrMalformedSchema.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, in, out any) (err error) {
	start := time.Now()
	defer func() {
		c.observe(endpoint, time.Since(start), err)
	}()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.sessionID})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w: %w", endpoint, domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{endpoint: endpoint, code: resp.StatusCode, body: string(bytes.TrimSpace(msg))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", endpoint, domain.ErrMalformedSchema, err)
	}
	return nil
}

// statusError is a non-2xx backend response.
type statusError struct {
	endpoint string
	code     int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.endpoint, e.code, e.body)
}

func (e *statusError) Unwrap() error {
	if e.code == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return domain.ErrNetworkFailure
}

func (c *Client) observe(endpoint string, elapsed time.Duration, err error) {
	outcome := "success"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}

	if err != nil {
		c.logger.Debug("backend request failed", "endpoint", endpoint, "error", err)
	}
	if c.metrics == nil {
		return
	}
	c.metrics.APIRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.APIDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
