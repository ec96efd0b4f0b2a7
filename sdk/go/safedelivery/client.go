// Package safedelivery is the Go client for the gateway API. It mirrors the
// service's envelope: successful responses decode into typed results, error
// responses surface as *Error carrying the code and request id.
package safedelivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type Error struct {
	StatusCode int
	ErrorCode  string
	Message    string
	RequestID  string
	Details    map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("safedelivery sdk error: status=%d code=%s message=%s", e.StatusCode, e.ErrorCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retry:      RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// AccessState is the gateway's access payload: classification kind, permitted
// actions, and the filtered menu.
type AccessState struct {
	Kind         string           `json:"kind"`
	Role         string           `json:"role,omitempty"`
	AccountShort string           `json:"account_short,omitempty"`
	Actions      []string         `json:"actions"`
	Menu         []map[string]any `json:"menu"`
	Raw          map[string]any   `json:"-"`
}

func (c *Client) Connect(ctx context.Context, account string) (*AccessState, error) {
	obj, err := c.do(ctx, http.MethodPost, "/api/session/connect", map[string]any{"account": account}, false)
	if err != nil {
		return nil, err
	}
	return accessState(obj)
}

func (c *Client) Disconnect(ctx context.Context) (*AccessState, error) {
	obj, err := c.do(ctx, http.MethodPost, "/api/session/disconnect", nil, false)
	if err != nil {
		return nil, err
	}
	return accessState(obj)
}

func (c *Client) Access(ctx context.Context) (*AccessState, error) {
	obj, err := c.do(ctx, http.MethodGet, "/api/access", nil, true)
	if err != nil {
		return nil, err
	}
	return accessState(obj)
}

func accessState(obj map[string]any) (*AccessState, error) {
	out := &AccessState{Raw: obj}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListShipments returns the shipment payloads visible to the session. scope is
// active, completed, or empty for all.
func (c *Client) ListShipments(ctx context.Context, scope string) ([]map[string]any, error) {
	path := "/api/shipments"
	if scope != "" {
		path += "?scope=" + url.QueryEscape(scope)
	}
	obj, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	items, _ := obj["shipments"].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Client) GetShipment(ctx context.Context, id int64) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/api/shipments/"+strconv.FormatInt(id, 10), nil, true)
}

type CreateShipmentRequest struct {
	Recipient             string  `json:"recipient"`
	Product               string  `json:"product"`
	Origin                string  `json:"origin"`
	Destination           string  `json:"destination"`
	DateEstimatedDelivery int64   `json:"date_estimated_delivery"`
	RequiresColdChain     bool    `json:"requires_cold_chain"`
	MinTemperatureC       float64 `json:"min_temperature_c"`
	MaxTemperatureC       float64 `json:"max_temperature_c"`
}

func (c *Client) CreateShipment(ctx context.Context, req CreateShipmentRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/api/shipments", req, false)
	return err
}

type RecordCheckpointRequest struct {
	Location     string  `json:"location"`
	Type         string  `json:"type,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	TemperatureC float64 `json:"temperature_c"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	HasDamage    bool    `json:"has_damage"`
}

// RecordCheckpoint records a checkpoint and returns the checkpoint type the
// gateway applied (inferred from role and status when the request omits it).
func (c *Client) RecordCheckpoint(ctx context.Context, shipmentID int64, req RecordCheckpointRequest) (string, error) {
	obj, err := c.do(ctx, http.MethodPost, "/api/shipments/"+strconv.FormatInt(shipmentID, 10)+"/checkpoints", req, false)
	if err != nil {
		return "", err
	}
	t, _ := obj["checkpoint_type"].(string)
	return t, nil
}

func (c *Client) RegisterActor(ctx context.Context, name, role, location string) (*AccessState, error) {
	obj, err := c.do(ctx, http.MethodPost, "/api/actors/register",
		map[string]any{"name": name, "role": role, "location": location}, false)
	if err != nil {
		return nil, err
	}
	return accessState(obj)
}

func (c *Client) do(ctx context.Context, method, path string, body any, retryable bool) (map[string]any, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}
	attempts := 1
	if retryable {
		attempts = c.retry.MaxAttempts
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if len(bodyBytes) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < attempts {
				sleepWithBackoff(c.retry, attempt)
				continue
			}
			return nil, err
		}
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			obj := map[string]any{}
			if len(respBody) > 0 {
				if err := json.Unmarshal(respBody, &obj); err != nil {
					return nil, err
				}
			}
			return obj, nil
		}
		if shouldRetryStatus(resp.StatusCode) && attempt < attempts {
			sleepWithBackoff(c.retry, attempt)
			continue
		}
		return nil, parseError(resp.StatusCode, respBody)
	}
	return nil, errors.New("unreachable")
}

func shouldRetryStatus(status int) bool {
	return status == 429 || status == 502 || status == 503 || status == 504
}

func sleepWithBackoff(cfg RetryConfig, attempt int) {
	d := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	time.Sleep(d)
}

func parseError(status int, body []byte) error {
	e := &Error{StatusCode: status, Message: strings.TrimSpace(string(body))}
	var envelope struct {
		RequestID string `json:"request_id"`
		Err       struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Err.Code != "" {
		e.ErrorCode = envelope.Err.Code
		e.Message = envelope.Err.Message
		e.RequestID = envelope.RequestID
		e.Details = envelope.Err.Details
	}
	return e
}
