package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type Actor struct {
	Address        string `json:"address"`
	DisplayAddress string `json:"display_address"`
	Name           string `json:"name"`
	Role           int16  `json:"role"`
	Location       string `json:"location"`
	IsActive       bool   `json:"is_active"`
	ApprovalStatus int16  `json:"approval_status"`
}

// ListActors queries the registry index. status is pending, approved,
// rejected, or empty for all.
func (c *Client) ListActors(ctx context.Context, status string) ([]Actor, error) {
	u := c.BaseURL + "/registry/actors"
	if status != "" {
		u += "?status=" + url.QueryEscape(status)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("registry returned %d", resp.StatusCode)
	}
	var out struct {
		Actors []Actor `json:"actors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Actors, nil
}

// Rescan triggers a registry rebuild after an approval changes chain state.
func (c *Client) Rescan(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/registry/rescan", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("registry returned %d", resp.StatusCode)
	}
	return nil
}
