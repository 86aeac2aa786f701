// Package vast talks to the remote control plane that owns the billed
// compute instances. Calls are synchronous and bounded by the client
// timeout; retry timing belongs to the monitor, never to this client.
package vast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public control-plane endpoint.
const DefaultBaseURL = "https://console.vast.ai/api/v0"

// ErrNotFound reports that the instance no longer exists on the control
// plane. Callers treat it as "nothing to do", not as a failure.
var ErrNotFound = errors.New("instance not found")

// ControlPlane is the remote API surface the monitor consumes. Any backend
// with list-by-selector and delete-by-id semantics can implement it.
type ControlPlane interface {
	ListInstances(ctx context.Context, sel Selector) ([]Instance, error)
	DestroyInstance(ctx context.Context, id int64) error
}

// Config holds client configuration.
type Config struct {
	APIKey  string
	BaseURL string        // defaults to DefaultBaseURL
	Timeout time.Duration // per-request bound, defaults to 15s
	Logger  *slog.Logger
}

// Client is the REST implementation of ControlPlane.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a control-plane client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "vast"),
	}
}

// ListInstances returns the caller's instances matching sel. Filtering is
// client-side: the control plane returns all owned instances.
func (c *Client) ListInstances(ctx context.Context, sel Selector) ([]Instance, error) {
	u := fmt.Sprintf("%s/instances/?api_key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError("list instances", resp)
	}

	var envelope listResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode instances: %w", err)
	}

	matched := make([]Instance, 0, len(envelope.Instances))
	for _, inst := range envelope.Instances {
		if sel.Matches(inst) {
			matched = append(matched, inst)
		}
	}
	c.logger.Debug("instances listed", "selector", sel.String(), "total", len(envelope.Instances), "matched", len(matched))
	return matched, nil
}

// DestroyInstance deletes one instance by id. A 404 maps to ErrNotFound.
func (c *Client) DestroyInstance(ctx context.Context, id int64) error {
	u := fmt.Sprintf("%s/instances/%d/?api_key=%s", c.baseURL, id, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("destroy instance %d: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("destroy instance %d: %w", id, ErrNotFound)
	case resp.StatusCode >= 300:
		return c.apiError(fmt.Sprintf("destroy instance %d", id), resp)
	}
	c.logger.Info("instance destroyed", "id", id)
	return nil
}

// apiError builds an error from a non-OK response, keeping a short body
// excerpt for diagnosis.
func (c *Client) apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	excerpt := strings.TrimSpace(string(body))
	if excerpt == "" {
		return fmt.Errorf("%s: HTTP %d", op, resp.StatusCode)
	}
	return fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode, excerpt)
}
