package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/cutelights/internal/light"
)

// Client talks to the v1 REST API of one bridge.
// All lights discovered from a bridge share its client and command limiter.
type Client struct {
	address    string
	username   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a bridge client.
// rps limits state updates per second across all lights; <= 0 disables limiting.
func NewClient(address, username string, timeout time.Duration, rps float64) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}

	return &Client{
		address:    address,
		username:   username,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Address returns the bridge address
func (c *Client) Address() string {
	return c.address
}

// Close closes idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("http://%s/api/%s/%s", c.address, c.username, path)
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", light.ErrTransport, method, path, err)
	}
	return resp, nil
}

// GetLights returns the raw light records keyed by bridge light id
func (c *Client) GetLights(ctx context.Context) (map[string]any, error) {
	resp, err := c.request(ctx, http.MethodGet, "lights/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list lights: unexpected status code: %d", light.ErrDevice, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read lights: %w", light.ErrTransport, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: lights: %w", light.ErrDecode, err)
	}

	switch v := doc.(type) {
	case map[string]any:
		return v, nil
	case []any:
		// The bridge reports failures as [{"error":{...}}] with status 200
		return nil, fmt.Errorf("%w: list lights: %s", light.ErrDevice, errorDescription(v))
	default:
		return nil, fmt.Errorf("%w: lights: expected object, got %T", light.ErrDecode, doc)
	}
}

// SetState sends a state update for one light.
// The response body is not inspected beyond the status code.
func (c *Client) SetState(ctx context.Context, lightID string, state map[string]any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit: %w", light.ErrTransport, err)
	}

	bodyBytes, err := json.Marshal(state)
	if err != nil {
		return err
	}

	resp, err := c.request(ctx, http.MethodPut, fmt.Sprintf("lights/%s/state", lightID), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: set light %s state: unexpected status code: %d", light.ErrDevice, lightID, resp.StatusCode)
	}

	log.Debug().
		Str("light", lightID).
		RawJSON("state", bodyBytes).
		Msg("Light state sent")

	return nil
}

func errorDescription(items []any) string {
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if e, ok := m["error"].(map[string]any); ok {
			if desc, ok := e["description"].(string); ok {
				return desc
			}
		}
	}
	return "bridge returned an error list"
}
