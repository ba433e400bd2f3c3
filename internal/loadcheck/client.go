package loadcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/puzzlerating/internal/adapters/http/api"
	"github.com/okian/puzzlerating/internal/adapters/wire"
)

// HTTPClient talks to the rating service.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client with the given per-request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Health checks that /healthz answers 200.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Evaluate posts one case and returns the delta the service computed.
func (c *HTTPClient) Evaluate(ctx context.Context, tc Case) (int, error) {
	body, err := json.Marshal(tc.Record)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rating-adjustment", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderRequestID, tc.ID)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", tc.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", tc.ID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("post %s: status %d: %s", tc.ID, resp.StatusCode, bytes.TrimSpace(data))
	}

	var out wire.Response
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode %s: %w", tc.ID, err)
	}
	return out.RatingDelta, nil
}
