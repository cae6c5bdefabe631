package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/querydeck/querydeck/internal/graphx"
)

// HTTPRunClient submits dependency-aware run payloads to an HTTP graph
// runtime service. It is the RunClient wired up when a runtime endpoint
// is configured; a failed submission falls through to the adapter's next
// execution strategy.
type HTTPRunClient struct {
	// Endpoint is the base URL of the runtime service.
	Endpoint string
	// APIKey authenticates submissions; sent as a bearer token when set.
	APIKey string
	// Client is the HTTP client; http.DefaultClient when nil.
	Client *http.Client
}

// CreateRun posts the payload to the runtime's runs endpoint and returns
// the decoded response body.
func (c *HTTPRunClient) CreateRun(ctx context.Context, payload *graphx.RunPayload) (any, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("no runtime endpoint configured")
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode run payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/runs", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("submit run: runtime returned %s", resp.Status)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode run response: %w", err)
	}
	return result, nil
}

var _ RunClient = (*HTTPRunClient)(nil)
