package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sentinel/internal/config"
)

// Client calls the remote remediation agent over HTTP.
// Params: agent base URL and bounded-timeout HTTP client.
// Returns: Remediator implementation for the dispatcher.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an agent client with a bounded call timeout.
// Params: agent config section.
// Returns: initialized client; a hung agent call surfaces as a timeout failure.
func NewClient(cfg config.AgentConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Perform posts one remediation call to the agent.
// Params: context, remediation name (lockdown/heal/scan/...), and opaque payload.
// Returns: nil on 2xx response; transport or HTTP status error otherwise.
func (c *Client) Perform(ctx context.Context, name string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode agent payload: %w", err)
	}

	endpoint := c.baseURL + "/agent/" + strings.TrimSpace(name)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build agent request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("agent call %q: %w", name, err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, 256))
		return fmt.Errorf("agent call %q returned %d: %s", name, response.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
