package cake_client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcdev12/birthdaycake/go/internal/cake/gateway"
)

// HTTPClient reads the gateway's plain HTTP endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *HTTPClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *HTTPClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned status code: %d, response: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Health returns nil when the gateway answers its liveness probe.
func (c *HTTPClient) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/health")
	return err
}

// Stats fetches the gateway's connection statistics.
func (c *HTTPClient) Stats(ctx context.Context) (gateway.Stats, error) {
	body, err := c.get(ctx, "/ws/stats")
	if err != nil {
		return gateway.Stats{}, err
	}
	var stats gateway.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return gateway.Stats{}, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}
