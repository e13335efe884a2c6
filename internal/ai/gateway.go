// Gateway provider: raw HTTP implementation of Client speaking the chat
// gateway's wire shape (choices/content, citations, time_warning). Transport
// failures are returned as-is so the retry layer can distinguish them from
// context cancellation; malformed bodies surface as decode errors and are
// classified by the orchestrator as non-retryable.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// defaultGatewayTimeout bounds a single completion attempt.
	defaultGatewayTimeout = 60 * time.Second

	// maxResponseSize caps the response body read to keep a misbehaving
	// upstream from exhausting memory.
	maxResponseSize = 10 << 20
)

// GatewayClient calls a chat-gateway completion endpoint over HTTP.
type GatewayClient struct {
	// BaseURL is the gateway root, e.g. "https://api.example.com".
	BaseURL string
	// HTTPClient is the underlying client; a pooled default is used when nil.
	HTTPClient *http.Client
}

// sharedHTTPClient pools connections across all gateway requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: defaultGatewayTimeout,
}

// NewGatewayClient constructs a GatewayClient for the given base URL.
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: sharedHTTPClient,
	}
}

// Complete posts the completion request and decodes the gateway response.
// A non-2xx status is returned as an error carrying the status code; the
// body is still inspected for a structured error message when present.
func (c *GatewayClient) Complete(ctx context.Context, token string, req CompletionRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	client := c.HTTPClient
	if client == nil {
		client = sharedHTTPClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	var out CompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("completion call failed: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("completion call failed: status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("completion call failed: status %d", resp.StatusCode)
	}

	return &out, nil
}
