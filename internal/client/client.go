// Package client talks to OpenAI-compatible completion endpoints. It is
// the benchmark's single transport capability: issue one completion
// call, either blocking for the terminal response or handing raw stream
// chunks to a caller-supplied callback as they arrive.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inference-bench/inference-bench/internal/request"
	"github.com/inference-bench/inference-bench/internal/sse"
)

const (
	defaultTimeout = 10 * time.Minute

	// streamReadSize is the slab size for streaming body reads. Chunk
	// boundaries are arbitrary; the decoder reassembles lines.
	streamReadSize = 4 * 1024
)

// ChunkFunc receives one raw chunk of a streaming response body. It
// returns false to stop receiving.
type ChunkFunc func(chunk string) bool

// Choice is one completion alternative in a terminal response.
type Choice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
}

// CompletionResponse is the terminal response of a non-streaming call.
// Usage and timing share the sse package's wire types; the streamed and
// terminal shapes carry the same metadata blocks.
type CompletionResponse struct {
	ID       string        `json:"id"`
	Object   string        `json:"object"`
	Created  int64         `json:"created"`
	Model    string        `json:"model"`
	Choices  []Choice      `json:"choices"`
	Usage    *sse.Usage    `json:"usage"`
	TimeInfo *sse.TimeInfo `json:"time_info"`
}

// Client issues completion calls against one endpoint with bound
// credentials. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the overall per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a client for the given base URL (e.g.
// "https://api.cerebras.ai/v1") and API key.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete issues one completion call for req against model.
//
// With a nil onChunk the call blocks until the terminal response is
// available and returns it decoded. With a non-nil onChunk the response
// body is read incrementally and each arriving chunk is passed to
// onChunk in order; a false return stops reading. The returned response
// is nil in streaming mode.
func (c *Client) Complete(ctx context.Context, model string, req request.Request, onChunk ChunkFunc) (*CompletionResponse, error) {
	payload := make(map[string]any, len(req)+2)
	for k, v := range req {
		payload[k] = v
	}
	payload["model"] = model
	// The callback decides the transport mode; the wire flag must agree
	// or a server defaulting to non-streaming would return one JSON body.
	if onChunk != nil {
		payload["stream"] = true
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if onChunk != nil {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("completion request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	if onChunk == nil {
		var result CompletionResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &result, nil
	}

	buf := make([]byte, streamReadSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if !onChunk(string(buf[:n])) {
				return nil, nil
			}
		}
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Models returns the model IDs advertised by the endpoint.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models request failed: status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	ids := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
