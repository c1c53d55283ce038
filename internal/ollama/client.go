// Package ollama is a minimal client for a locally-running Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultHost is where a local Ollama server listens.
const DefaultHost = "http://localhost:11434"

// The complete set of API paths this client will ever call. The task
// validator uses the same list to reject generated code that invents
// endpoints.
const (
	EndpointGenerate   = "/api/generate"
	EndpointChat       = "/api/chat"
	EndpointTags       = "/api/tags"
	EndpointEmbeddings = "/api/embeddings"
)

// ValidEndpoints returns the known-valid Ollama API paths.
func ValidEndpoints() []string {
	return []string{EndpointGenerate, EndpointChat, EndpointTags, EndpointEmbeddings}
}

// ErrServerUnavailable wraps connection failures so callers can suggest
// starting the server.
var ErrServerUnavailable = errors.New("cannot reach Ollama server")

// Message is a single turn in a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model describes an installed model as reported by /api/tags.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Client talks to one Ollama server about one model.
type Client struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewClient creates a client for the given host and model. An empty host
// falls back to DefaultHost.
func NewClient(host, model string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		host:  strings.TrimRight(host, "/"),
		model: model,
		// No overall client timeout: generation time is unbounded and
		// per-call deadlines come from the caller's context.
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client (used in tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Model returns the model name this client was configured with.
func (c *Client) Model() string { return c.model }

// Chat sends a message history to /api/chat and returns the assistant
// reply content.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	payload := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
	}
	body, err := c.post(ctx, EndpointChat, payload)
	if err != nil {
		return "", err
	}

	// Responses are probed leniently: some model builds wrap content in
	// extra fields, and error payloads come back with a 200 from proxies.
	if errMsg := gjson.GetBytes(body, "error"); errMsg.Exists() {
		return "", fmt.Errorf("ollama chat error: %s", errMsg.String())
	}
	content := gjson.GetBytes(body, "message.content")
	if !content.Exists() {
		return "", fmt.Errorf("unexpected chat response shape: %s", truncate(body, 200))
	}
	return content.String(), nil
}

// Generate sends a bare prompt to /api/generate and returns the response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	body, err := c.post(ctx, EndpointGenerate, payload)
	if err != nil {
		return "", err
	}
	if errMsg := gjson.GetBytes(body, "error"); errMsg.Exists() {
		return "", fmt.Errorf("ollama generate error: %s", errMsg.String())
	}
	response := gjson.GetBytes(body, "response")
	if !response.Exists() {
		return "", fmt.Errorf("unexpected generate response shape: %s", truncate(body, 200))
	}
	return response.String(), nil
}

// Tags lists the models installed on the server.
func (c *Client) Tags(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+EndpointTags, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tags request failed: %s: %s", resp.Status, truncate(body, 200))
	}

	var parsed struct {
		Models []Model `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse tags response: %w", err)
	}
	return parsed.Models, nil
}

// Available reports whether the server answers at all.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.Tags(ctx)
	return err == nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s request failed: %s: %s", endpoint, resp.Status, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
