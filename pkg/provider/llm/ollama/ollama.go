// Package ollama provides an LLM provider backed by a local Ollama server.
//
// Ollama (https://ollama.com) hosts local large language models. This package
// talks to Ollama's native /api/chat endpoint with streaming disabled, so every
// Complete call is exactly one blocking request, and lists installed models
// through /api/tags for availability probes.
//
// Example usage:
//
//	p, err := ollama.New("", "llama3.2:3b") // connects to http://localhost:11434
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := p.Complete(ctx, llm.CompletionRequest{
//	    SystemPrompt: "You are a precise language tutor.",
//	    Messages:     []llm.Message{llm.UserMessage(prompt)},
//	})
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/lingocoach/pkg/provider/llm"
)

const (
	// DefaultBaseURL is the default base URL for a locally running Ollama instance.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "llama3.2:3b"

	// DefaultTimeout bounds a single chat request.
	DefaultTimeout = 120 * time.Second

	// DefaultProbeTimeout bounds a model listing request.
	DefaultProbeTimeout = 3 * time.Second
)

// Ensure Provider implements the llm interfaces at compile time.
var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)

// Provider implements llm.Provider using a local Ollama server.
//
// Provider is safe for concurrent use.
type Provider struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	probeTimeout time.Duration
}

// config holds optional configuration collected from functional options.
type config struct {
	timeout      time.Duration
	probeTimeout time.Duration
	httpClient   *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout sets the HTTP timeout for chat requests. Default: 120s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithProbeTimeout sets the timeout for [Provider.ListModels]. Default: 3s.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *config) {
		c.probeTimeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. The client's own
// timeout takes precedence over [WithTimeout].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// New creates a new Ollama Provider.
//
// baseURL is the Ollama server URL (e.g., "http://localhost:11434"). An empty
// string falls back to DefaultBaseURL. model defaults to DefaultModel when empty.
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{
		timeout:      DefaultTimeout,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, o := range opts {
		o(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	return &Provider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		httpClient:   hc,
		probeTimeout: cfg.probeTimeout,
	}, nil
}

// chatMessage is a single message on the Ollama wire.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for POST /api/chat.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// chatResponse is the subset of the /api/chat response body we read. Content
// is kept raw so a non-string value can be detected.
type chatResponse struct {
	Message struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// Complete implements llm.Provider.
//
// A non-2xx status is logged with the request URL and a body preview and
// returned as an [*llm.StatusError]. When the body is not JSON or carries no
// string message content, the raw body text is returned as the content so the
// caller always receives some text.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	url := p.baseURL + "/api/chat"

	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview := llm.Preview(raw)
		slog.Error("ollama: chat request failed",
			"status", resp.StatusCode,
			"url", url,
			"body", preview,
		)
		return nil, &llm.StatusError{StatusCode: resp.StatusCode, URL: url, BodyPreview: preview}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		slog.Warn("ollama: response is not JSON, returning raw body", "url", url, "err", err)
		return &llm.CompletionResponse{Content: string(raw)}, nil
	}

	out := &llm.CompletionResponse{
		Usage: llm.Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}
	var content string
	if !isString(parsed.Message.Content) || json.Unmarshal(parsed.Message.Content, &content) != nil {
		slog.Warn("ollama: response has no string content, returning raw body", "url", url)
		out.Content = string(raw)
		return out, nil
	}
	out.Content = content
	return out, nil
}

// Model implements llm.Provider.
func (p *Provider) Model() string {
	return p.model
}

// ListModels implements llm.ModelLister by querying GET /api/tags. The call is
// bounded by the probe timeout regardless of ctx.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	if p.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.probeTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ollama: list models: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama: decode models: %w", err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}

// buildRequest converts a CompletionRequest into the /api/chat wire format.
func (p *Provider) buildRequest(req llm.CompletionRequest) chatRequest {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	out := chatRequest{Model: model, Stream: false}
	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, chatMessage{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	if req.Temperature != 0 || req.MaxTokens > 0 {
		out.Options = make(map[string]any, 2)
		if req.Temperature != 0 {
			out.Options["temperature"] = req.Temperature
		}
		if req.MaxTokens > 0 {
			out.Options["num_predict"] = req.MaxTokens
		}
	}
	return out
}

// isString reports whether raw holds a JSON string literal.
func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}
