// Package languagetool provides a grammar.Checker backed by a LanguageTool
// server (https://languagetool.org), typically a local instance started with
// the official Docker image or languagetool-server.jar.
//
// Example usage:
//
//	c, err := languagetool.New("http://localhost:8081", "en-US")
//	matches, err := c.Check(ctx, "I has went to the store")
package languagetool

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/lingocoach/pkg/provider/grammar"
)

const (
	// DefaultBaseURL is the address of a LanguageTool server on its default port.
	DefaultBaseURL = "http://localhost:8081"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Ensure Client implements grammar.Checker at compile time.
var (
	_ grammar.Checker = (*Client)(nil)
	_ grammar.Pinger  = (*Client)(nil)
)

// Option is a functional option for Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
}

// WithHTTPClient replaces the underlying HTTP client. The client is never
// modified; see [WithTimeout].
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithTimeout sets the HTTP timeout for a single check. Default: 30s. Combined
// with [WithHTTPClient], in either order, the checks use a copy of that client
// carrying this timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Client checks text for one language against a LanguageTool server. It is
// safe for concurrent use.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// New creates a Client for language (a LanguageTool code such as "en-US").
// An empty baseURL falls back to DefaultBaseURL.
func New(baseURL, language string, opts ...Option) (*Client, error) {
	if language == "" {
		return nil, errors.New("languagetool: language must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		httpClient: o.client(),
	}, nil
}

func (o options) client() *http.Client {
	switch {
	case o.httpClient == nil:
		return &http.Client{Timeout: cmp.Or(o.timeout, defaultTimeout)}
	case o.timeout > 0:
		hc := *o.httpClient
		hc.Timeout = o.timeout
		return &hc
	}
	return o.httpClient
}

// NewFactory returns a grammar.Factory producing Clients that share baseURL
// and opts.
func NewFactory(baseURL string, opts ...Option) grammar.Factory {
	return func(language string) (grammar.Checker, error) {
		return New(baseURL, language, opts...)
	}
}

// Language returns the LanguageTool code this client checks.
func (c *Client) Language() string {
	return c.language
}

// checkResponse is the subset of the /v2/check response body we read.
type checkResponse struct {
	Matches []struct {
		Message string `json:"message"`
		Context struct {
			Text string `json:"text"`
		} `json:"context"`
		Rule struct {
			ID string `json:"id"`
		} `json:"rule"`
	} `json:"matches"`
}

// Check implements grammar.Checker by posting text to /v2/check.
func (c *Client) Check(ctx context.Context, text string) ([]grammar.Match, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", c.language)

	endpoint := c.baseURL + "/v2/check"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("languagetool: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("languagetool: check: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("languagetool: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, fmt.Errorf("languagetool: %s returned HTTP %d: %s", endpoint, resp.StatusCode, raw)
	}

	var cr checkResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("languagetool: decode response: %w", err)
	}

	matches := make([]grammar.Match, 0, len(cr.Matches))
	for _, m := range cr.Matches {
		rule := m.Rule.ID
		if rule == "" {
			rule = grammar.DefaultRule
		}
		matches = append(matches, grammar.Match{
			Rule:    rule,
			Message: m.Message,
			Context: m.Context.Text,
		})
	}
	return matches, nil
}

// Ping checks that the server answers GET /v2/languages.
func (c *Client) Ping(ctx context.Context) error {
	return Ping(ctx, c.httpClient, c.baseURL)
}

// Ping checks that the LanguageTool server at baseURL answers
// GET /v2/languages with 200.
func Ping(ctx context.Context, hc *http.Client, baseURL string) error {
	if hc == nil {
		hc = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/v2/languages", nil)
	if err != nil {
		return fmt.Errorf("languagetool: create request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("languagetool: ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("languagetool: ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}
