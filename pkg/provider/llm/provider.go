// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local chat model API (a local Ollama
// instance by default, or any backend supported by any-llm-go or the OpenAI
// SDK) and exposes a single synchronous chat call to the coaching layer
// without coupling it to a specific SDK.
//
// Implementors must be safe for concurrent use. A call issues exactly one
// request to the backend; retrying is the caller's decision.
package llm

import (
	"context"
	"fmt"
	"slices"
)

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between providers
// for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and system
	// prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Provided as a convenience;
	// some providers return it directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages must
// be non-empty.
type CompletionRequest struct {
	// SystemPrompt is the persona instruction sent as a "system"-role message
	// ahead of Messages.
	SystemPrompt string

	// Messages is the ordered conversation. For coaching calls this is a single
	// "user" message holding the filled prompt template.
	Messages []Message

	// Model overrides the provider's configured model when non-empty.
	Model string

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// means use the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair. Zero when
	// the backend does not report usage.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error if the transport fails, the backend answers with a
	// non-success status, or ctx is cancelled before the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the default model name used when a request does not set one.
	Model() string
}

// ModelLister is implemented by providers that can enumerate the models
// installed on their backend.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// HasModel reports whether p lists model among its installed models. Any
// error, including p not implementing [ModelLister], yields false.
func HasModel(ctx context.Context, p Provider, model string) bool {
	lister, ok := p.(ModelLister)
	if !ok {
		return false
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		return false
	}
	return slices.Contains(models, model)
}

// StatusError is returned when the backend answers with a non-success HTTP
// status.
type StatusError struct {
	StatusCode int
	URL        string

	// BodyPreview holds at most [MaxBodyPreview] characters of the response body.
	BodyPreview string
}

// MaxBodyPreview is the number of body characters kept in a [StatusError].
const MaxBodyPreview = 2000

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: %s returned status %d: %s", e.URL, e.StatusCode, e.BodyPreview)
}

// Preview truncates body to [MaxBodyPreview] characters.
func Preview(body []byte) string {
	r := []rune(string(body))
	if len(r) > MaxBodyPreview {
		r = r[:MaxBodyPreview]
	}
	return string(r)
}
