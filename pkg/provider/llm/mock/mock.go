// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the coaching layer sends correct
// CompletionRequests and to feed controlled responses without a live LLM backend.
// All fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []string{"Weakest: articles\nWhy: ..."},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingocoach/pkg/provider/llm"
)

var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider and llm.ModelLister.
// Zero values for response fields cause methods to return zero values and nil errors.
// Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ModelName is returned by Model.
	ModelName string

	// Responses are returned by successive Complete calls, in order. Once
	// exhausted, the last entry is repeated. An empty slice yields "".
	Responses []string

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// Models is returned by ListModels.
	Models []string

	// ListModelsErr, if non-nil, is returned as the error from ListModels.
	ListModelsErr error

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	// ListModelsCallCount is the number of times ListModels was called.
	ListModelsCallCount int
}

// Complete records the call and returns the next configured response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := len(p.CompleteCalls)
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	if len(p.Responses) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	return &llm.CompletionResponse{Content: p.Responses[idx]}, nil
}

// Model returns ModelName.
func (p *Provider) Model() string {
	return p.ModelName
}

// ListModels records the call and returns Models or ListModelsErr.
func (p *Provider) ListModels(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ListModelsCallCount++
	if p.ListModelsErr != nil {
		return nil, p.ListModelsErr
	}
	out := make([]string, len(p.Models))
	copy(out, p.Models)
	return out, nil
}

// Calls returns a snapshot of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.ListModelsCallCount = 0
}
