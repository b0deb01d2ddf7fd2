package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/lingocoach/pkg/provider/llm"
)

// ErrNoModelLister is returned by [LLMFallback.ListModels] when the primary
// cannot enumerate its models.
var ErrNoModelLister = errors.New("resilience: primary llm cannot list models")

// LLMFallback implements [llm.Provider] with failover across several LLM
// backends, each behind its own circuit breaker.
//
// Model and ListModels describe the primary only. A request that sets
// CompletionRequest.Model sends that model to whichever backend serves it.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var (
	_ llm.Provider    = (*LLMFallback)(nil)
	_ llm.ModelLister = (*LLMFallback)(nil)
)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional LLM provider.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the backend names in try order.
func (f *LLMFallback) Names() []string {
	return f.group.Names()
}

// Complete sends req to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Model returns the primary's model.
func (f *LLMFallback) Model() string {
	return f.group.Primary().Model()
}

// ListModels lists the primary's installed models. It does not fail over:
// the availability probe asks about the primary's model.
func (f *LLMFallback) ListModels(ctx context.Context) ([]string, error) {
	lister, ok := f.group.Primary().(llm.ModelLister)
	if !ok {
		return nil, ErrNoModelLister
	}
	return lister.ListModels(ctx)
}
