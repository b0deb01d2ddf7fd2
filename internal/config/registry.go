package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/lingocoach/pkg/provider/grammar"
	"github.com/MrWong99/lingocoach/pkg/provider/langid"
	"github.com/MrWong99/lingocoach/pkg/provider/llm"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	llm     map[string]func(ProviderEntry) (llm.Provider, error)
	stt     map[string]func(ProviderEntry) (stt.Provider, error)
	grammar map[string]func(ProviderEntry) (grammar.Factory, error)
	langid  map[string]func(ProviderEntry) (langid.Identifier, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:     make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:     make(map[string]func(ProviderEntry) (stt.Provider, error)),
		grammar: make(map[string]func(ProviderEntry) (grammar.Factory, error)),
		langid:  make(map[string]func(ProviderEntry) (langid.Identifier, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterGrammar registers a grammar backend under name. The factory returns
// a grammar.Factory that builds one checker per language.
func (r *Registry) RegisterGrammar(name string, factory func(ProviderEntry) (grammar.Factory, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grammar[name] = factory
}

// RegisterLangID registers a language identifier factory under name.
func (r *Registry) RegisterLangID(name string, factory func(ProviderEntry) (langid.Identifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langid[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateGrammar instantiates a grammar checker factory using the factory
// registered under entry.Name.
func (r *Registry) CreateGrammar(entry ProviderEntry) (grammar.Factory, error) {
	return create(r, r.grammar, "grammar", entry)
}

// CreateLangID instantiates a language identifier using the factory
// registered under entry.Name.
func (r *Registry) CreateLangID(entry ProviderEntry) (langid.Identifier, error) {
	return create(r, r.langid, "langid", entry)
}

// Names returns the sorted provider names registered for kind ("llm", "stt",
// "grammar" or "langid").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "llm":
		names = keys(r.llm)
	case "stt":
		names = keys(r.stt)
	case "grammar":
		names = keys(r.grammar)
	case "langid":
		names = keys(r.langid)
	}
	slices.Sort(names)
	return names
}

func create[T any](r *Registry, factories map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
