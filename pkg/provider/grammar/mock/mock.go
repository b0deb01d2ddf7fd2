// Package mock provides test doubles for the grammar package interfaces.
//
// Example:
//
//	c := &mock.Checker{Matches: []grammar.Match{{Rule: "R", Message: "m"}}}
//	f := mock.NewFactory(c)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingocoach/pkg/provider/grammar"
)

var (
	_ grammar.Checker = (*Checker)(nil)
	_ grammar.Pinger  = (*Checker)(nil)
)

// Checker is a mock implementation of grammar.Checker.
type Checker struct {
	mu sync.Mutex

	// Matches is returned by Check when Err is nil.
	Matches []grammar.Match

	// Err, if non-nil, is returned as the error from Check.
	Err error

	// Texts records the text of every Check call.
	Texts []string

	// PingErr, if non-nil, is returned from Ping.
	PingErr error

	// Pings counts Ping calls.
	Pings int
}

// Ping records the call and returns PingErr.
func (c *Checker) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Pings++
	return c.PingErr
}

// Check records the call and returns Matches, Err.
func (c *Checker) Check(_ context.Context, text string) ([]grammar.Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Texts = append(c.Texts, text)
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]grammar.Match, len(c.Matches))
	copy(out, c.Matches)
	return out, nil
}

// CallCount returns the number of Check calls so far.
func (c *Checker) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Texts)
}

// Factory records the languages it was asked for and hands out Checker (or
// Err).
type Factory struct {
	mu sync.Mutex

	// Checker is returned for every language.
	Checker grammar.Checker

	// Err, if non-nil, is returned instead of Checker.
	Err error

	// Languages records every requested language in call order.
	Languages []string
}

// NewFactory returns a Factory that always hands out c.
func NewFactory(c grammar.Checker) *Factory {
	return &Factory{Checker: c}
}

// New implements grammar.Factory. Pass f.New where a grammar.Factory is
// expected.
func (f *Factory) New(language string) (grammar.Checker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Languages = append(f.Languages, language)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Checker, nil
}

// Requested returns a snapshot of the requested languages.
func (f *Factory) Requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Languages))
	copy(out, f.Languages)
	return out
}
