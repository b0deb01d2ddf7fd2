// Package mock provides a test double for langid.Identifier.
package mock

import (
	"sync"

	"github.com/MrWong99/lingocoach/pkg/provider/langid"
)

var _ langid.Identifier = (*Identifier)(nil)

// Identifier is a mock implementation of langid.Identifier.
type Identifier struct {
	mu sync.Mutex

	// Code is returned by every Identify call. An empty Code returns
	// langid.Unknown.
	Code string

	// Texts records the text of every Identify call.
	Texts []string
}

// Identify records the call and returns Code.
func (m *Identifier) Identify(text string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, text)
	if m.Code == "" {
		return langid.Unknown
	}
	return m.Code
}

// CallCount returns the number of Identify calls so far.
func (m *Identifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Texts)
}
