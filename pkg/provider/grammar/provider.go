// Package grammar defines the Checker interface for grammar-checking
// backends.
//
// A checker is bound to one language at construction time; callers that need
// several languages build one checker per language through a [Factory] and
// keep them for reuse. Implementations must be safe for concurrent use.
package grammar

import "context"

// DefaultRule is the rule identifier used when the backend reports none.
const DefaultRule = "RULE"

// Match is one issue flagged by a grammar checker.
type Match struct {
	// Rule is the backend's identifier of the rule that fired
	// (e.g., "HE_VERB_AGR").
	Rule string `json:"rule"`

	// Message is the human-readable description of the issue.
	Message string `json:"message"`

	// Context is the snippet of text surrounding the issue.
	Context string `json:"context"`
}

// Checker is the abstraction over any grammar-checking backend.
type Checker interface {
	// Check returns every issue found in text, in backend order. An empty
	// result with a nil error means no issues were flagged.
	Check(ctx context.Context, text string) ([]Match, error)
}

// Pinger is implemented by checkers that can test backend reachability
// without checking any text.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Factory constructs a Checker for the given backend language code
// (e.g., "en-US", "de-DE").
type Factory func(language string) (Checker, error)
