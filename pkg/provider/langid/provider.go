// Package langid defines the interface for written-language identification.
//
// Identification never fails from the caller's point of view: an
// [Identifier] returns [Unknown] when the text is empty, too short to decide,
// or the backend misbehaves.
package langid

// Unknown is returned when no language can be identified.
const Unknown = "unknown"

// Identifier guesses the language a piece of text is written in.
//
// Implementations must be safe for concurrent use.
type Identifier interface {
	// Identify returns the lower-case ISO 639-1 code of the most likely
	// language of text (for example "en" or "de"), or [Unknown].
	Identify(text string) string
}

// IdentifierFunc adapts a plain function to the [Identifier] interface.
type IdentifierFunc func(text string) string

// Identify calls f(text).
func (f IdentifierFunc) Identify(text string) string { return f(text) }
