// Package request loads and manipulates completion request documents.
// A request is an opaque JSON object taken verbatim from an input JSONL
// file; the benchmark only interprets a handful of well-known fields.
package request

// Request is one completion request document. It is read-only once
// loaded and serializes back to exactly the document it was parsed from.
type Request map[string]any

// Stream reports the request's streaming flag. Requests without an
// explicit flag default to streaming, matching typical benchmark inputs.
func (r Request) Stream() bool {
	v, ok := r["stream"]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	if !ok {
		return true
	}
	return b
}

// Prompt returns the request's prompt text, if present.
func (r Request) Prompt() (string, bool) {
	s, ok := r["prompt"].(string)
	return s, ok
}

// MaxTokens returns the request's max_tokens value, if present.
func (r Request) MaxTokens() (int, bool) {
	f, ok := r["max_tokens"].(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}
