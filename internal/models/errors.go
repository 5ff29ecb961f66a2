package models

import "errors"

// ErrorKind is the closed taxonomy of domain-error kinds a research session
// can fail or partially fail with (SPEC_FULL.md §7).
type ErrorKind string

const (
	KindUnknown             ErrorKind = "unknown"
	KindSearchProviderError ErrorKind = "search_provider_error"
	KindContentExtraction   ErrorKind = "content_extraction_error"
	KindLLMError            ErrorKind = "llm_error"
	KindBudgetExceeded      ErrorKind = "budget_exceeded"
	KindTimeoutExceeded     ErrorKind = "timeout_exceeded"
	KindInsufficientSources ErrorKind = "insufficient_sources"
	KindSessionFinalized    ErrorKind = "session_finalized"
)

// ErrEmptyQuery is returned by Request.Validate for a blank query. The
// orchestrator's Research turns it into an immediate Failed result with
// KindUnknown rather than propagating it as a Go error (SPEC_FULL.md §8:
// "Empty query -> immediate Failed"); ExecuteStream and StartInteractive
// return it as their error.
var ErrEmptyQuery = errors.New("models: query must not be empty")

// DomainError pairs a kind with the stage that produced it and an optional
// wrapped cause, matching the existing plain fmt.Errorf wrapping style
// rather than a custom error-chain library (DESIGN.md: no error-classification
// lib in the pack).
type DomainError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " in " + e.Stage
	}
	return string(e.Kind) + " in " + e.Stage + ": " + e.Err.Error()
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError constructs a DomainError, the shape every agent returns on
// a recoverable failure so the orchestrator can record it without losing the
// stage it happened in.
func NewDomainError(kind ErrorKind, stage string, cause error) *DomainError {
	return &DomainError{Kind: kind, Stage: stage, Err: cause}
}
