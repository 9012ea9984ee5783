package search

import (
	"encoding/json"
	"errors"
)

// ErrorKind classifies why a search failed.
type ErrorKind int

const (
	InternalError ErrorKind = iota
	EmptyQuery
	Blocked
	ProviderUnavailable
	Timeout
	NetworkError
	ScriptingRequired
	NoMatch
	CorruptedResponse
	ExtractionFailed
)

var kindNames = map[ErrorKind]string{
	InternalError:       "internal_error",
	EmptyQuery:          "empty_query",
	Blocked:             "blocked",
	ProviderUnavailable: "provider_unavailable",
	Timeout:             "timeout",
	NetworkError:        "network_error",
	ScriptingRequired:   "scripting_required",
	NoMatch:             "no_match",
	CorruptedResponse:   "corrupted_response",
	ExtractionFailed:    "extraction_failed",
}

var kindMessages = map[ErrorKind]string{
	InternalError:       "Search processing failed",
	EmptyQuery:          "Query cannot be empty",
	Blocked:             "Search temporarily blocked. Please try again later.",
	ProviderUnavailable: "Search service unavailable",
	Timeout:             "Search request timed out",
	NetworkError:        "Network error occurred",
	ScriptingRequired:   "Search provider requires JavaScript",
	NoMatch:             "No results found",
	CorruptedResponse:   "Search provider returned a corrupted response",
	ExtractionFailed:    "Could not read results from the search provider",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[InternalError]
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// IsProviderSpecific reports whether a failure of this kind might not happen
// with a different provider, which makes it worth falling back.
func IsProviderSpecific(k ErrorKind) bool {
	switch k {
	case Blocked, ScriptingRequired, ProviderUnavailable, NetworkError, Timeout, ExtractionFailed:
		return true
	}
	return false
}

// Error is the only error type returned across the engine boundary. Error()
// is the human-readable message; the low-level cause stays in Err and Detail
// for logs.
type Error struct {
	Kind     ErrorKind
	Message  string
	Provider string
	// Detail carries diagnostics such as a response excerpt.
	Detail string
	Err    error
}

func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Message: kindMessages[kind], Err: cause}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return kindMessages[e.Kind]
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     ErrorKind `json:"kind"`
		Message  string    `json:"message"`
		Provider string    `json:"provider,omitempty"`
	}{e.Kind, e.Error(), e.Provider})
}

// AsError returns err as *Error, wrapping foreign errors as InternalError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return newError(InternalError, err)
}

// KindOf returns the kind of err; foreign errors and nil are InternalError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return InternalError
	}
	return AsError(err).Kind
}
