package search

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultCount is the number of results requested when the caller passes zero.
const DefaultCount = 15

// MaxQueryRunes caps the query length; longer input is truncated.
const MaxQueryRunes = 500

// Result represents a single search hit from any provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"description"`
	Source  string `json:"-"` // provider name for observability
}

// Response is a successful search.
type Response struct {
	Query      string    `json:"query"`
	Results    []Result  `json:"results"`
	TotalCount int       `json:"total_results"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source_provider"`
}

// Provider is the engine boundary. Exactly one of the returned values is
// non-nil; errors are always *Error.
type Provider interface {
	Search(ctx context.Context, query string, limit int) (*Response, error)
	Name() string
}

// SanitizeQuery trims the query and caps it at MaxQueryRunes. Blank input is
// an EmptyQuery error.
func SanitizeQuery(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", newError(EmptyQuery, nil)
	}
	if utf8.RuneCountInString(q) > MaxQueryRunes {
		q = strings.TrimSpace(string([]rune(q)[:MaxQueryRunes]))
	}
	return q, nil
}

// Outcome is the single-value form of a search result, convenient for
// rendering. Exactly one of Response and Error is set.
type Outcome struct {
	OK       bool      `json:"ok"`
	Response *Response `json:"response,omitempty"`
	Error    *Error    `json:"error,omitempty"`
}

// NewOutcome folds a Search return pair into an Outcome.
func NewOutcome(resp *Response, err error) Outcome {
	if err != nil {
		return Outcome{Error: AsError(err)}
	}
	if resp == nil {
		return Outcome{Error: newError(InternalError, nil)}
	}
	return Outcome{OK: true, Response: resp}
}
