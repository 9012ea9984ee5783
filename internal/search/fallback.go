package search

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Fallback sends a query to Primary and, when that fails in a way a
// different provider might not, to Secondary.
type Fallback struct {
	Primary   Provider
	Secondary Provider
	Enabled   bool
}

// NewFallback wires two providers. A nil secondary disables fallback.
func NewFallback(primary, secondary Provider, enabled bool) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary, Enabled: enabled && secondary != nil}
}

func (f *Fallback) Name() string { return f.Primary.Name() }

func (f *Fallback) Search(ctx context.Context, query string, limit int) (*Response, error) {
	resp, err := f.Primary.Search(ctx, query, limit)
	if err == nil {
		return resp, nil
	}
	perr := AsError(err)
	if !f.shouldFallBack(perr) {
		return nil, perr
	}

	log.Info().
		Str("primary", f.Primary.Name()).
		Str("secondary", f.Secondary.Name()).
		Str("kind", perr.Kind.String()).
		Msg("primary provider failed, falling back")
	resp, err = f.Secondary.Search(ctx, query, limit)
	if err == nil {
		if resp.Source == "" {
			resp.Source = f.Secondary.Name()
		}
		return resp, nil
	}
	serr := AsError(err)
	log.Warn().Str("secondary", f.Secondary.Name()).Str("kind", serr.Kind.String()).Msg("fallback provider failed")
	// A clean "no match" from the secondary is more informative than the
	// primary's provider-specific failure.
	if serr.Kind == NoMatch {
		return nil, serr
	}
	return nil, perr
}

func (f *Fallback) shouldFallBack(e *Error) bool {
	if !f.Enabled || f.Secondary == nil || !IsProviderSpecific(e.Kind) {
		return false
	}
	if p, ok := f.Primary.(interface{ UsesFallback() bool }); ok {
		return p.UsesFallback()
	}
	return true
}
