package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosearch/internal/adfilter"
	"github.com/hyperifyio/gosearch/internal/dom"
	"github.com/hyperifyio/gosearch/internal/extract"
	"github.com/hyperifyio/gosearch/internal/fetch"
	"github.com/hyperifyio/gosearch/internal/filter"
)

const (
	defaultMaxAttempts  = 3
	defaultBaseDelay    = time.Second
	defaultTimeoutDelay = time.Second
	defaultTimeout      = 10 * time.Second
	// MaxBackoff caps any single wait between attempts.
	MaxBackoff = 30 * time.Second

	// Bodies shorter than this that yield nothing are treated as truncated.
	minBodyBytes = 500
	// This many undecodable runes marks a body as garbage.
	maxBadRunes = 10
	excerptLen  = 200
)

// Client scrapes one HTML search provider. It keeps no mutable state between
// calls, so a single Client may serve concurrent searches.
type Client struct {
	cfg       ProviderConfig
	extractor extract.Extractor
	fetcher   *fetch.Client

	maxAttempts  int
	baseDelay    time.Duration
	timeoutDelay time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the transport used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.fetcher.HTTPClient = hc }
}

// WithMaxAttempts bounds the number of fetch attempts per search.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the exponential base delay used after transport and status
// failures, and the fixed delay used after timeouts.
func WithBackoff(base, afterTimeout time.Duration) Option {
	return func(c *Client) {
		if base >= 0 {
			c.baseDelay = base
		}
		if afterTimeout >= 0 {
			c.timeoutDelay = afterTimeout
		}
	}
}

// WithTimeout bounds each individual request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fetcher.PerRequestTimeout = d
		}
	}
}

// WithSleep replaces the wait between attempts. The function must return
// early with ctx.Err() when ctx is done.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithClock replaces the clock used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a client for one provider profile.
func NewClient(cfg ProviderConfig, opts ...Option) *Client {
	cfg = cfg.Clone()
	c := &Client{
		cfg:          cfg,
		extractor:    cfg.Extractor(),
		fetcher:      &fetch.Client{PerRequestTimeout: defaultTimeout},
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		timeoutDelay: defaultTimeoutDelay,
		sleep:        sleepContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.cfg.Name }

// UsesFallback reports whether this provider's failures may be handed to a
// secondary provider.
func (c *Client) UsesFallback() bool { return c.cfg.UsesFallback }

// Search runs the query against the provider, retrying transient failures.
func (c *Client) Search(ctx context.Context, query string, limit int) (resp *Response, err error) {
	q, err := SanitizeQuery(query)
	if err != nil {
		return nil, c.tag(AsError(err))
	}
	if limit <= 0 {
		limit = DefaultCount
	}
	logger := log.With().Str("provider", c.cfg.Name).Str("query", q).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("search panicked")
			e := newError(InternalError, nil)
			e.Detail = fmt.Sprint(r)
			resp, err = nil, c.tag(e)
		}
	}()

	target := BuildURL(c.cfg.URLTemplate, q, limit)
	var last *Error
	var delay time.Duration
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, delay); err != nil {
				logger.Debug().Err(err).Msg("retry wait interrupted")
				break
			}
		}
		l := logger.With().Int("attempt", attempt).Logger()
		l.Info().Msg("searching")

		res, err := c.fetcher.Get(ctx, c.request(target))
		switch {
		case err != nil && errors.Is(err, fetch.ErrInvalidRequest):
			l.Error().Err(err).Msg("request rejected before sending")
			return nil, c.tag(newError(InternalError, err))
		case err != nil && fetch.IsTimeout(err):
			l.Warn().Err(err).Msg("search timed out")
			last, delay = newError(Timeout, err), min(c.timeoutDelay, MaxBackoff)
			continue
		case err != nil:
			l.Error().Err(err).Msg("search request failed")
			last, delay = newError(NetworkError, err), c.backoff(attempt)
			continue
		}
		if containsAny(res.Body, c.cfg.Markers.Captcha) {
			l.Warn().Msg("captcha detected")
			return nil, c.tag(newError(Blocked, nil))
		}
		if !res.OK() {
			l.Warn().Int("status", res.StatusCode).Msg("unexpected HTTP status")
			last = newError(ProviderUnavailable, fmt.Errorf("HTTP %d", res.StatusCode))
			delay = c.backoff(attempt)
			continue
		}

		results, perr := c.parse(res.Body, limit, l)
		if perr != nil && perr.Kind == ScriptingRequired && c.cfg.AltURLTemplate != "" {
			results, perr = c.alternate(ctx, q, limit, l)
		}
		if perr != nil {
			return nil, c.tag(perr)
		}
		return &Response{
			Query:      q,
			Results:    results,
			TotalCount: len(results),
			Timestamp:  c.now().UTC(),
			Source:     c.cfg.Name,
		}, nil
	}
	if last == nil {
		last = newError(InternalError, ctx.Err())
	}
	logger.Warn().Str("kind", last.Kind.String()).Msg("search failed after retries")
	return nil, c.tag(last)
}

// alternate retries once with the alternate URL after a JavaScript wall.
func (c *Client) alternate(ctx context.Context, q string, limit int, l zerolog.Logger) ([]Result, *Error) {
	l.Info().Msg("retrying with alternate URL")
	res, err := c.fetcher.Get(ctx, c.request(BuildURL(c.cfg.AltURLTemplate, q, limit)))
	if err != nil || !res.OK() || containsAny(res.Body, c.cfg.Markers.Captcha) {
		e := newError(ScriptingRequired, err)
		return nil, e
	}
	return c.parse(res.Body, limit, l)
}

func (c *Client) request(target string) fetch.Request {
	return fetch.Request{URL: target, Headers: c.cfg.Headers, Cookies: c.cfg.Cookies}
}

// parse filters and extracts a 2xx body. When nothing comes out it retries
// with scripts-only filtering, then explains the empty page.
func (c *Client) parse(body []byte, limit int, l zerolog.Logger) ([]Result, *Error) {
	hits, err := c.extractWith(body, c.cfg.Filter)
	if err != nil {
		l.Error().Err(err).Msg("parse failed")
		return nil, newError(CorruptedResponse, err)
	}
	if len(hits) == 0 {
		l.Debug().Msg("no results after filtering, retrying leniently")
		if hits, err = c.extractWith(body, filter.Lenient()); err != nil {
			return nil, newError(CorruptedResponse, err)
		}
	}
	if len(hits) == 0 {
		e := c.diagnose(body)
		l.Warn().Str("kind", e.Kind.String()).Int("bytes", len(body)).Msg("no results extracted")
		return nil, e
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{Title: h.Title, URL: h.URL, Snippet: h.Description, Source: c.cfg.Name}
	}
	return out, nil
}

func (c *Client) extractWith(body []byte, rules filter.Rules) ([]extract.Hit, error) {
	doc, err := dom.Parse(body)
	if err != nil {
		return nil, err
	}
	filter.Apply(doc, rules)
	return c.extractor.Extract(doc), nil
}

// diagnose explains a 2xx page that yielded no results.
func (c *Client) diagnose(body []byte) *Error {
	m := c.cfg.Markers
	text := string(body)
	switch {
	case adfilter.ContainsAnyFold(text, m.Blocked):
		return newError(Blocked, nil)
	case adfilter.ContainsAnyFold(text, m.ScriptRequired):
		return newError(ScriptingRequired, nil)
	case adfilter.ContainsAnyFold(text, m.NoMatch):
		return newError(NoMatch, nil)
	case len(body) < minBodyBytes || badRunes(body) >= maxBadRunes:
		e := newError(CorruptedResponse, nil)
		e.Detail = excerpt(body)
		return e
	}
	e := newError(ExtractionFailed, nil)
	e.Detail = excerpt(body)
	return e
}

// tag stamps the provider name on outgoing errors.
func (c *Client) tag(e *Error) *Error {
	if e.Provider == "" {
		e.Provider = c.cfg.Name
	}
	return e
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseDelay
	for i := 1; i < attempt && d < MaxBackoff; i++ {
		d <<= 1
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func containsAny(body []byte, markers []string) bool {
	for _, m := range markers {
		if m != "" && bytes.Contains(body, []byte(m)) {
			return true
		}
	}
	return false
}

func badRunes(b []byte) int {
	n := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError {
			n++
		}
		b = b[size:]
	}
	return n
}

func excerpt(body []byte) string {
	s := strings.ToValidUTF8(string(body), "")
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > excerptLen {
		s = string(r[:excerptLen])
	}
	return s
}
