package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosearch/internal/fetch"
)

// SearxNG implements Provider against a SearxNG instance's JSON /search
// endpoint. It makes a single attempt; callers wanting retries put it behind
// a Fallback.
type SearxNG struct {
	BaseURL    string
	APIKey     string // optional
	HTTPClient *http.Client
	UserAgent  string // optional custom UA
	Now        func() time.Time
}

func (s *SearxNG) Name() string { return "searxng" }

func (s *SearxNG) Search(ctx context.Context, query string, limit int) (*Response, error) {
	q, err := SanitizeQuery(query)
	if err != nil {
		return nil, s.fail(AsError(err))
	}
	if limit <= 0 {
		limit = DefaultCount
	}
	if s.BaseURL == "" {
		return nil, s.fail(newError(InternalError, fmt.Errorf("missing searxng base url")))
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, s.fail(newError(InternalError, err))
	}
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	v := u.Query()
	v.Set("q", q)
	v.Set("format", "json")
	v.Set("language", "auto")
	v.Set("safesearch", "1")
	v.Set("categories", "general")
	v.Set("count", fmt.Sprintf("%d", limit))
	if s.APIKey != "" {
		v.Set("apikey", s.APIKey)
	}
	u.RawQuery = v.Encode()

	headers := map[string]string{"Accept": "application/json"}
	if s.UserAgent != "" {
		headers["User-Agent"] = s.UserAgent
	}
	fc := &fetch.Client{HTTPClient: s.HTTPClient, PerRequestTimeout: defaultTimeout}
	res, err := fc.Get(ctx, fetch.Request{URL: u.String(), Headers: headers})
	switch {
	case err != nil && errors.Is(err, fetch.ErrInvalidRequest):
		return nil, s.fail(newError(InternalError, err))
	case err != nil && fetch.IsTimeout(err):
		return nil, s.fail(newError(Timeout, err))
	case err != nil:
		return nil, s.fail(newError(NetworkError, err))
	case !res.OK():
		return nil, s.fail(newError(ProviderUnavailable, fmt.Errorf("searxng status: %d", res.StatusCode)))
	}

	var sr searxResponse
	if err := json.Unmarshal(res.Body, &sr); err != nil {
		e := newError(CorruptedResponse, err)
		e.Detail = excerpt(res.Body)
		return nil, s.fail(e)
	}
	out := make([]Result, 0, len(sr.Results))
	for _, r := range sr.Results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(r.Title),
			URL:     strings.TrimSpace(r.URL),
			Snippet: strings.TrimSpace(r.Content),
			Source:  s.Name(),
		})
		if len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, s.fail(newError(NoMatch, nil))
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return &Response{Query: q, Results: out, TotalCount: len(out), Timestamp: now().UTC(), Source: s.Name()}, nil
}

func (s *SearxNG) fail(e *Error) *Error {
	e.Provider = s.Name()
	log.Warn().Str("provider", s.Name()).Str("kind", e.Kind.String()).Err(e.Err).Msg("search failed")
	return e
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}
