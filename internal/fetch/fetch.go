package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// ErrInvalidRequest marks failures that happen before anything is sent, such
// as a malformed URL or a non-HTTP scheme. Retrying them is pointless.
var ErrInvalidRequest = errors.New("invalid request")

// Request is one outbound GET with a fixed header and cookie set.
type Request struct {
	URL     string
	Headers map[string]string
	Cookies map[string]string
}

// Response is a fully read response. Non-2xx statuses are not errors; the
// caller classifies them.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode <= 299 }

// Client issues single bounded GET requests. It holds no per-request state
// and is safe for concurrent use when HTTPClient is.
type Client struct {
	HTTPClient *http.Client
	// PerRequestTimeout bounds each request including reading the body.
	PerRequestTimeout time.Duration
	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxBodyBytes caps how much of a body is read. Zero means default (4 MiB).
	MaxBodyBytes int64
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

// Get performs one attempt. Cancellation of ctx or expiry of the per-request
// timeout aborts only this request.
func (c *Client) Get(ctx context.Context, r Request) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	// Reject non-HTTP(S) schemes early
	if !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("%w: unsupported URL scheme: %q", ErrInvalidRequest, req.URL.String())
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	for name, value := range r.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = 4 << 20
	}
	var body io.Reader = io.LimitReader(resp.Body, limit)
	if decoded, err := charset.NewReader(body, contentType); err == nil {
		body = decoded
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, ContentType: contentType, Body: b}, nil
}

// IsTimeout reports whether err came from a deadline: the per-request timeout,
// a dial or TLS timeout, or an expired caller context.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
