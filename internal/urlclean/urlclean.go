package urlclean

import (
	"net/url"
	"strings"
)

// Redirect describes a provider-internal redirect wrapper: links whose raw
// href begins with Prefix carry the real destination in query parameter Param.
type Redirect struct {
	Prefix string `yaml:"prefix" json:"prefix"`
	Param  string `yaml:"param" json:"param"`
}

// TrackingPrefixes are query parameter name prefixes that are always dropped.
var TrackingPrefixes = []string{"utm_", "ref_src", "gclid", "fbclid", "_ga", "_gl"}

// GoogleRedirect is the /url?q=<target> wrapper used on Google result pages.
var GoogleRedirect = Redirect{Prefix: "/url?", Param: "q"}

// Cleaner unwraps redirect links and strips tracking parameters. The zero
// value strips tracking parameters only.
type Cleaner struct {
	Redirects []Redirect
}

// Default handles Google redirect wrappers.
var Default = Cleaner{Redirects: []Redirect{GoogleRedirect}}

// Clean sanitizes raw with the Default cleaner.
func Clean(raw string) string { return Default.Clean(raw) }

// Clean never fails: anything it cannot decode or parse is passed through.
// Parameter order and the original encoding of kept parameters are preserved,
// which makes Clean idempotent.
func (c Cleaner) Clean(raw string) string {
	if raw == "" {
		return raw
	}
	target := raw
	// Each unwrap yields a strictly shorter string, so nesting terminates.
	for next := c.unwrap(target); next != target; next = c.unwrap(target) {
		target = next
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	if u.RawQuery != "" {
		u.RawQuery = stripTracking(u.RawQuery)
		u.ForceQuery = false
	}
	return u.String()
}

func (c Cleaner) unwrap(raw string) string {
	for _, r := range c.Redirects {
		if r.Prefix == "" || !strings.HasPrefix(raw, r.Prefix) {
			continue
		}
		i := strings.IndexByte(raw, '?')
		if i < 0 {
			return raw
		}
		q, err := url.ParseQuery(raw[i+1:])
		if err != nil {
			return raw
		}
		if v := q.Get(r.Param); v != "" {
			return v
		}
		return raw
	}
	return raw
}

func stripTracking(rawQuery string) string {
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		key := p
		if i := strings.IndexByte(p, '='); i >= 0 {
			key = p[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if isTracking(key) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}

func isTracking(key string) bool {
	for _, p := range TrackingPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// OwnedBy reports whether rawURL points at one of the given hosts or any of
// their subdomains. Relative URLs are never owned.
func OwnedBy(rawURL string, hosts []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimPrefix(h, "."))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// IsAbsoluteHTTP reports whether s is an absolute http(s) URL.
func IsAbsoluteHTTP(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Key returns the identity used to de-duplicate results: scheme and host are
// lowercased and the fragment is dropped. Unparseable input is its own key.
func Key(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
