package search

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/hyperifyio/gosearch/internal/extract"
	"github.com/hyperifyio/gosearch/internal/filter"
	"github.com/hyperifyio/gosearch/internal/urlclean"
)

// ExtractMode picks the extractor a provider's pages need.
type ExtractMode string

const (
	// ModeStrategies uses ordered container/title/snippet strategies.
	ModeStrategies ExtractMode = "strategies"
	// ModeLinks pairs marked result links with their snippet blocks.
	ModeLinks ExtractMode = "links"
)

// Markers are substrings looked for in raw bodies to explain a page that
// produced no results. Captcha markers match exactly; the rest ignore case.
type Markers struct {
	Captcha        []string `yaml:"captcha" json:"captcha"`
	Blocked        []string `yaml:"blocked" json:"blocked"`
	ScriptRequired []string `yaml:"scriptRequired" json:"scriptRequired"`
	NoMatch        []string `yaml:"noMatch" json:"noMatch"`
}

// ProviderConfig is everything provider-specific. It is built once at
// startup; clients keep a private deep copy.
type ProviderConfig struct {
	Name string `yaml:"name" json:"name"`
	// URLTemplate contains {query} (query-escaped) and {count}.
	URLTemplate string `yaml:"urlTemplate" json:"urlTemplate"`
	// AltURLTemplate is tried once when a page demands JavaScript.
	AltURLTemplate string            `yaml:"altUrlTemplate" json:"altUrlTemplate"`
	Headers        map[string]string `yaml:"headers" json:"headers"`
	Cookies        map[string]string `yaml:"cookies" json:"cookies"`
	OwnHosts       []string          `yaml:"ownHosts" json:"ownHosts"`
	Redirects      []urlclean.Redirect `yaml:"redirects" json:"redirects"`

	Filter  filter.Rules       `yaml:"filter" json:"filter"`
	Mode    ExtractMode        `yaml:"mode" json:"mode"`
	Extract extract.Config     `yaml:"extract" json:"extract"`
	Links   extract.LinkConfig `yaml:"links" json:"links"`
	Markers Markers            `yaml:"markers" json:"markers"`

	// UsesFallback lets the engine hand failed searches to the secondary provider.
	UsesFallback bool `yaml:"usesFallback" json:"usesFallback"`
}

// BuildURL fills tmpl with the escaped query and the result count.
func BuildURL(tmpl, query string, count int) string {
	return strings.NewReplacer(
		"{query}", url.QueryEscape(query),
		"{count}", strconv.Itoa(count),
	).Replace(tmpl)
}

// Extractor builds the extractor this provider's pages need.
func (p ProviderConfig) Extractor() extract.Extractor {
	cleaner := urlclean.Cleaner{Redirects: slices.Clone(p.Redirects)}
	if p.Mode == ModeLinks {
		cfg := p.Links
		cfg.OwnHosts = slices.Clone(p.OwnHosts)
		cfg.Cleaner = cleaner
		return extract.NewLinks(cfg)
	}
	cfg := p.Extract
	cfg.OwnHosts = slices.Clone(p.OwnHosts)
	cfg.Cleaner = cleaner
	return extract.NewStrategies(cfg)
}

// Clone returns a deep copy.
func (p ProviderConfig) Clone() ProviderConfig {
	c := p
	c.Headers = maps.Clone(p.Headers)
	c.Cookies = maps.Clone(p.Cookies)
	c.OwnHosts = slices.Clone(p.OwnHosts)
	c.Redirects = slices.Clone(p.Redirects)

	c.Filter.LogoMarkers = slices.Clone(p.Filter.LogoMarkers)
	c.Filter.LegalMarkers = slices.Clone(p.Filter.LegalMarkers)
	c.Filter.CarouselTexts = slices.Clone(p.Filter.CarouselTexts)
	c.Filter.LinkMarkers = slices.Clone(p.Filter.LinkMarkers)

	c.Extract.Containers = slices.Clone(p.Extract.Containers)
	c.Extract.Titles = slices.Clone(p.Extract.Titles)
	c.Extract.Snippets = slices.Clone(p.Extract.Snippets)
	c.Extract.OwnHosts = slices.Clone(p.Extract.OwnHosts)
	c.Links.OwnHosts = slices.Clone(p.Links.OwnHosts)

	c.Markers.Captcha = slices.Clone(p.Markers.Captcha)
	c.Markers.Blocked = slices.Clone(p.Markers.Blocked)
	c.Markers.ScriptRequired = slices.Clone(p.Markers.ScriptRequired)
	c.Markers.NoMatch = slices.Clone(p.Markers.NoMatch)
	return c
}

const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:75.0) Gecko/20100101 Firefox/75.0"

// GoogleProfile scrapes Google's basic-HTML result page.
func GoogleProfile() ProviderConfig {
	return ProviderConfig{
		Name:           "google",
		URLTemplate:    "https://www.google.com/search?gbv=1&num={count}&q={query}",
		AltURLTemplate: "https://www.google.com/search?q={query}&num={count}&hl=en&ie=UTF-8&oe=UTF-8&gbv=1&nfpr=1",
		Headers: map[string]string{
			"User-Agent":      firefoxUA,
			"Accept-Language": "en;q=1.0",
		},
		Cookies: map[string]string{
			"CONSENT": "PENDING+987",
			"SOCS":    "CAESHAgBEhIaAB",
		},
		OwnHosts:  []string{"google.com", "googleusercontent.com", "gstatic.com"},
		Redirects: []urlclean.Redirect{urlclean.GoogleRedirect},
		Filter: filter.Rules{
			LogoMarkers:      []string{"googlelogo", "google.com/images/branding"},
			AdLabel:          "span",
			Container:        "div",
			LegalMarkers:     []string{"privacy", "terms", "mumbai", "maharashtra"},
			LegalMaxLen:      200,
			CarouselClass:    "ezO2md",
			CarouselTexts:    []string{"Images", "View all"},
			LinkMarkers:      []string{"privacy", "terms"},
			LinkParentMaxLen: 100,
		},
		Mode: ModeStrategies,
		Extract: extract.Config{
			Containers:     []string{"div.g", "div[data-ved]", "div.Gx5Zad", "div.MjjYud", "div.tF2Cxc"},
			RedirectPrefix: urlclean.GoogleRedirect.Prefix,
			Titles:         []string{"h3", "h2", "[role=heading]"},
			Snippets:       []string{"div.VwiC3b", "span.aCOpRe", "div.BNeawe.s3v9rd", "div[data-sncf]"},
			AdLabel:        "span",
			MinTitleLen:    3,
			SnippetMinLen:  30,
			SnippetMaxLen:  500,
		},
		Markers: Markers{
			Captcha:        []string{"captcha-form"},
			Blocked:        []string{"unusual traffic", "automated queries", "/sorry/index"},
			ScriptRequired: []string{"/httpservice/retry/enablejs", "please click here if you are not redirected", "turn on javascript"},
			NoMatch:        []string{"did not match any documents", "no results found for"},
		},
		UsesFallback: true,
	}
}

// DuckDuckGoProfile scrapes DuckDuckGo's HTML endpoint. Its layout is flat
// enough for the links extractor.
func DuckDuckGoProfile() ProviderConfig {
	return ProviderConfig{
		Name:        "duckduckgo",
		URLTemplate: "https://html.duckduckgo.com/html/?q={query}",
		Headers: map[string]string{
			"User-Agent":      firefoxUA,
			"Accept-Language": "en-US,en;q=0.9",
		},
		OwnHosts: []string{"duckduckgo.com"},
		Redirects: []urlclean.Redirect{
			{Prefix: "//duckduckgo.com/l/?", Param: "uddg"},
			{Prefix: "https://duckduckgo.com/l/?", Param: "uddg"},
		},
		Mode: ModeLinks,
		Links: extract.LinkConfig{
			Link:    "a.result__a",
			Block:   ".result",
			Snippet: ".result__snippet",
			AdBlock: ".result--ad",
		},
		Markers: Markers{
			Captcha: []string{"anomaly-modal", "challenge-form"},
			Blocked: []string{"bots use duckduckgo too", "unusual traffic"},
			NoMatch: []string{"no results.", "no  results found"},
		},
	}
}

// Profile returns a built-in provider profile by name.
func Profile(name string) (ProviderConfig, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "google":
		return GoogleProfile(), true
	case "duckduckgo", "ddg":
		return DuckDuckGoProfile(), true
	}
	return ProviderConfig{}, false
}
