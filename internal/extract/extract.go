package extract

import (
    "strings"

    "github.com/PuerkitoBio/goquery"
    "github.com/rs/zerolog/log"
    "golang.org/x/net/html"

    "github.com/hyperifyio/gosearch/internal/adfilter"
    "github.com/hyperifyio/gosearch/internal/dom"
    "github.com/hyperifyio/gosearch/internal/urlclean"
)

// Config describes one provider's result layout. Selectors are CSS and are
// tried in order; the first that yields something wins.
type Config struct {
    // Containers locate result containers. When none match, every anchor
    // whose href starts with RedirectPrefix (or "http" when empty) is taken
    // and its parent used as the container.
    Containers     []string `yaml:"containers" json:"containers"`
    RedirectPrefix string   `yaml:"redirectPrefix" json:"redirectPrefix"`
    // Titles are heading selectors; the first link's text is the last resort.
    Titles []string `yaml:"titles" json:"titles"`
    // Snippets are known description selectors probed before the text scan.
    Snippets []string `yaml:"snippets" json:"snippets"`
    // AdLabel selects small label elements; a container holding one whose
    // text is an ad label is dropped.
    AdLabel string `yaml:"adLabel" json:"adLabel"`

    MinTitleLen   int `yaml:"minTitleLen" json:"minTitleLen"`
    SnippetMinLen int `yaml:"snippetMinLen" json:"snippetMinLen"`
    SnippetMaxLen int `yaml:"snippetMaxLen" json:"snippetMaxLen"`

    // OwnHosts are the provider's domains; results pointing there are dropped.
    OwnHosts []string         `yaml:"ownHosts" json:"ownHosts"`
    Cleaner  urlclean.Cleaner `yaml:"-" json:"-"`
}

// Strategy locates candidate result containers in a document.
type Strategy struct {
    Name string
    Find func(doc *goquery.Document) *goquery.Selection
}

// SelectorStrategy matches containers with a CSS selector.
func SelectorStrategy(selector string) Strategy {
    return Strategy{Name: selector, Find: func(doc *goquery.Document) *goquery.Selection {
        return doc.Find(selector)
    }}
}

// AnchorParentStrategy uses the parent of every anchor whose href starts with
// prefix as a container.
func AnchorParentStrategy(prefix string) Strategy {
    if prefix == "" {
        prefix = "http"
    }
    return Strategy{Name: "anchor-parent " + prefix, Find: func(doc *goquery.Document) *goquery.Selection {
        return doc.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
            href, _ := a.Attr("href")
            return strings.HasPrefix(href, prefix)
        }).Parent()
    }}
}

// field resolves one value from a container; ok is false when the strategy
// has nothing usable.
type field func(c *goquery.Selection) (string, bool)

// Strategies is the primary extractor: ordered container strategies and
// ordered field strategies per container.
type Strategies struct {
    cfg        Config
    containers []Strategy
    titles     []field
    urls       []field
}

// NewStrategies fills zero-valued limits with defaults and prepares the
// strategy lists. The result is read-only and safe for concurrent use.
func NewStrategies(cfg Config) *Strategies {
    if cfg.MinTitleLen <= 0 {
        cfg.MinTitleLen = 3
    }
    if cfg.SnippetMinLen <= 0 {
        cfg.SnippetMinLen = 30
    }
    if cfg.SnippetMaxLen <= 0 {
        cfg.SnippetMaxLen = 500
    }
    s := &Strategies{cfg: cfg}
    for _, sel := range cfg.Containers {
        s.containers = append(s.containers, SelectorStrategy(sel))
    }
    s.containers = append(s.containers, AnchorParentStrategy(cfg.RedirectPrefix))

    for _, sel := range cfg.Titles {
        s.titles = append(s.titles, s.headingTitle(sel))
    }
    s.titles = append(s.titles, s.linkTitle)

    s.urls = []field{s.titleAnchorURL, s.firstAnchorURL}
    return s
}

// Containers returns the candidate containers from the first strategy that
// matches anything, and that strategy's name.
func (s *Strategies) Containers(doc *goquery.Document) (*goquery.Selection, string) {
    for _, st := range s.containers {
        if sel := st.Find(doc); sel.Length() > 0 {
            return sel, st.Name
        }
    }
    return doc.Selection.Slice(0, 0), ""
}

// Extract implements Extractor.
func (s *Strategies) Extract(doc *goquery.Document) []Hit {
    if doc == nil {
        return nil
    }
    containers, strategy := s.Containers(doc)
    log.Debug().Str("strategy", strategy).Int("containers", containers.Length()).Msg("result containers")
    seen := map[string]struct{}{}
    out := make([]Hit, 0, containers.Length())
    containers.Each(func(i int, c *goquery.Selection) {
        h, ok := s.hit(i, c)
        if !ok {
            return
        }
        key := urlclean.Key(h.URL)
        if _, dup := seen[key]; dup {
            return
        }
        seen[key] = struct{}{}
        out = append(out, h)
    })
    return out
}

func (s *Strategies) hit(i int, c *goquery.Selection) (h Hit, ok bool) {
    defer func() {
        if r := recover(); r != nil {
            log.Debug().Int("container", i).Interface("panic", r).Msg("skipping unreadable container")
            h, ok = Hit{}, false
        }
    }()
    if hasAdLabel(c, s.cfg.AdLabel) {
        return Hit{}, false
    }
    title, ok := first(c, s.titles)
    if !ok {
        return Hit{}, false
    }
    link, ok := first(c, s.urls)
    if !ok {
        return Hit{}, false
    }
    desc := s.description(c, title)
    if adfilter.IsAdContent(title) || adfilter.IsAdContent(desc) {
        return Hit{}, false
    }
    return Hit{Title: title, URL: link, Description: desc}, true
}

func first(c *goquery.Selection, fields []field) (string, bool) {
    for _, f := range fields {
        if v, ok := f(c); ok {
            return v, true
        }
    }
    return "", false
}

func (s *Strategies) usableTitle(t string) bool {
    return dom.Len(t) >= s.cfg.MinTitleLen
}

func (s *Strategies) headingTitle(selector string) field {
    return func(c *goquery.Selection) (string, bool) {
        var title string
        c.Find(selector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
            if t := dom.Text(h); s.usableTitle(t) {
                title = t
                return false
            }
            return true
        })
        return title, title != ""
    }
}

func (s *Strategies) linkTitle(c *goquery.Selection) (string, bool) {
    t := dom.Text(c.Find("a[href]").First())
    return t, s.usableTitle(t)
}

// titleAnchorURL prefers the link that wraps or sits inside a title heading.
func (s *Strategies) titleAnchorURL(c *goquery.Selection) (string, bool) {
    for _, sel := range s.cfg.Titles {
        var link string
        c.Find(sel).EachWithBreak(func(_ int, h *goquery.Selection) bool {
            anchors := h.ParentsUntilSelection(c).Filter("a[href]").AddSelection(h.Find("a[href]"))
            anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
                if u, ok := s.acceptHref(a); ok {
                    link = u
                    return false
                }
                return true
            })
            return link == ""
        })
        if link != "" {
            return link, true
        }
    }
    return "", false
}

func (s *Strategies) firstAnchorURL(c *goquery.Selection) (string, bool) {
    var link string
    c.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
        if u, ok := s.acceptHref(a); ok {
            link = u
            return false
        }
        return true
    })
    return link, link != ""
}

func (s *Strategies) acceptHref(a *goquery.Selection) (string, bool) {
    href, _ := a.Attr("href")
    return AcceptURL(href, s.cfg.Cleaner, s.cfg.OwnHosts)
}

// AcceptURL sanitizes href and reports whether it is a usable result link:
// absolute http(s), not a fragment, and not on one of ownHosts.
func AcceptURL(href string, cleaner urlclean.Cleaner, ownHosts []string) (string, bool) {
    href = strings.TrimSpace(href)
    if href == "" || strings.HasPrefix(href, "#") {
        return "", false
    }
    u := cleaner.Clean(href)
    if u == "" || strings.HasPrefix(u, "#") || !urlclean.IsAbsoluteHTTP(u) {
        return "", false
    }
    if urlclean.OwnedBy(u, ownHosts) {
        return "", false
    }
    return u, true
}

func (s *Strategies) description(c *goquery.Selection, title string) string {
    for _, sel := range s.cfg.Snippets {
        var desc string
        c.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
            if t := dom.Text(el); t != "" && !adfilter.IsAdContent(t) && !sameText(t, title) {
                desc = t
                return false
            }
            return true
        })
        if desc != "" {
            return desc
        }
    }
    var desc string
    c.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
        if !hasText(el.Nodes[0]) || el.ParentsUntilSelection(c).Filter("a").Length() > 0 {
            return true
        }
        t := dom.Text(el)
        n := dom.Len(t)
        if n < s.cfg.SnippetMinLen || n > s.cfg.SnippetMaxLen {
            return true
        }
        if adfilter.IsAdContent(t) || overlaps(t, title) {
            return true
        }
        desc = t
        return false
    })
    return desc
}

func hasAdLabel(c *goquery.Selection, selector string) bool {
    if selector == "" {
        return false
    }
    found := false
    c.Find(selector).EachWithBreak(func(_ int, l *goquery.Selection) bool {
        found = adfilter.IsAdContent(dom.Text(l))
        return !found
    })
    return found
}

// hasText skips elements that cannot carry a snippet.
func hasText(n *html.Node) bool {
    switch strings.ToLower(n.Data) {
    case "script", "style", "noscript", "img", "svg", "input", "button", "select", "a":
        return false
    }
    return true
}

func sameText(a, b string) bool {
    return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// overlaps reports whether either text contains the other, ignoring case.
func overlaps(text, title string) bool {
    lt, ltitle := strings.ToLower(text), strings.ToLower(title)
    return strings.Contains(lt, ltitle) || strings.Contains(ltitle, lt)
}
