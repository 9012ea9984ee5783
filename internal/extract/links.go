package extract

import (
    "github.com/PuerkitoBio/goquery"

    "github.com/hyperifyio/gosearch/internal/adfilter"
    "github.com/hyperifyio/gosearch/internal/dom"
    "github.com/hyperifyio/gosearch/internal/urlclean"
)

// LinkConfig describes a flat layout where each result is a marked link and
// its snippet lives in the enclosing result block.
type LinkConfig struct {
    Link    string `yaml:"link" json:"link"`
    Block   string `yaml:"block" json:"block"`
    Snippet string `yaml:"snippet" json:"snippet"`
    // AdBlock marks sponsored result blocks.
    AdBlock  string           `yaml:"adBlock" json:"adBlock"`
    OwnHosts []string         `yaml:"ownHosts" json:"ownHosts"`
    Cleaner  urlclean.Cleaner `yaml:"-" json:"-"`
}

// Links is the simpler extractor used for fallback providers.
type Links struct {
    cfg LinkConfig
}

func NewLinks(cfg LinkConfig) *Links { return &Links{cfg: cfg} }

// Extract implements Extractor.
func (l *Links) Extract(doc *goquery.Document) []Hit {
    if doc == nil || l.cfg.Link == "" {
        return nil
    }
    seen := map[string]struct{}{}
    var out []Hit
    doc.Find(l.cfg.Link).Each(func(_ int, a *goquery.Selection) {
        block := a.Closest(l.cfg.Block)
        if l.cfg.AdBlock != "" && a.Closest(l.cfg.AdBlock).Length() > 0 {
            return
        }
        title := dom.Text(a)
        if dom.Len(title) < 3 {
            return
        }
        href, _ := a.Attr("href")
        link, ok := AcceptURL(href, l.cfg.Cleaner, l.cfg.OwnHosts)
        if !ok {
            return
        }
        var desc string
        if l.cfg.Block != "" && l.cfg.Snippet != "" {
            desc = dom.Text(block.Find(l.cfg.Snippet).First())
        }
        if adfilter.IsAdContent(title) || adfilter.IsAdContent(desc) {
            return
        }
        key := urlclean.Key(link)
        if _, dup := seen[key]; dup {
            return
        }
        seen[key] = struct{}{}
        out = append(out, Hit{Title: title, URL: link, Description: desc})
    })
    return out
}
