package dom

import (
    "bytes"
    "strings"
    "unicode/utf8"

    "github.com/PuerkitoBio/goquery"
    "golang.org/x/net/html"
)

// Parse builds a queryable document from a response body. The x/net/html
// parser is lenient and recovers from malformed markup, so an error here
// means the input could not be read at all.
func Parse(body []byte) (*goquery.Document, error) {
    node, err := html.Parse(bytes.NewReader(body))
    if err != nil {
        return nil, err
    }
    return goquery.NewDocumentFromNode(node), nil
}

// Text returns the visible text of every node in sel, with block-level
// boundaries turned into single spaces and whitespace runs collapsed.
func Text(sel *goquery.Selection) string {
    if sel == nil {
        return ""
    }
    var b strings.Builder
    for _, n := range sel.Nodes {
        collectText(&b, n)
        b.WriteByte(' ')
    }
    return collapseSpaces(strings.TrimSpace(b.String()))
}

// Len is the length of s in characters, not bytes.
func Len(s string) int { return utf8.RuneCountInString(s) }

func collectText(b *strings.Builder, n *html.Node) {
    switch n.Type {
    case html.TextNode:
        b.WriteString(n.Data)
        return
    case html.CommentNode, html.DoctypeNode:
        return
    case html.ElementNode:
        switch strings.ToLower(n.Data) {
        case "script", "style", "noscript", "template":
            return
        }
    }
    block := n.Type == html.ElementNode && isBlock(n.Data)
    if block {
        b.WriteByte(' ')
    }
    for c := n.FirstChild; c != nil; c = c.NextSibling {
        collectText(b, c)
    }
    if block {
        b.WriteByte(' ')
    }
}

func isBlock(tag string) bool {
    switch strings.ToLower(tag) {
    case "address", "article", "aside", "blockquote", "br", "dd", "div", "dl", "dt",
        "fieldset", "figcaption", "figure", "footer", "form", "h1", "h2", "h3", "h4",
        "h5", "h6", "header", "hr", "li", "main", "nav", "ol", "p", "pre", "section",
        "table", "td", "th", "tr", "ul":
        return true
    }
    return false
}

func collapseSpaces(s string) string {
    var b strings.Builder
    b.Grow(len(s))
    lastSpace := false
    for _, r := range s {
        if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\u00a0' {
            if !lastSpace {
                b.WriteByte(' ')
                lastSpace = true
            }
            continue
        }
        b.WriteRune(r)
        lastSpace = false
    }
    return b.String()
}

// Outermost drops every node that has an ancestor in the same selection, so
// that detaching the result removes each subtree exactly once.
func Outermost(sel *goquery.Selection) *goquery.Selection {
    if sel.Length() < 2 {
        return sel
    }
    set := make(map[*html.Node]struct{}, len(sel.Nodes))
    for _, n := range sel.Nodes {
        set[n] = struct{}{}
    }
    return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
        for p := s.Nodes[0].Parent; p != nil; p = p.Parent {
            if _, ok := set[p]; ok {
                return false
            }
        }
        return true
    })
}

// Detach removes the selected nodes from their parents. Victims are always
// collected before Detach is called, never while a traversal is running.
func Detach(sel *goquery.Selection) int {
    sel = Outermost(sel)
    n := sel.Length()
    sel.Remove()
    return n
}
