package extract

import "github.com/PuerkitoBio/goquery"

// Hit is one organic result pulled out of a result page.
type Hit struct {
    Title       string
    URL         string
    Description string
}

// Extractor defines a minimal interface for result extraction strategies.
// Implementations can swap provider layouts without changing callers.
type Extractor interface {
    // Extract returns hits in page order. It never fails; containers that
    // cannot be read are skipped.
    Extract(doc *goquery.Document) []Hit
}
