// Command debugsearch runs the filter and extraction stages over a saved
// result page, printing what each stage did. It never touches the network.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosearch/internal/dom"
	"github.com/hyperifyio/gosearch/internal/extract"
	"github.com/hyperifyio/gosearch/internal/filter"
	"github.com/hyperifyio/gosearch/internal/search"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	provider := flag.String("provider", "google", "Profile whose rules to apply (google or duckduckgo)")
	lenient := flag.Bool("lenient", false, "Remove scripts only instead of applying the profile's filter rules")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: debugsearch [-provider name] [-lenient] <page.html>")
		os.Exit(1)
	}
	body, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("read page")
	}
	if err := inspect(os.Stdout, *provider, body, *lenient); err != nil {
		log.Fatal().Err(err).Msg("inspect")
	}
}

func inspect(out io.Writer, provider string, body []byte, lenient bool) error {
	p, ok := search.Profile(provider)
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	doc, err := dom.Parse(body)
	if err != nil {
		return err
	}
	rules := p.Filter
	if lenient {
		rules = filter.Lenient()
	}
	rep := filter.Apply(doc, rules)
	fmt.Fprintf(out, "filter: scripts=%d logos=%d ads=%d legal=%d carousels=%d legal_links=%d\n",
		rep.Scripts, rep.Logos, rep.Ads, rep.Legal, rep.Carousels, rep.LegalLinks)

	ex := p.Extractor()
	if s, ok := ex.(*extract.Strategies); ok {
		sel, name := s.Containers(doc)
		fmt.Fprintf(out, "containers: strategy=%q matched=%d\n", name, sel.Length())
	}
	hits := ex.Extract(doc)
	fmt.Fprintf(out, "results: %d\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(out, "%d. %s\n   %s\n   %s\n", i+1, h.Title, h.URL, h.Description)
	}
	return nil
}
