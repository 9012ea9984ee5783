// Package filter strips scripts, branding, ads and legal boilerplate from a
// parsed result page before extraction.
package filter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosearch/internal/adfilter"
	"github.com/hyperifyio/gosearch/internal/dom"
)

// Rules configures the removal passes. Empty fields disable the pass they
// drive; scripts are always removed.
type Rules struct {
	// LogoMarkers are substrings of <img src> that identify provider branding.
	LogoMarkers []string `yaml:"logoMarkers" json:"logoMarkers"`
	// AdLabel selects the elements whose text is checked against the ad
	// keyword table. Any Container holding one is removed.
	AdLabel   string `yaml:"adLabel" json:"adLabel"`
	Container string `yaml:"container" json:"container"`
	// LegalMarkers remove containers shorter than LegalMaxLen that mention them.
	LegalMarkers []string `yaml:"legalMarkers" json:"legalMarkers"`
	LegalMaxLen  int      `yaml:"legalMaxLen" json:"legalMaxLen"`
	// CarouselClass marks image carousels; they are removed when their text
	// contains every one of CarouselTexts.
	CarouselClass string   `yaml:"carouselClass" json:"carouselClass"`
	CarouselTexts []string `yaml:"carouselTexts" json:"carouselTexts"`
	// LinkMarkers remove a link's parent when the link text mentions one and
	// the parent's text is shorter than LinkParentMaxLen.
	LinkMarkers      []string `yaml:"linkMarkers" json:"linkMarkers"`
	LinkParentMaxLen int      `yaml:"linkParentMaxLen" json:"linkParentMaxLen"`
}

// Lenient removes scripts only.
func Lenient() Rules { return Rules{} }

// Report counts the subtrees each pass removed.
type Report struct {
	Scripts    int
	Logos      int
	Ads        int
	Legal      int
	Carousels  int
	LegalLinks int
}

// Total is the number of removed subtrees across all passes.
func (r Report) Total() int {
	return r.Scripts + r.Logos + r.Ads + r.Legal + r.Carousels + r.LegalLinks
}

// Apply runs the passes in order on doc, mutating it. A pass that panics is
// logged and skipped; later passes still run.
func Apply(doc *goquery.Document, rules Rules) Report {
	var rep Report
	if doc == nil {
		return rep
	}
	root := doc.Selection
	rep.Scripts = guard("scripts", func() int { return dom.Detach(root.Find("script")) })
	rep.Logos = guard("logos", func() int { return removeLogos(root, rules) })
	rep.Ads = guard("ads", func() int { return removeAdContainers(root, rules) })
	rep.Legal = guard("legal", func() int { return removeLegal(root, rules) })
	rep.Carousels = guard("carousels", func() int { return removeCarousels(root, rules) })
	rep.LegalLinks = guard("legal-links", func() int { return removeLegalLinks(root, rules) })
	log.Debug().
		Int("scripts", rep.Scripts).
		Int("logos", rep.Logos).
		Int("ads", rep.Ads).
		Int("legal", rep.Legal).
		Int("carousels", rep.Carousels).
		Int("legal_links", rep.LegalLinks).
		Msg("filtered result page")
	return rep
}

func guard(pass string, fn func() int) (n int) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("pass", pass).Interface("panic", r).Msg("filter pass failed")
			n = 0
		}
	}()
	return fn()
}

func removeLogos(root *goquery.Selection, rules Rules) int {
	if len(rules.LogoMarkers) == 0 {
		return 0
	}
	victims := root.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		for _, m := range rules.LogoMarkers {
			if m != "" && strings.Contains(src, m) {
				return true
			}
		}
		return false
	})
	return dom.Detach(victims)
}

func removeAdContainers(root *goquery.Selection, rules Rules) int {
	if rules.AdLabel == "" || rules.Container == "" {
		return 0
	}
	victims := root.Find(rules.Container).FilterFunction(func(_ int, s *goquery.Selection) bool {
		found := false
		s.Find(rules.AdLabel).EachWithBreak(func(_ int, label *goquery.Selection) bool {
			found = adfilter.IsAdContent(dom.Text(label))
			return !found
		})
		return found
	})
	return dom.Detach(victims)
}

func removeLegal(root *goquery.Selection, rules Rules) int {
	if len(rules.LegalMarkers) == 0 || rules.LegalMaxLen <= 0 || rules.Container == "" {
		return 0
	}
	victims := root.Find(rules.Container).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return adfilter.IsBoilerplate(dom.Text(s), rules.LegalMarkers, rules.LegalMaxLen)
	})
	return dom.Detach(victims)
}

func removeCarousels(root *goquery.Selection, rules Rules) int {
	if rules.CarouselClass == "" || len(rules.CarouselTexts) == 0 {
		return 0
	}
	victims := root.Find("." + rules.CarouselClass).FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := dom.Text(s)
		for _, want := range rules.CarouselTexts {
			if !strings.Contains(text, want) {
				return false
			}
		}
		return true
	})
	return dom.Detach(victims)
}

func removeLegalLinks(root *goquery.Selection, rules Rules) int {
	if len(rules.LinkMarkers) == 0 || rules.LinkParentMaxLen <= 0 {
		return 0
	}
	victims := root.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return adfilter.ContainsAnyFold(dom.Text(s), rules.LinkMarkers)
	}).Parent().FilterFunction(func(_ int, p *goquery.Selection) bool {
		return goquery.NodeName(p) != "body" && dom.Len(dom.Text(p)) < rules.LinkParentMaxLen
	})
	return dom.Detach(victims)
}
