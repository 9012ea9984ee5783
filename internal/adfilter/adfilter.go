// Package adfilter classifies short text fragments found on result pages as
// advertising labels or legal boilerplate.
package adfilter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Keywords are the ad labels providers print next to sponsored results,
// across the interface languages they serve.
var Keywords = []string{
	"ad", "ads", "anuncio", "annuncio", "annonce", "Anzeige", "广告", "廣告",
	"Reklama", "Реклама", "Anunț", "광고", "annons", "Annonse", "Iklan",
	"広告", "Augl.", "Mainos", "Advertentie", "إعلان", "Գովազդ", "विज्ञापन",
	"Reklam", "آگهی", "Reklāma", "Reklaam", "Διαφήμιση", "מודעה", "Hirdetés",
	"Anúncio", "Quảng cáo", "โฆษณา", "sponsored", "patrocinado", "gesponsert",
	"Sponzorováno", "스폰서", "Gesponsord", "Sponsorisé",
}

// InfoMarker is the glyph Google renders beside ad labels.
const InfoMarker = "ⓘ"

// keywordSet holds the folded, letters-only form of every keyword. It is
// built once and only read afterwards.
var keywordSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Keywords))
	for _, k := range Keywords {
		m[fold(letters(k))] = struct{}{}
	}
	return m
}()

// IsAdContent reports whether text is an ad label: its letters alone equal
// one of the Keywords ignoring case, or it contains InfoMarker.
func IsAdContent(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if strings.Contains(text, InfoMarker) {
		return true
	}
	l := letters(text)
	if l == "" {
		return false
	}
	_, ok := keywordSet[fold(l)]
	return ok
}

// IsBoilerplate reports whether text is shorter than maxLen characters and
// mentions any of markers, compared case-insensitively.
func IsBoilerplate(text string, markers []string, maxLen int) bool {
	if text == "" || utf8.RuneCountInString(text) >= maxLen {
		return false
	}
	return ContainsAnyFold(text, markers)
}

// ContainsAnyFold reports whether s contains any of needles, ignoring case.
func ContainsAnyFold(s string, needles []string) bool {
	ls := strings.ToLower(s)
	for _, n := range needles {
		if n != "" && strings.Contains(ls, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func letters(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fold uses a fresh Caser per call; a Caser carries state and cannot be
// shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}
