// Package query builds deterministic search queries from catalog items.
package query

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/catalogops/imageingest/internal/catalog"
)

// Acronyms kept uppercase when re-casing shouty titles.
var acronyms = map[string]struct{}{
	"CCI": {}, "FMJ": {}, "JHP": {}, "JSP": {}, "TMJ": {}, "HST": {},
	"PSP": {}, "LR": {}, "WMR": {}, "ACP": {}, "NATO": {}, "HP": {},
	"SP": {}, "HMR": {}, "V-MAX": {}, "VMAX": {},
}

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	packagingRe    = regexp.MustCompile(`\b\d{2,3}/\d{1,3}\b`)
	caliberMMRe    = regexp.MustCompile(`(?i)\b(\d{2,3})\s*MM\b`)
	grainRe        = regexp.MustCompile(`(?i)\b(\d{2,3})\s*GR\b`)
	millimeterTok  = regexp.MustCompile(`^\d+mm$`)
	decimalCaliber = regexp.MustCompile(`^\.\d+`)
	measurementTok = regexp.MustCompile(`^\d+(\.\d+)?(gr|grain|in)$`)
	tokenSplitRe   = regexp.MustCompile(`[\s/-]+|[^\s/-]+`)
)

// Build constructs the search query for an item: manufacturer, cleaned
// title, then key as a disambiguating token. Pure and deterministic. An
// empty or noise-only title degrades to manufacturer+key; the key alone is
// the floor, so the query is never empty for a keyed item.
func Build(item catalog.Item) string {
	parts := make([]string, 0, 3)
	if m := strings.TrimSpace(item.Manufacturer); m != "" {
		parts = append(parts, m)
	}
	if title := CleanTitle(item.Title, item.Manufacturer); title != "" {
		parts = append(parts, title)
	}
	if k := strings.TrimSpace(item.Key); k != "" {
		parts = append(parts, k)
	}
	return strings.Join(parts, " ")
}

// CleanTitle strips noise that hurts search relevance: collapsed whitespace,
// packaging tails like "50/10", a duplicated manufacturer prefix, and shouty
// all-caps casing (re-cased while preserving acronyms and measurements like
// 9mm, .308 or 55gr). Returns "" when nothing useful remains.
func CleanTitle(raw, manufacturer string) string {
	s := whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	s = strings.TrimSpace(packagingRe.ReplaceAllString(s, ""))

	if m := strings.TrimSpace(manufacturer); m != "" {
		if strings.HasPrefix(strings.ToUpper(s), strings.ToUpper(m)) {
			s = strings.Trim(strings.TrimSpace(s[len(m):]), " -")
		}
	}

	if mostlyUppercase(s) {
		s = smartTitle(strings.ToLower(s))
	}

	s = caliberMMRe.ReplaceAllString(s, "${1}mm")
	s = grainRe.ReplaceAllString(s, "${1}gr")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// mostlyUppercase reports whether s is all-caps or carries more uppercase
// than lowercase letters.
func mostlyUppercase(s string) bool {
	upper, lower := 0, 0
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		}
	}
	if lower == 0 {
		return upper > 0
	}
	return upper > lower
}

// smartTitle title-cases s while keeping acronyms uppercase and measurement
// tokens (9mm, .308, 55gr) untouched. Separators are preserved verbatim.
func smartTitle(s string) string {
	var b strings.Builder
	for _, tok := range tokenSplitRe.FindAllString(s, -1) {
		if strings.IndexFunc(tok, isSeparator) == 0 {
			b.WriteString(tok)
			continue
		}
		b.WriteString(fixToken(tok))
	}
	return b.String()
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '/'
}

func fixToken(tok string) string {
	upper := strings.ToUpper(tok)
	if _, ok := acronyms[upper]; ok {
		return upper
	}
	lower := strings.ToLower(tok)
	if millimeterTok.MatchString(lower) || measurementTok.MatchString(lower) {
		return lower
	}
	if decimalCaliber.MatchString(tok) {
		return tok
	}
	return capitalize(tok)
}

func capitalize(tok string) string {
	runes := []rune(strings.ToLower(tok))
	if len(runes) == 0 {
		return tok
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
