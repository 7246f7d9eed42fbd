// Package normalize canonicalises the free-text fields of weekly sales sheets.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	// An elided article or preposition followed by stray spaces: "L' avversario", "Dell' arte".
	elision = regexp.MustCompile(`(^|[\s(])(\p{L}{1,5})'\s+(\p{L})`)

	apostrophes = strings.NewReplacer(
		"’", "'", // right single quotation mark
		"‘", "'", // left single quotation mark
		"ʼ", "'", // modifier letter apostrophe
		"`", "'",
		"´", "'", // acute accent
	)
)

// canonicalTitles fixes titles whose sheets disagree on more than spacing.
// Keys are lowercased after apostrophe and spacing fixes.
//
//nolint:gochecknoglobals // Static lookup table
var canonicalTitles = map[string]string{
	"l'avversario": "L'avversario",
}

// Title trims a title, collapses inner whitespace and unifies apostrophe variants.
// Title(Title(s)) == Title(s).
func Title(s string) string {
	s = apostrophes.Replace(s)
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	s = elision.ReplaceAllString(s, "$1$2'$3")
	if c, ok := canonicalTitles[strings.ToLower(s)]; ok {
		return c
	}
	return s
}

// Publisher trims a publisher name and title-cases it.
func Publisher(s string) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if s == "" {
		return s
	}
	// Casers keep state, so each call gets its own.
	return cases.Title(language.Italian).String(s)
}

// Text trims and collapses whitespace for author and series labels.
func Text(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Header canonicalises a column header: trimmed, lowercased, spaces as underscores.
func Header(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespace.ReplaceAllString(s, "_")
}

// Column aliases, matched against canonical headers in order.
//
//nolint:gochecknoglobals // Static lookup tables
var (
	RankAliases    = []string{"rank", "rango", "classifica"}
	CollanaAliases = []string{"collana", "collection", "series", "collection/series"}
)

// FindColumn returns the index of the first alias present in headers, or -1.
// headers must already be canonical.
func FindColumn(headers []string, aliases ...string) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if h == alias {
				return i
			}
		}
	}
	return -1
}
