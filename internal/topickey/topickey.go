// Package topickey builds the normalized "discipline::subtopic" keys used to join
// curriculum drops with assessment history and study progress.
package topickey

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Separator joins the discipline and subtopic parts of a key.
const Separator = "::"

// Fold returns s trimmed, with diacritics stripped, case-folded and inner
// whitespace collapsed. "  Língua  Portuguesa " and "lingua portuguesa" fold equal.
func Fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// Build returns the key for a discipline/subtopic pair. An empty subtopic
// yields the bare discipline key.
func Build(discipline, subtopic string) string {
	d := Fold(discipline)
	s := Fold(subtopic)
	switch {
	case s == "":
		return d
	case d == "":
		return s
	}
	return d + Separator + s
}

// Normalize parses a raw key as stored by upstream systems. Keys may carry
// intermediate levels ("Math::Algebra::Equations"); only the first and last
// parts are kept. Returns "" when nothing usable remains.
func Normalize(raw string) string {
	var parts []string
	for _, p := range strings.Split(raw, Separator) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return Fold(parts[0])
	}
	return Build(parts[0], parts[len(parts)-1])
}
