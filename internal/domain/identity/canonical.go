// Package identity derives the canonical key that reconciles city records
// coming from independent sources.
package identity

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CanonicalID returns "{slug}_{lat:.4f}_{lng:.4f}" where slug is derived from
// the part of nameOrLabel before the first comma.
func CanonicalID(nameOrLabel string, lat, lng float64) string {
	name, _, _ := strings.Cut(nameOrLabel, ",")
	var b strings.Builder
	b.WriteString(Slug(name))
	b.WriteByte('_')
	b.WriteString(coord(lat))
	b.WriteByte('_')
	b.WriteString(coord(lng))
	return b.String()
}

// KeyOf returns id when set, otherwise the canonical id derived from the
// name and coordinates.
func KeyOf(id, nameOrLabel string, lat, lng float64) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return CanonicalID(nameOrLabel, lat, lng)
}

// Slug strips diacritics, collapses every non-alphanumeric run into a single
// underscore, trims underscores and lowercases the result.
func Slug(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pending := false
	for _, r := range folded {
		if isAlnum(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pending = true
	}
	return b.String()
}

// isAlnum accepts ASCII letters and digits plus any non-ASCII letter or digit
// that survives decomposition (for example "ø" or CJK).
func isAlnum(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r < 0x80:
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// coord formats v with four decimals; negative zero renders as "0.0000".
func coord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if s == "-0.0000" {
		return "0.0000"
	}
	return s
}
