// Package normalize provides deterministic canonical forms, cache keys, and
// lookup variants for concept names.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// punctCutset is trimmed from token boundaries. Hyphens stay so compound
// names like value-at-risk keep their shape.
const punctCutset = ".,;:!?\"'`()[]{}"

var parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)

// Name returns the canonical form of a concept name: NFKC-folded,
// lowercased, whitespace-collapsed, with punctuation trimmed from token
// boundaries. Name is idempotent: Name(Name(s)) == Name(s).
func Name(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	fields := strings.Fields(s)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, punctCutset)
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return strings.Join(tokens, " ")
}

// KeySeparator joins the source name and the canonical concept name in a
// cache key.
const KeySeparator = ":"

// CacheKey derives the cache key for a concept name under a source. It is a
// pure function of the lowercased source name and the canonical concept
// name, so case, whitespace, and punctuation spellings of one concept all
// collide on a single key.
func CacheKey(source, name string) string {
	return strings.ToLower(source) + KeySeparator + Name(name)
}

// SplitKey breaks a cache key back into its source and name parts. The
// second return is false for keys that carry no separator.
func SplitKey(key string) (source, name string, ok bool) {
	i := strings.Index(key, KeySeparator)
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+len(KeySeparator):], true
}

// StripParenthetical removes parenthetical qualifiers, e.g.
// "Sharpe ratio (finance)" -> "Sharpe ratio".
func StripParenthetical(s string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(s, ""))
}

// Parenthetical returns the first parenthetical qualifier's inner text,
// or "" when the name carries none.
func Parenthetical(s string) string {
	start := strings.Index(s, "(")
	if start < 0 {
		return ""
	}
	end := strings.Index(s[start:], ")")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(s[start+1 : start+end])
}

// Variants returns ordered, deduplicated lookup candidates for a name.
// The first element is the preferred query form. The acronym map keys are
// canonical forms (see Name); values are expansions.
func Variants(s string, acronyms map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, v)
	}

	trimmed := strings.TrimSpace(s)
	canonical := Name(s)

	add(trimmed)
	add(canonical)
	add(cases.Title(language.English).String(canonical))
	if expansion, ok := acronyms[canonical]; ok {
		add(expansion)
	}
	if stripped := StripParenthetical(trimmed); stripped != trimmed {
		add(stripped)
	}
	return out
}
