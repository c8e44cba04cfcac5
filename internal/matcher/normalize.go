package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// seriesSuffix matches a trailing series marker such as
// "(The Land of Stories, #1)" or "(Dune #2.5)".
var seriesSuffix = regexp.MustCompile(`\s*\([^()]*#\s*[\d.]+\)\s*$`)

// NormalizeTitle folds a title for comparison: the trailing series marker is
// removed, then the text goes through normalizeText.
func NormalizeTitle(title string) string {
	return normalizeText(seriesSuffix.ReplaceAllString(title, ""))
}

// NormalizeAuthor folds an author name for comparison. "Last, First" is
// reordered to "First Last".
func NormalizeAuthor(name string) string {
	if last, first, ok := strings.Cut(name, ","); ok && !strings.Contains(first, ",") {
		if first = strings.TrimSpace(first); first != "" {
			name = first + " " + strings.TrimSpace(last)
		}
	}
	return normalizeText(name)
}

// NormalizeAuthors applies NormalizeAuthor to each name and drops empties.
func NormalizeAuthors(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = NormalizeAuthor(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// normalizeText lowercases s, strips diacritics, turns "&" into "and",
// replaces punctuation with spaces and collapses whitespace.
func normalizeText(s string) string {
	s = foldDiacritics(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '\u2019':
			// Apostrophes join words: "Ender's" compares as "enders".
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
