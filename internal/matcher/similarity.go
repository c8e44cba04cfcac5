package matcher

// Similarity returns a Levenshtein ratio in [0,1] for two already normalized
// strings: 1 - distance/maxLen, measured in runes.
func Similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	maxLen := max(len(ra), len(rb))
	return 1 - float64(levenshteinDistance(ra, rb))/float64(maxLen)
}

// AuthorSetSimilarity compares two normalized author lists without regard to
// order. Every author is paired with its best match on the other side and the
// two directional averages are averaged, so extra or missing co-authors lower
// the score symmetrically.
func AuthorSetSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return (bestMatchAverage(a, b) + bestMatchAverage(b, a)) / 2
}

// PrimaryAuthorSimilarity compares the first author of each list.
func PrimaryAuthorSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return Similarity(a[0], b[0])
}

func bestMatchAverage(from, to []string) float64 {
	total := 0.0
	for _, x := range from {
		best := 0.0
		for _, y := range to {
			if s := Similarity(x, y); s > best {
				best = s
			}
		}
		total += best
	}
	return total / float64(len(from))
}

// levenshteinDistance uses two rolling rows instead of the full matrix.
func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
