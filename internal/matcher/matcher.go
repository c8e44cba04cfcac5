package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrlokans/shelfsync/internal/importers"
)

// Confidence is the classification of a match score.
type Confidence string

const (
	ConfidenceExact     Confidence = "exact"
	ConfidenceHigh      Confidence = "high"
	ConfidenceMedium    Confidence = "medium"
	ConfidenceLow       Confidence = "low"
	ConfidenceUnmatched Confidence = "unmatched"
)

// Confidences lists every classification from strongest to weakest.
var Confidences = []Confidence{ConfidenceExact, ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceUnmatched}

// ParseConfidence maps a query value to a Confidence.
func ParseConfidence(s string) (Confidence, error) {
	for _, c := range Confidences {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown confidence: %q", s)
}

// Reason names the rule that produced a match.
type Reason string

const (
	ReasonISBN           Reason = "isbn_match"
	ReasonTitleAuthor    Reason = "exact_title_author_match"
	ReasonTitleAuthorSet Reason = "title_author_match"
	ReasonFuzzyTitle     Reason = "fuzzy_title_match"
	ReasonRelaxedTitle   Reason = "relaxed_title_match"
	ReasonSubstringTitle Reason = "substring_title_match"
	ReasonNoMatch        Reason = "no_match"
)

// Fixed scores of the non-proportional tiers.
const (
	ScoreISBN           = 100.0
	ScoreTitleAuthor    = 95.0
	ScoreTitleAuthorSet = 90.0
	ScoreSubstringTitle = 75.0
)

// Classification cutoffs.
const (
	ExactMinScore  = 95.0
	HighMinScore   = 80.0
	MediumMinScore = 70.0
	LowMinScore    = 60.0
)

// Thresholds holds the similarity cutoffs used by the scoring tiers.
type Thresholds struct {
	// ISBNTitleMin guards identifier matches against reused or mis-keyed ISBNs.
	ISBNTitleMin float64

	TitleAuthorTitleMin float64
	PrimaryAuthorMin    float64

	StrictTitleMin float64
	AuthorSetMin   float64

	FuzzyTitleMin   float64
	RelaxedTitleMin float64

	// SubstringMinLength is measured in runes of the normalized import title.
	SubstringMinLength int
	SubstringAuthorMin float64
}

// DefaultThresholds returns the empirically chosen cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ISBNTitleMin:        0.60,
		TitleAuthorTitleMin: 0.90,
		PrimaryAuthorMin:    0.80,
		StrictTitleMin:      0.95,
		AuthorSetMin:        0.80,
		FuzzyTitleMin:       0.80,
		RelaxedTitleMin:     0.65,
		SubstringMinLength:  10,
		SubstringAuthorMin:  0.50,
	}
}

// MatchResult pairs one import record with at most one catalog entry.
// Book is nil exactly when Confidence is ConfidenceUnmatched, and Score is 0
// in that case.
type MatchResult struct {
	Record     importers.ImportRecord `json:"record"`
	Book       *CatalogEntry          `json:"book,omitempty"`
	Confidence Confidence             `json:"confidence"`
	Score      float64                `json:"score"`
	Reason     Reason                 `json:"reason"`
}

// Matched reports whether a catalog entry was found.
func (m MatchResult) Matched() bool {
	return m.Book != nil
}

// Classify maps a 0-100 score to a Confidence.
func Classify(score float64) Confidence {
	switch {
	case score >= ExactMinScore:
		return ConfidenceExact
	case score >= HighMinScore:
		return ConfidenceHigh
	case score >= MediumMinScore:
		return ConfidenceMedium
	case score >= LowMinScore:
		return ConfidenceLow
	default:
		return ConfidenceUnmatched
	}
}

// CatalogSource provides the catalog snapshot for a batch.
type CatalogSource interface {
	FindAllCatalogEntries(ctx context.Context) ([]CatalogEntry, error)
}

// Matcher matches batches of import records against the catalog.
type Matcher struct {
	catalog    CatalogSource
	thresholds Thresholds
}

// NewMatcher creates a Matcher reading from catalog.
func NewMatcher(catalog CatalogSource, thresholds Thresholds) *Matcher {
	return &Matcher{catalog: catalog, thresholds: thresholds}
}

// MatchBatch loads the catalog once, builds a LibraryCache owned by this
// call, and scores every record against it. The result has one entry per
// record, in input order.
func (m *Matcher) MatchBatch(ctx context.Context, records []importers.ImportRecord) ([]MatchResult, error) {
	entries, err := m.catalog.FindAllCatalogEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cache := NewLibraryCache(entries)
	return Score(records, cache, m.thresholds), nil
}

// Score matches every record against cache. It performs no I/O.
func Score(records []importers.ImportRecord, cache *LibraryCache, th Thresholds) []MatchResult {
	results := make([]MatchResult, len(records))
	for i, record := range records {
		results[i] = scoreRecord(record, cache, th)
	}
	return results
}

func scoreRecord(record importers.ImportRecord, cache *LibraryCache, th Thresholds) MatchResult {
	title := NormalizeTitle(record.Title)

	if i := cache.lookupISBN(record.Identifier()); i >= 0 {
		if Similarity(title, cache.titles[i]) >= th.ISBNTitleMin {
			return matched(record, cache.entries[i], ScoreISBN, ReasonISBN)
		}
	}

	authors := NormalizeAuthors(record.Authors)
	best := -1
	bestScore := 0.0
	var bestReason Reason

	for i := range cache.entries {
		score, reason := scoreCandidate(title, authors, cache.titles[i], cache.authors[i], th)
		// Strictly greater: the first candidate in ID order wins a tie.
		if score > bestScore {
			best, bestScore, bestReason = i, score, reason
		}
	}

	if best < 0 || Classify(bestScore) == ConfidenceUnmatched {
		return MatchResult{Record: record, Confidence: ConfidenceUnmatched, Reason: ReasonNoMatch}
	}
	return matched(record, cache.entries[best], bestScore, bestReason)
}

// scoreCandidate applies the fuzzy tiers to one catalog entry. The first tier
// that fires determines the score.
func scoreCandidate(title string, authors []string, candTitle string, candAuthors []string, th Thresholds) (float64, Reason) {
	t := Similarity(title, candTitle)

	if t >= th.TitleAuthorTitleMin && PrimaryAuthorSimilarity(authors, candAuthors) >= th.PrimaryAuthorMin {
		return ScoreTitleAuthor, ReasonTitleAuthor
	}

	authorSet := -1.0
	authorSetSim := func() float64 {
		if authorSet < 0 {
			authorSet = AuthorSetSimilarity(authors, candAuthors)
		}
		return authorSet
	}

	if t >= th.StrictTitleMin && authorSetSim() >= th.AuthorSetMin {
		return ScoreTitleAuthorSet, ReasonTitleAuthorSet
	}
	if t >= th.FuzzyTitleMin {
		return t * 100, ReasonFuzzyTitle
	}
	if t >= th.RelaxedTitleMin {
		return t * 100, ReasonRelaxedTitle
	}
	if len([]rune(title)) >= th.SubstringMinLength && strings.Contains(candTitle, title) && authorSetSim() >= th.SubstringAuthorMin {
		return ScoreSubstringTitle, ReasonSubstringTitle
	}
	return 0, ""
}

func matched(record importers.ImportRecord, entry CatalogEntry, score float64, reason Reason) MatchResult {
	book := entry
	return MatchResult{
		Record:     record,
		Book:       &book,
		Confidence: Classify(score),
		Score:      score,
		Reason:     reason,
	}
}
