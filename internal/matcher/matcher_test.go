package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/importers"
)

type MockCatalogSource struct {
	mock.Mock
}

func (m *MockCatalogSource) FindAllCatalogEntries(ctx context.Context) ([]CatalogEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CatalogEntry), args.Error(1)
}

func record(title string, authors ...string) importers.ImportRecord {
	return importers.ImportRecord{Title: title, Authors: authors, Status: importers.StatusRead, ReadCount: 1}
}

func scoreOne(t *testing.T, rec importers.ImportRecord, catalog ...CatalogEntry) MatchResult {
	t.Helper()
	results := Score([]importers.ImportRecord{rec}, NewLibraryCache(catalog), DefaultThresholds())
	require.Len(t, results, 1)
	return results[0]
}

func TestScore_ISBNMatch(t *testing.T) {
	rec := record("The Pragmatic Programmer", "Andrew Hunt", "David Thomas")
	rec.ISBN13 = importers.NormalizeISBN("978-0-13-468599-1")

	result := scoreOne(t, rec,
		CatalogEntry{ID: 1, Title: "Refactoring", Authors: []string{"Martin Fowler"}},
		CatalogEntry{ID: 2, Title: "The Pragmatic Programmer", Authors: []string{"Andrew Hunt"}, ISBN: "9780134685991"},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, uint(2), result.Book.ID)
	assert.Equal(t, ConfidenceExact, result.Confidence)
	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, ReasonISBN, result.Reason)
}

func TestScore_ISBN10MatchesCatalogISBN13(t *testing.T) {
	rec := record("Clean Code", "Robert C. Martin")
	rec.ISBN = "0132350882"

	result := scoreOne(t, rec,
		CatalogEntry{ID: 5, Title: "Clean Code", Authors: []string{"Robert Martin"}, ISBN: "978-0-13-235088-4"},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, ReasonISBN, result.Reason)
	assert.Equal(t, 100.0, result.Score)
}

func TestScore_ISBNPrefersISBN13(t *testing.T) {
	rec := record("Clean Code", "Robert C. Martin")
	rec.ISBN = "0132350882"
	rec.ISBN13 = "9780134685991"

	result := scoreOne(t, rec,
		CatalogEntry{ID: 1, Title: "Clean Code", Authors: []string{"Robert C. Martin"}, ISBN: "0132350882"},
		CatalogEntry{ID: 2, Title: "Clean Coder", Authors: []string{"Robert C. Martin"}, ISBN: "9780134685991"},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, uint(2), result.Book.ID, "the ISBN-13 is looked up, not the ISBN-10")
	assert.Equal(t, ReasonISBN, result.Reason)
}

func TestScore_ISBNWithUnrelatedTitleFallsThroughToFuzzy(t *testing.T) {
	rec := record("Dune", "Frank Herbert")
	rec.ISBN13 = "9780134685991"

	result := scoreOne(t, rec,
		CatalogEntry{ID: 1, Title: "Effective Java", Authors: []string{"Joshua Bloch"}, ISBN: "9780134685991"},
		CatalogEntry{ID: 2, Title: "Dune", Authors: []string{"Frank Herbert"}},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, uint(2), result.Book.ID)
	assert.Equal(t, ReasonTitleAuthor, result.Reason)
	assert.Equal(t, 95.0, result.Score)
	assert.Equal(t, ConfidenceExact, result.Confidence)
}

func TestScore_SubstringTitleMatch(t *testing.T) {
	result := scoreOne(t, record("The Wishing Spell", "Chris Colfer"),
		CatalogEntry{ID: 1, Title: "The Land of Stories: The Wishing Spell", Authors: []string{"Chris Colfer"}},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, ReasonSubstringTitle, result.Reason)
	assert.Equal(t, 75.0, result.Score)
	assert.Equal(t, ConfidenceMedium, result.Confidence)
}

func TestScore_SubstringNeedsAuthorAgreement(t *testing.T) {
	result := scoreOne(t, record("The Wishing Spell", "Somebody Else"),
		CatalogEntry{ID: 1, Title: "The Land of Stories: The Wishing Spell", Authors: []string{"Chris Colfer"}},
	)

	assert.Nil(t, result.Book)
	assert.Equal(t, ConfidenceUnmatched, result.Confidence)
}

func TestScore_SubstringNeedsMinimumLength(t *testing.T) {
	result := scoreOne(t, record("Emma", "Jane Austen"),
		CatalogEntry{ID: 1, Title: "The Annotated Emma Companion", Authors: []string{"Jane Austen"}},
	)

	assert.Nil(t, result.Book)
	assert.Equal(t, ReasonNoMatch, result.Reason)
}

func TestScore_TitleAndAuthorSet(t *testing.T) {
	// Same title and co-authors, but listed in the other order, so the
	// primary-author tier does not fire.
	result := scoreOne(t, record("Good Omens", "Neil Gaiman", "Terry Pratchett"),
		CatalogEntry{ID: 1, Title: "Good Omens", Authors: []string{"Terry Pratchett", "Neil Gaiman"}},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, ReasonTitleAuthorSet, result.Reason)
	assert.Equal(t, 90.0, result.Score)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestScore_FuzzyTitleOnly(t *testing.T) {
	result := scoreOne(t, record("The Hobbit", "J.R.R. Tolkien"),
		CatalogEntry{ID: 1, Title: "The Hobit", Authors: []string{"Unknown"}},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, ReasonFuzzyTitle, result.Reason)
	assert.InDelta(t, 90.0, result.Score, 0.01)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestScore_RelaxedTitle(t *testing.T) {
	result := scoreOne(t, record("Gone Girl", "Gillian Flynn"),
		CatalogEntry{ID: 1, Title: "Gone Gril", Authors: []string{"Someone Else"}},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, ReasonRelaxedTitle, result.Reason)
	assert.InDelta(t, 77.78, result.Score, 0.01)
	assert.Equal(t, ConfidenceMedium, result.Confidence)
}

func TestScore_NormalizationIgnoresCaseDiacriticsAndSeries(t *testing.T) {
	result := scoreOne(t, record("Cien años de soledad (Ediciones, #3)", "Gabriel García Márquez"),
		CatalogEntry{ID: 1, Title: "CIEN ANOS DE SOLEDAD", Authors: []string{"Marquez, Gabriel Garcia"}},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, ReasonTitleAuthor, result.Reason)
	assert.Equal(t, ConfidenceExact, result.Confidence)
}

func TestScore_Unmatched(t *testing.T) {
	result := scoreOne(t, record("Completely Different Book", "Nobody"),
		CatalogEntry{ID: 1, Title: "Dune", Authors: []string{"Frank Herbert"}},
	)

	assert.Nil(t, result.Book)
	assert.False(t, result.Matched())
	assert.Equal(t, ConfidenceUnmatched, result.Confidence)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, ReasonNoMatch, result.Reason)
}

func TestScore_EmptyCatalog(t *testing.T) {
	result := scoreOne(t, record("Dune", "Frank Herbert"))

	assert.Nil(t, result.Book)
	assert.Equal(t, ConfidenceUnmatched, result.Confidence)
}

// Equal scores keep the first candidate in snapshot order. The snapshot is
// sorted by ID, so the lowest ID wins regardless of input order.
func TestScore_TieKeepsFirstCandidateByID(t *testing.T) {
	result := scoreOne(t, record("Dune", "Frank Herbert"),
		CatalogEntry{ID: 7, Title: "Dune", Authors: []string{"Frank Herbert"}},
		CatalogEntry{ID: 3, Title: "Dune", Authors: []string{"Frank Herbert"}},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, uint(3), result.Book.ID)
	assert.Equal(t, 95.0, result.Score)
}

func TestScore_BestCandidateWins(t *testing.T) {
	result := scoreOne(t, record("Dune Messiah", "Frank Herbert"),
		CatalogEntry{ID: 1, Title: "Dune", Authors: []string{"Frank Herbert"}},
		CatalogEntry{ID: 2, Title: "Dune Messiah", Authors: []string{"Frank Herbert"}},
	)

	require.NotNil(t, result.Book)
	assert.Equal(t, uint(2), result.Book.ID)
}

func TestScore_OneResultPerRecord(t *testing.T) {
	records := []importers.ImportRecord{
		record("Dune", "Frank Herbert"),
		record("Unknown Book", "Nobody"),
		record("Dune", "Frank Herbert"),
		record("Emma", "Jane Austen"),
	}
	cache := NewLibraryCache([]CatalogEntry{
		{ID: 1, Title: "Dune", Authors: []string{"Frank Herbert"}},
		{ID: 2, Title: "Emma", Authors: []string{"Jane Austen"}},
	})

	results := Score(records, cache, DefaultThresholds())

	require.Len(t, results, len(records))
	for i, r := range results {
		assert.Equal(t, records[i].Title, r.Record.Title, "results keep input order")
		assert.NotEqual(t, r.Book != nil, r.Confidence == ConfidenceUnmatched,
			"exactly one of matched book and unmatched confidence must hold")
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 100.0)
		if r.Score == 0 {
			assert.Equal(t, ConfidenceUnmatched, r.Confidence)
		}
	}
}

func TestScore_ThresholdsAreOverridable(t *testing.T) {
	th := DefaultThresholds()
	th.SubstringMinLength = 30

	results := Score(
		[]importers.ImportRecord{record("The Wishing Spell", "Chris Colfer")},
		NewLibraryCache([]CatalogEntry{{ID: 1, Title: "The Land of Stories: The Wishing Spell", Authors: []string{"Chris Colfer"}}}),
		th,
	)

	assert.Equal(t, ConfidenceUnmatched, results[0].Confidence)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Confidence
	}{
		{100, ConfidenceExact},
		{95, ConfidenceExact},
		{94.99, ConfidenceHigh},
		{80, ConfidenceHigh},
		{79.9, ConfidenceMedium},
		{70, ConfidenceMedium},
		{69.9, ConfidenceLow},
		{60, ConfidenceLow},
		{59.99, ConfidenceUnmatched},
		{0, ConfidenceUnmatched},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %v", tt.score)
	}
}

func TestParseConfidence(t *testing.T) {
	c, err := ParseConfidence("medium")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceMedium, c)

	_, err = ParseConfidence("certain")
	assert.Error(t, err)
}

func TestMatcher_MatchBatch(t *testing.T) {
	catalog := new(MockCatalogSource)
	catalog.On("FindAllCatalogEntries", mock.Anything).Return([]CatalogEntry{
		{ID: 1, Title: "Dune", Authors: []string{"Frank Herbert"}},
	}, nil).Once()

	m := NewMatcher(catalog, DefaultThresholds())
	results, err := m.MatchBatch(context.Background(), []importers.ImportRecord{
		record("Dune", "Frank Herbert"),
		record("Emma", "Jane Austen"),
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Matched())
	assert.False(t, results[1].Matched())
	catalog.AssertExpectations(t)
}

func TestMatcher_MatchBatchCatalogError(t *testing.T) {
	catalog := new(MockCatalogSource)
	catalog.On("FindAllCatalogEntries", mock.Anything).Return(nil, errors.New("db down"))

	m := NewMatcher(catalog, DefaultThresholds())
	_, err := m.MatchBatch(context.Background(), []importers.ImportRecord{record("Dune", "Frank Herbert")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestMatcher_MatchBatchCancelled(t *testing.T) {
	catalog := new(MockCatalogSource)
	catalog.On("FindAllCatalogEntries", mock.Anything).Return([]CatalogEntry{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMatcher(catalog, DefaultThresholds()).MatchBatch(ctx, []importers.ImportRecord{record("Dune", "Frank Herbert")})
	assert.ErrorIs(t, err, context.Canceled)
}
