package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/books"
	"github.com/mrlokans/shelfsync/internal/database/imports"
	"github.com/mrlokans/shelfsync/internal/database/sessions"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/importcache"
	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/matcher"
)

var (
	_ CatalogReader = (*books.Repository)(nil)
	_ RatingUpdater = (*books.Repository)(nil)
	_ SessionStore  = (*sessions.Repository)(nil)
	_ RunRecorder   = (*imports.Repository)(nil)
)

type testEnv struct {
	reconciler *Reconciler
	books      *books.Repository
	sessions   *sessions.Repository
	runs       *imports.Repository
	store      *importcache.Store
	now        time.Time
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func setupReconciler(t *testing.T) *testEnv {
	db, err := database.Open(filepath.Join(t.TempDir(), "shelfsync.db"), logger.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		books:    books.NewRepository(db.DB),
		sessions: sessions.NewRepository(db.DB),
		runs:     imports.NewRepository(db.DB),
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.store = importcache.NewStore(30*time.Minute, importcache.WithClock(func() time.Time { return env.now }))
	env.reconciler = NewReconciler(ReconcilerConfig{
		Catalog:    env.books,
		Importer:   NewSessionImporter(env.sessions, env.books, nil, nil),
		Store:      env.store,
		Runs:       env.runs,
		Thresholds: matcher.DefaultThresholds(),
	})
	return env
}

func (e *testEnv) addBook(t *testing.T, book entities.Book) uint {
	require.NoError(t, e.books.CreateBook(context.Background(), &book))
	return book.ID
}

const goodreadsCSV = `Title,Author,Additional Authors,ISBN13,My Rating,Number of Pages,Date Read,Exclusive Shelf
The Pragmatic Programmer,Andrew Hunt,David Thomas,="9780134685991",5,352,2024/03/02,read
The Wishing Spell,Chris Colfer,,="",4,,2023/11/20,read
Dune,Frank Herbert,,="",0,,,to-read
A Book Nobody Has,Someone Obscure,,="",0,,,read
Finnegans Wake,James Joyce,,="",0,,,dnf
`

func seedCatalog(t *testing.T, env *testEnv) (pragmatic, wishing, dune uint) {
	pragmatic = env.addBook(t, entities.Book{Title: "The Pragmatic Programmer", Authors: "Andrew Hunt; David Thomas", ISBN: "978-0-13-468599-1", TotalPages: 352})
	wishing = env.addBook(t, entities.Book{Title: "The Land of Stories: The Wishing Spell", Author: "Chris Colfer"})
	dune = env.addBook(t, entities.Book{Title: "Dune", Author: "Frank Herbert"})
	return
}

func TestReconciler_UploadPreviewExecute(t *testing.T) {
	env := setupReconciler(t)
	pragmatic, wishing, dune := seedCatalog(t, env)
	ctx := context.Background()

	upload, err := env.reconciler.Upload(ctx, strings.NewReader(goodreadsCSV), importers.ProviderGoodreads, "export.csv")
	require.NoError(t, err)

	assert.Len(t, upload.ImportID, 26)
	assert.Equal(t, 5, upload.TotalRows)
	assert.Equal(t, 4, upload.Records)
	require.Len(t, upload.Skipped, 1, "dnf shelf is dropped for goodreads")
	assert.Equal(t, 1, upload.Counts[matcher.ConfidenceUnmatched])
	assert.Equal(t, env.now.Add(30*time.Minute), upload.ExpiresAt)

	preview, err := env.reconciler.Preview(upload.ImportID, PreviewFilter{})
	require.NoError(t, err)
	require.Len(t, preview.Matches, 4)

	byTitle := map[string]matcher.MatchResult{}
	for _, m := range preview.Matches {
		byTitle[m.Record.Title] = m
	}
	assert.Equal(t, matcher.ReasonISBN, byTitle["The Pragmatic Programmer"].Reason)
	assert.Equal(t, 100.0, byTitle["The Pragmatic Programmer"].Score)
	assert.Equal(t, pragmatic, byTitle["The Pragmatic Programmer"].Book.ID)
	assert.Equal(t, matcher.ReasonSubstringTitle, byTitle["The Wishing Spell"].Reason)
	assert.Equal(t, 75.0, byTitle["The Wishing Spell"].Score)
	assert.Equal(t, wishing, byTitle["The Wishing Spell"].Book.ID)
	assert.Equal(t, dune, byTitle["Dune"].Book.ID)
	assert.False(t, byTitle["A Book Nobody Has"].Matched())

	summary, err := env.reconciler.Execute(ctx, upload.ImportID, ExecuteOptions{SkipDuplicates: true})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalRecords)
	assert.Equal(t, 3, summary.SessionsCreated)
	assert.Equal(t, 1, summary.UnmatchedRecords)
	assert.Equal(t, 1, summary.SessionsSkipped)
	assert.Equal(t, 2, summary.RatingsUpdated)
	assert.Equal(t, 2, summary.ProgressBackfilled)
	assert.Empty(t, summary.Errors)

	book, err := env.books.GetBookByID(ctx, pragmatic)
	require.NoError(t, err)
	require.NotNil(t, book.Rating)
	assert.Equal(t, 5, *book.Rating)

	duneSessions, err := env.sessions.ListSessions(ctx, dune)
	require.NoError(t, err)
	require.Len(t, duneSessions, 1)
	assert.Equal(t, entities.SessionStatusToRead, duneSessions[0].Status)
	assert.True(t, duneSessions[0].IsActive)
	assert.Nil(t, duneSessions[0].StartedDate)

	run, err := env.reconciler.Run(ctx, upload.ImportID)
	require.NoError(t, err)
	assert.Equal(t, entities.ImportStatusCompleted, run.Status)
	assert.Equal(t, 3, run.SessionsCreated)
	assert.Equal(t, "goodreads", run.Provider)
	assert.Equal(t, "export.csv", run.FileName)
	assert.NotNil(t, run.CompletedAt)
}

func TestReconciler_BackfillsProgressOnCompletionDate(t *testing.T) {
	env := setupReconciler(t)
	pragmatic, _, _ := seedCatalog(t, env)
	ctx := context.Background()

	csv := "Title,Author,ISBN13,My Rating,Date Read,Exclusive Shelf\n" +
		`The Pragmatic Programmer,Andrew Hunt,="978-0-13-468599-1",0,2024/03/02,read` + "\n"
	upload, err := env.reconciler.Upload(ctx, strings.NewReader(csv), importers.ProviderGoodreads, "")
	require.NoError(t, err)

	summary, err := env.reconciler.Execute(ctx, upload.ImportID, ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProgressBackfilled)

	list, err := env.sessions.ListSessions(ctx, pragmatic)
	require.NoError(t, err)
	require.Len(t, list, 1)

	entries, err := env.sessions.ListProgressEntries(ctx, list[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 100.0, entries[0].Percentage)
	assert.Equal(t, 352, entries[0].CurrentPage)
	assert.True(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC).Equal(entries[0].ProgressDate))
}

func TestReconciler_ExecuteIsIdempotentWithSkipDuplicates(t *testing.T) {
	env := setupReconciler(t)
	seedCatalog(t, env)
	ctx := context.Background()

	execute := func() *ExecutionSummary {
		upload, err := env.reconciler.Upload(ctx, strings.NewReader(goodreadsCSV), importers.ProviderGoodreads, "export.csv")
		require.NoError(t, err)
		summary, err := env.reconciler.Execute(ctx, upload.ImportID, ExecuteOptions{SkipDuplicates: true})
		require.NoError(t, err)
		return summary
	}

	first := execute()
	second := execute()

	assert.Equal(t, 3, first.SessionsCreated)
	assert.Equal(t, 0, second.SessionsCreated)
	assert.Equal(t, first.SessionsCreated, second.DuplicatesFound, "every matched record is a duplicate the second time")
	assert.Equal(t, 0, second.ProgressBackfilled)
}

func TestReconciler_StoryGraphDidNotFinishNeverCreatesSession(t *testing.T) {
	env := setupReconciler(t)
	ulysses := env.addBook(t, entities.Book{Title: "Ulysses", Author: "James Joyce"})
	ctx := context.Background()

	csv := "Title,Authors,ISBN/UID,Read Status,Star Rating,Dates Read\n" +
		"Ulysses,James Joyce,,did-not-finish,2.5,2024/01/01-2024/02/01\n"
	upload, err := env.reconciler.Upload(ctx, strings.NewReader(csv), "", "storygraph.csv")
	require.NoError(t, err)
	assert.Equal(t, importers.ProviderStoryGraph, upload.Provider, "provider detected from header")
	assert.Equal(t, 1, upload.Records, "storygraph keeps did-not-finish records")

	summary, err := env.reconciler.Execute(ctx, upload.ImportID, ExecuteOptions{SkipDuplicates: true})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SessionsCreated)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, SkipReasonDidNotFinish, summary.Skipped[0].Reason)

	list, err := env.sessions.ListSessions(ctx, ulysses)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReconciler_PreviewFilterAndPagination(t *testing.T) {
	env := setupReconciler(t)
	seedCatalog(t, env)

	upload, err := env.reconciler.Upload(context.Background(), strings.NewReader(goodreadsCSV), importers.ProviderGoodreads, "")
	require.NoError(t, err)

	page, err := env.reconciler.Preview(upload.ImportID, PreviewFilter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Matches, 2)
	assert.Equal(t, 4, page.Total)
	assert.True(t, page.HasMore)
	assert.Equal(t, "The Wishing Spell", page.Matches[0].Record.Title)

	unmatched, err := env.reconciler.Preview(upload.ImportID, PreviewFilter{Confidence: matcher.ConfidenceUnmatched})
	require.NoError(t, err)
	require.Len(t, unmatched.Matches, 1)
	assert.Equal(t, "A Book Nobody Has", unmatched.Matches[0].Record.Title)
	assert.False(t, unmatched.HasMore)
	assert.Equal(t, DefaultPreviewLimit, unmatched.Limit)

	beyond, err := env.reconciler.Preview(upload.ImportID, PreviewFilter{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, beyond.Matches)
	assert.NotNil(t, beyond.Matches)
}

func TestReconciler_ExpiredOrConsumedBatch(t *testing.T) {
	env := setupReconciler(t)
	seedCatalog(t, env)
	ctx := context.Background()

	upload, err := env.reconciler.Upload(ctx, strings.NewReader(goodreadsCSV), importers.ProviderGoodreads, "")
	require.NoError(t, err)
	assert.True(t, env.reconciler.Exists(upload.ImportID))

	_, err = env.reconciler.Execute(ctx, upload.ImportID, ExecuteOptions{})
	require.NoError(t, err)

	_, err = env.reconciler.Execute(ctx, upload.ImportID, ExecuteOptions{})
	assert.ErrorIs(t, err, importcache.ErrBatchNotFound, "a batch executes once")

	expiring, err := env.reconciler.Upload(ctx, strings.NewReader(goodreadsCSV), importers.ProviderGoodreads, "")
	require.NoError(t, err)
	env.advance(31 * time.Minute)

	_, err = env.reconciler.Preview(expiring.ImportID, PreviewFilter{})
	assert.ErrorIs(t, err, importcache.ErrBatchNotFound)
	_, err = env.reconciler.Execute(ctx, expiring.ImportID, ExecuteOptions{})
	assert.ErrorIs(t, err, importcache.ErrBatchNotFound)
}

func TestReconciler_Discard(t *testing.T) {
	env := setupReconciler(t)

	upload, err := env.reconciler.Upload(context.Background(), strings.NewReader(goodreadsCSV), importers.ProviderGoodreads, "")
	require.NoError(t, err)

	assert.True(t, env.reconciler.Discard(upload.ImportID))
	assert.False(t, env.reconciler.Discard(upload.ImportID))
	assert.False(t, env.reconciler.Exists(upload.ImportID))
}

func TestReconciler_UploadStructuralErrors(t *testing.T) {
	env := setupReconciler(t)
	ctx := context.Background()

	_, err := env.reconciler.Upload(ctx, strings.NewReader("Title,Author\nDune,Frank Herbert\n"), importers.ProviderGoodreads, "")
	var structural *importers.StructuralError
	require.True(t, errors.As(err, &structural))
	assert.Contains(t, structural.MissingColumns, "exclusive shelf")

	_, err = env.reconciler.Upload(ctx, strings.NewReader("Name,Writer\nDune,Frank Herbert\n"), "", "")
	assert.True(t, errors.As(err, &structural), "undetectable provider")

	assert.Equal(t, 0, env.store.Len(), "nothing is cached for a rejected file")
}

func TestReconciler_MinConfidenceDemotesWeakMatches(t *testing.T) {
	env := setupReconciler(t)
	seedCatalog(t, env)
	ctx := context.Background()

	upload, err := env.reconciler.Upload(ctx, strings.NewReader(goodreadsCSV), importers.ProviderGoodreads, "")
	require.NoError(t, err)

	summary, err := env.reconciler.Execute(ctx, upload.ImportID, ExecuteOptions{MinConfidence: matcher.ConfidenceHigh})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SessionsCreated, "the medium substring match is not imported")
	assert.Equal(t, 2, summary.UnmatchedRecords)
}

func TestReconciler_Reread(t *testing.T) {
	env := setupReconciler(t)
	dune := env.addBook(t, entities.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593"})
	ctx := context.Background()

	summary, err := env.reconciler.Reread(ctx, dune, []time.Time{
		time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2015, 2, 3, 0, 0, 0, 0, time.UTC),
	}, RereadOptions{Rating: intPtr(5), SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SessionsCreated)
	assert.Equal(t, 2, summary.ProgressBackfilled)

	list, err := env.sessions.ListSessions(ctx, dune)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].SessionNumber)
	assert.Equal(t, 2015, list[0].CompletedDate.Year())
	assert.Equal(t, 2, list[1].SessionNumber)
	assert.Equal(t, 2022, list[1].CompletedDate.Year())
	assert.NotNil(t, list[1].ArchivedAt)

	id, err := env.reconciler.ResolveISBN(ctx, "0441013597")
	require.NoError(t, err)
	assert.Equal(t, dune, id)

	_, err = env.reconciler.Reread(ctx, 999, []time.Time{time.Now()}, RereadOptions{})
	assert.ErrorIs(t, err, ErrNoCatalogEntry)

	_, err = env.reconciler.ResolveISBN(ctx, "9780201633610")
	assert.ErrorIs(t, err, ErrNoCatalogEntry)

	_, err = env.reconciler.Reread(ctx, dune, nil, RereadOptions{})
	assert.Error(t, err)

	_, err = env.reconciler.Reread(ctx, dune, []time.Time{time.Now()}, RereadOptions{Rating: intPtr(6)})
	assert.Error(t, err)
}

func TestApplyMinConfidence(t *testing.T) {
	book := &matcher.CatalogEntry{ID: 1}
	matches := []matcher.MatchResult{
		{Book: book, Confidence: matcher.ConfidenceExact, Score: 100},
		{Book: book, Confidence: matcher.ConfidenceLow, Score: 61},
		{Confidence: matcher.ConfidenceUnmatched},
	}

	out := ApplyMinConfidence(matches, matcher.ConfidenceMedium)
	assert.True(t, out[0].Matched())
	assert.False(t, out[1].Matched())
	assert.Equal(t, 0.0, out[1].Score)
	assert.Equal(t, matcher.ConfidenceUnmatched, out[1].Confidence)
	assert.True(t, matches[1].Matched(), "input is not modified")

	assert.Equal(t, matches, ApplyMinConfidence(matches, ""))
}
