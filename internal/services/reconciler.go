package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/importcache"
	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/matcher"
	"github.com/mrlokans/shelfsync/internal/metrics"
)

// ErrNoCatalogEntry is returned when a re-read targets a book that is not in
// the catalog.
var ErrNoCatalogEntry = errors.New("catalog entry not found")

const (
	DefaultPreviewLimit = 50
	MaxPreviewLimit     = 500
)

// ReconcilerConfig holds the collaborators of a Reconciler. Runs, Logger and
// Metrics are optional.
type ReconcilerConfig struct {
	Catalog    CatalogReader
	Importer   *SessionImporter
	Store      *importcache.Store
	Runs       RunRecorder
	Thresholds matcher.Thresholds
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Reconciler composes normalization, matching, the batch cache and session
// import into the upload, preview and execute steps of an import.
type Reconciler struct {
	catalog  CatalogReader
	matcher  *matcher.Matcher
	importer *SessionImporter
	store    *importcache.Store
	runs     RunRecorder
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		catalog:  cfg.Catalog,
		matcher:  matcher.NewMatcher(cfg.Catalog, cfg.Thresholds),
		importer: cfg.Importer,
		store:    cfg.Store,
		runs:     cfg.Runs,
		logger:   logger,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
}

// UploadResult describes a freshly cached batch.
type UploadResult struct {
	ImportID  string                     `json:"import_id"`
	Provider  importers.Provider         `json:"provider"`
	FileName  string                     `json:"file_name,omitempty"`
	TotalRows int                        `json:"total_rows"`
	Records   int                        `json:"records"`
	Counts    map[matcher.Confidence]int `json:"counts"`
	RowErrors []importers.RowError       `json:"row_errors,omitempty"`
	Skipped   []importers.RowSkip        `json:"skipped,omitempty"`
	ExpiresAt time.Time                  `json:"expires_at"`
}

// Upload normalizes an export, matches it against the catalog and caches the
// result. An empty provider is detected from the header row. Structural
// problems with the file are returned as *importers.StructuralError.
func (r *Reconciler) Upload(ctx context.Context, src io.Reader, provider importers.Provider, fileName string) (*UploadResult, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, &importers.StructuralError{Provider: provider, Message: "failed to read upload", Err: err}
	}

	if provider == "" {
		detected, ok := importers.DetectProviderFromCSV(bytes.NewReader(data))
		if !ok {
			return nil, &importers.StructuralError{Message: "could not detect provider from header row"}
		}
		provider = detected
	}

	normalized, err := importers.Normalize(bytes.NewReader(data), provider)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordNormalized(string(provider), len(normalized.Records), len(normalized.Errors), len(normalized.Skipped))

	started := time.Now()
	matches, err := r.matcher.MatchBatch(ctx, normalized.Records)
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveMatchDuration(time.Since(started))

	counts := countConfidences(matches)
	for c, n := range counts {
		r.metrics.RecordMatches(string(c), n)
	}

	batch := r.store.Put(&importcache.Batch{
		Provider:  provider,
		FileName:  fileName,
		TotalRows: normalized.TotalRows,
		Records:   normalized.Records,
		Matches:   matches,
		RowErrors: normalized.Errors,
		Skipped:   normalized.Skipped,
	})

	r.logger.Info("import batch cached",
		zap.String("import_id", batch.ID),
		zap.String("provider", string(provider)),
		zap.Int("rows", normalized.TotalRows),
		zap.Int("records", len(normalized.Records)),
		zap.Int("row_errors", len(normalized.Errors)),
		zap.Int("skipped", len(normalized.Skipped)),
		zap.Int("unmatched", counts[matcher.ConfidenceUnmatched]))

	return &UploadResult{
		ImportID:  batch.ID,
		Provider:  provider,
		FileName:  fileName,
		TotalRows: normalized.TotalRows,
		Records:   len(normalized.Records),
		Counts:    counts,
		RowErrors: normalized.Errors,
		Skipped:   normalized.Skipped,
		ExpiresAt: batch.ExpiresAt,
	}, nil
}

// PreviewFilter selects a page of match results. An empty Confidence keeps
// every result.
type PreviewFilter struct {
	Confidence matcher.Confidence
	Offset     int
	Limit      int
}

// Preview is one page of a cached batch.
type Preview struct {
	ImportID  string                     `json:"import_id"`
	Provider  importers.Provider         `json:"provider"`
	FileName  string                     `json:"file_name,omitempty"`
	TotalRows int                        `json:"total_rows"`
	Counts    map[matcher.Confidence]int `json:"counts"`
	Matches   []matcher.MatchResult      `json:"matches"`
	Total     int                        `json:"total"`
	Offset    int                        `json:"offset"`
	Limit     int                        `json:"limit"`
	HasMore   bool                       `json:"has_more"`
	RowErrors []importers.RowError       `json:"row_errors,omitempty"`
	Skipped   []importers.RowSkip        `json:"skipped,omitempty"`
	ExpiresAt time.Time                  `json:"expires_at"`
}

// Preview returns a filtered page of a cached batch. Unknown and expired
// batches return importcache.ErrBatchNotFound.
func (r *Reconciler) Preview(id string, filter PreviewFilter) (*Preview, error) {
	batch, err := r.store.Get(id)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if limit > MaxPreviewLimit {
		limit = MaxPreviewLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	filtered := batch.Matches
	if filter.Confidence != "" {
		filtered = make([]matcher.MatchResult, 0, len(batch.Matches))
		for _, m := range batch.Matches {
			if m.Confidence == filter.Confidence {
				filtered = append(filtered, m)
			}
		}
	}

	page := []matcher.MatchResult{}
	if offset < len(filtered) {
		end := offset + limit
		if end > len(filtered) {
			end = len(filtered)
		}
		page = filtered[offset:end]
	}

	return &Preview{
		ImportID:  batch.ID,
		Provider:  batch.Provider,
		FileName:  batch.FileName,
		TotalRows: batch.TotalRows,
		Counts:    countConfidences(batch.Matches),
		Matches:   page,
		Total:     len(filtered),
		Offset:    offset,
		Limit:     limit,
		HasMore:   offset+len(page) < len(filtered),
		RowErrors: batch.RowErrors,
		Skipped:   batch.Skipped,
		ExpiresAt: batch.ExpiresAt,
	}, nil
}

// Exists reports whether a live batch is cached under id.
func (r *Reconciler) Exists(id string) bool {
	_, err := r.store.Get(id)
	return err == nil
}

// ExecuteOptions controls the execution of a cached batch.
type ExecuteOptions struct {
	SkipDuplicates bool
	// MinConfidence demotes weaker matches to unmatched. Empty keeps every match.
	MinConfidence matcher.Confidence
}

// Execute consumes a cached batch and imports its sessions. A batch can be
// executed once; later calls return importcache.ErrBatchNotFound.
func (r *Reconciler) Execute(ctx context.Context, id string, opts ExecuteOptions) (*ExecutionSummary, error) {
	batch, err := r.store.Take(id)
	if err != nil {
		return nil, err
	}

	matches := ApplyMinConfidence(batch.Matches, opts.MinConfidence)
	log := r.logger.With(zap.String("import_id", batch.ID), zap.String("provider", string(batch.Provider)))

	run := &entities.ImportRun{
		ImportID:     batch.ID,
		Provider:     string(batch.Provider),
		FileName:     batch.FileName,
		Status:       entities.ImportStatusRunning,
		TotalRecords: len(matches),
		StartedAt:    r.now(),
	}
	recordRun := r.runs != nil
	if recordRun {
		if err := r.runs.CreateRun(ctx, run); err != nil {
			log.Warn("failed to record import run", zap.Error(err))
			recordRun = false
		}
	}

	log.Info("executing import batch", zap.Int("records", len(matches)), zap.Bool("skip_duplicates", opts.SkipDuplicates))
	summary := r.importer.ImportSessions(ctx, matches, ImportOptions{SkipDuplicates: opts.SkipDuplicates})

	if recordRun {
		r.completeRun(context.WithoutCancel(ctx), run, summary, log)
	}

	log.Info("import batch executed",
		zap.Int("created", summary.SessionsCreated),
		zap.Int("skipped", summary.SessionsSkipped),
		zap.Int("duplicates", summary.DuplicatesFound),
		zap.Int("errors", len(summary.Errors)),
		zap.Bool("cancelled", summary.Cancelled))
	return summary, nil
}

// Run returns the persisted outcome of an executed batch.
func (r *Reconciler) Run(ctx context.Context, id string) (*entities.ImportRun, error) {
	if r.runs == nil {
		return nil, fmt.Errorf("import runs are not recorded")
	}
	return r.runs.GetRun(ctx, id)
}

// Discard drops a cached batch. It reports whether a live batch was removed.
func (r *Reconciler) Discard(id string) bool {
	removed := r.store.Delete(id)
	if removed {
		r.logger.Info("import batch discarded", zap.String("import_id", id))
	}
	return removed
}

// Reread records several completed readings of one catalog entry.
func (r *Reconciler) Reread(ctx context.Context, bookID uint, completedDates []time.Time, opts RereadOptions) (*ExecutionSummary, error) {
	if len(completedDates) == 0 {
		return nil, fmt.Errorf("at least one completion date is required")
	}
	if opts.Rating != nil && (*opts.Rating < 1 || *opts.Rating > 5) {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d", *opts.Rating)
	}

	entries, err := r.catalog.FindEntriesByIDs(ctx, []uint{bookID})
	if err != nil {
		return nil, err
	}
	entry, ok := entries[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoCatalogEntry, bookID)
	}
	if opts.TotalPages == 0 {
		opts.TotalPages = entry.TotalPages
	}

	summary := r.importer.ImportRereads(ctx, bookID, completedDates, opts)
	r.logger.Info("re-reads imported",
		zap.Uint("book_id", bookID),
		zap.Int("created", summary.SessionsCreated),
		zap.Int("duplicates", summary.DuplicatesFound))
	return summary, nil
}

// ResolveISBN returns the ID of the catalog entry with the given ISBN.
func (r *Reconciler) ResolveISBN(ctx context.Context, isbn string) (uint, error) {
	entry, err := r.catalog.FindEntryByISBN(ctx, isbn)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, fmt.Errorf("%w: isbn %s", ErrNoCatalogEntry, isbn)
	}
	return entry.ID, nil
}

func (r *Reconciler) completeRun(ctx context.Context, run *entities.ImportRun, summary *ExecutionSummary, log *zap.Logger) {
	completed := r.now()
	run.CompletedAt = &completed
	run.Status = entities.ImportStatusCompleted
	if summary.Cancelled {
		run.Status = entities.ImportStatusCancelled
	}
	run.SessionsCreated = summary.SessionsCreated
	run.SessionsSkipped = summary.SessionsSkipped
	run.DuplicatesFound = summary.DuplicatesFound
	run.UnmatchedRecords = summary.UnmatchedRecords
	run.RatingsUpdated = summary.RatingsUpdated
	run.RatingSyncFailures = summary.RatingSyncFailures
	run.ProgressBackfilled = summary.ProgressBackfilled

	if len(summary.Errors) > 0 {
		if data, err := json.Marshal(summary.Errors); err == nil {
			run.Errors = string(data)
		}
	}

	if err := r.runs.SaveRun(ctx, run); err != nil {
		log.Warn("failed to save import run", zap.Error(err))
	}
}

// ApplyMinConfidence returns matches with every result weaker than min
// turned into an unmatched result. An empty min returns matches unchanged.
func ApplyMinConfidence(matches []matcher.MatchResult, min matcher.Confidence) []matcher.MatchResult {
	if min == "" || min == matcher.ConfidenceUnmatched {
		return matches
	}
	minRank := confidenceRank(min)

	out := make([]matcher.MatchResult, len(matches))
	for i, m := range matches {
		if m.Matched() && confidenceRank(m.Confidence) > minRank {
			m = matcher.MatchResult{Record: m.Record, Confidence: matcher.ConfidenceUnmatched, Reason: matcher.ReasonNoMatch}
		}
		out[i] = m
	}
	return out
}

// confidenceRank orders confidences from strongest (0) to weakest.
func confidenceRank(c matcher.Confidence) int {
	for i, candidate := range matcher.Confidences {
		if candidate == c {
			return i
		}
	}
	return len(matcher.Confidences)
}

func countConfidences(matches []matcher.MatchResult) map[matcher.Confidence]int {
	counts := make(map[matcher.Confidence]int, len(matcher.Confidences))
	for _, c := range matcher.Confidences {
		counts[c] = 0
	}
	for _, m := range matches {
		counts[m.Confidence]++
	}
	return counts
}
