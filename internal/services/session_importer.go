package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/matcher"
	"github.com/mrlokans/shelfsync/internal/metrics"
)

// Skip reasons reported in ExecutionSummary.Skipped.
const (
	SkipReasonDidNotFinish = "Did not finish"
	SkipReasonUnmatched    = "No catalog match"
	SkipReasonDuplicate    = "Duplicate session"
)

// ImportOptions controls a session import.
type ImportOptions struct {
	SkipDuplicates bool
}

// RereadOptions controls a re-read import.
type RereadOptions struct {
	Rating         *int
	Review         string
	SkipDuplicates bool
	// TotalPages is the page count written to backfilled progress entries.
	TotalPages int
}

// SkippedRecord is a record that intentionally did not produce a session.
type SkippedRecord struct {
	RowNumber int    `json:"row_number,omitempty"`
	Title     string `json:"title,omitempty"`
	BookID    uint   `json:"book_id,omitempty"`
	Reason    string `json:"reason"`
}

// ExecutionSummary totals one execution. SessionsSkipped counts every record
// that did not produce a session; DuplicatesFound and UnmatchedRecords are
// the parts of it caused by duplicates and missing catalog entries.
type ExecutionSummary struct {
	TotalRecords       int                  `json:"total_records"`
	SessionsCreated    int                  `json:"sessions_created"`
	SessionsSkipped    int                  `json:"sessions_skipped"`
	DuplicatesFound    int                  `json:"duplicates_found"`
	UnmatchedRecords   int                  `json:"unmatched_records"`
	RatingsUpdated     int                  `json:"ratings_updated"`
	RatingSyncFailures int                  `json:"rating_sync_failures"`
	ProgressBackfilled int                  `json:"progress_backfilled"`
	Cancelled          bool                 `json:"cancelled,omitempty"`
	Errors             []importers.RowError `json:"errors,omitempty"`
	Skipped            []SkippedRecord      `json:"skipped,omitempty"`
}

// createdSession remembers what the finishing pass needs about a new session.
type createdSession struct {
	session    *entities.ReadingSession
	row        int
	title      string
	totalPages int
	note       string
}

// SessionImporter turns match results into reading sessions.
type SessionImporter struct {
	sessions SessionStore
	ratings  RatingUpdater
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSessionImporter creates a SessionImporter. logger and m may be nil.
func NewSessionImporter(sessions SessionStore, ratings RatingUpdater, logger *zap.Logger, m *metrics.Metrics) *SessionImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionImporter{
		sessions: sessions,
		ratings:  ratings,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// ImportSessions creates one session per matched record.
//
// Records are independent: a failing record is reported in the summary and
// the batch continues. Cancelling ctx stops before the next record; sessions
// created so far are kept and still receive their ratings and progress.
func (s *SessionImporter) ImportSessions(ctx context.Context, matches []matcher.MatchResult, opts ImportOptions) *ExecutionSummary {
	summary := &ExecutionSummary{TotalRecords: len(matches)}
	var created []createdSession

	for _, m := range matches {
		if ctx.Err() != nil {
			summary.Cancelled = true
			s.logger.Warn("session import cancelled",
				zap.Int("processed", summary.SessionsCreated+summary.SessionsSkipped+len(summary.Errors)),
				zap.Int("total", summary.TotalRecords))
			break
		}

		record := m.Record
		if m.Book == nil {
			summary.UnmatchedRecords++
			s.skip(summary, SkippedRecord{RowNumber: record.RowNumber, Title: record.Title, Reason: SkipReasonUnmatched})
			continue
		}
		bookID := m.Book.ID

		if record.Status == importers.StatusDidNotFinish {
			s.skip(summary, SkippedRecord{RowNumber: record.RowNumber, Title: record.Title, BookID: bookID, Reason: SkipReasonDidNotFinish})
			continue
		}

		status, ok := SessionStatusFor(record.Status)
		if !ok {
			s.fail(summary, record.RowNumber, record.Title, fmt.Errorf("unsupported status %q", record.Status))
			continue
		}

		started, completed := s.sessionDates(record, status)

		if opts.SkipDuplicates {
			dup, err := s.sessions.FindDuplicateSession(ctx, bookID, status, completed, record.Rating)
			if err != nil {
				s.fail(summary, record.RowNumber, record.Title, err)
				continue
			}
			if dup != nil {
				summary.DuplicatesFound++
				s.skip(summary, SkippedRecord{RowNumber: record.RowNumber, Title: record.Title, BookID: bookID, Reason: SkipReasonDuplicate})
				continue
			}
		}

		if status != entities.SessionStatusToRead {
			if err := s.archiveActive(ctx, bookID); err != nil {
				s.fail(summary, record.RowNumber, record.Title, err)
				continue
			}
		}

		session := &entities.ReadingSession{
			BookID:        bookID,
			Status:        status,
			StartedDate:   started,
			CompletedDate: completed,
			Rating:        record.Rating,
			Review:        record.Review,
			IsActive:      status != entities.SessionStatusRead,
		}
		if err := s.create(ctx, session); err != nil {
			s.fail(summary, record.RowNumber, record.Title, err)
			continue
		}

		summary.SessionsCreated++
		created = append(created, createdSession{
			session:    session,
			row:        record.RowNumber,
			title:      record.Title,
			totalPages: totalPages(m),
			note:       fmt.Sprintf("Imported from %s", record.Provider),
		})
		s.logger.Debug("session created",
			zap.Int("row", record.RowNumber),
			zap.Uint("book_id", bookID),
			zap.Uint("session_id", session.ID),
			zap.String("status", string(status)))
	}

	s.finish(ctx, summary, created)
	return summary
}

// ImportRereads creates one archived "read" session per completion date, in
// chronological order with consecutive session numbers.
func (s *SessionImporter) ImportRereads(ctx context.Context, bookID uint, completedDates []time.Time, opts RereadOptions) *ExecutionSummary {
	dates := make([]time.Time, len(completedDates))
	copy(dates, completedDates)
	sort.SliceStable(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	summary := &ExecutionSummary{TotalRecords: len(dates)}
	var created []createdSession

	for i, date := range dates {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		completed := date
		row := i + 1

		if opts.SkipDuplicates {
			dup, err := s.sessions.FindDuplicateSession(ctx, bookID, entities.SessionStatusRead, &completed, opts.Rating)
			if err != nil {
				s.fail(summary, row, "", err)
				continue
			}
			if dup != nil {
				summary.DuplicatesFound++
				s.skip(summary, SkippedRecord{RowNumber: row, BookID: bookID, Reason: SkipReasonDuplicate})
				continue
			}
		}

		archivedAt := s.now()
		session := &entities.ReadingSession{
			BookID:        bookID,
			Status:        entities.SessionStatusRead,
			CompletedDate: &completed,
			Rating:        opts.Rating,
			Review:        opts.Review,
			IsActive:      false,
			ArchivedAt:    &archivedAt,
		}
		if err := s.create(ctx, session); err != nil {
			s.fail(summary, row, "", err)
			continue
		}
		summary.SessionsCreated++
		created = append(created, createdSession{session: session, row: row, totalPages: opts.TotalPages, note: "Re-read"})
	}

	s.finish(ctx, summary, created)
	return summary
}

// SessionStatusFor maps a record status onto a session status. Did-not-finish
// has no session status.
func SessionStatusFor(status importers.Status) (entities.SessionStatus, bool) {
	switch status {
	case importers.StatusRead:
		return entities.SessionStatusRead, true
	case importers.StatusCurrentlyReading:
		return entities.SessionStatusReading, true
	case importers.StatusToRead, importers.StatusPaused:
		return entities.SessionStatusToRead, true
	}
	return "", false
}

func (s *SessionImporter) sessionDates(record importers.ImportRecord, status entities.SessionStatus) (started, completed *time.Time) {
	switch status {
	case entities.SessionStatusRead:
		return record.StartedDate, record.CompletedDate
	case entities.SessionStatusReading:
		switch {
		case record.StartedDate != nil:
			return record.StartedDate, nil
		case record.CompletedDate != nil:
			return record.CompletedDate, nil
		default:
			now := s.now()
			return &now, nil
		}
	}
	return nil, nil
}

func (s *SessionImporter) archiveActive(ctx context.Context, bookID uint) error {
	active, err := s.sessions.FindActiveSession(ctx, bookID)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}
	if err := s.sessions.ArchiveSession(ctx, active.ID, s.now()); err != nil {
		return err
	}
	s.logger.Debug("archived active session", zap.Uint("book_id", bookID), zap.Uint("session_id", active.ID))
	return nil
}

func (s *SessionImporter) create(ctx context.Context, session *entities.ReadingSession) error {
	next, err := s.sessions.GetNextSessionNumber(ctx, session.BookID)
	if err != nil {
		return err
	}
	session.SessionNumber = next
	return s.sessions.CreateSession(ctx, session)
}

// finish applies ratings and backfills progress for the sessions created in
// this run. Each book's catalog rating is written once, from its latest rated
// session. It ignores cancellation of ctx so that every created session is
// completed.
func (s *SessionImporter) finish(ctx context.Context, summary *ExecutionSummary, created []createdSession) {
	ctx = context.WithoutCancel(ctx)

	for _, c := range latestRatedPerBook(created) {
		if err := s.ratings.UpdateEntryRating(ctx, c.session.BookID, *c.session.Rating); err != nil {
			summary.RatingSyncFailures++
			s.fail(summary, c.row, c.title, fmt.Errorf("rating sync failed: %w", err))
			continue
		}
		summary.RatingsUpdated++
	}

	for _, c := range created {
		if c.session.Status != entities.SessionStatusRead {
			continue
		}
		ok, err := s.backfillProgress(ctx, c)
		if err != nil {
			s.fail(summary, c.row, c.title, fmt.Errorf("progress backfill failed: %w", err))
			continue
		}
		if ok {
			summary.ProgressBackfilled++
		}
	}

	s.metrics.RecordExecution(summary.SessionsCreated, summary.RatingsUpdated, summary.RatingSyncFailures, summary.ProgressBackfilled)
}

// latestRatedPerBook picks, per book, the rated session with the latest
// effective date. Ties go to the session created last. Books keep the order
// in which they were first seen.
func latestRatedPerBook(created []createdSession) []createdSession {
	var order []uint
	latest := make(map[uint]createdSession)
	for _, c := range created {
		if c.session.Rating == nil {
			continue
		}
		id := c.session.BookID
		current, ok := latest[id]
		if !ok {
			order = append(order, id)
		} else if effectiveDate(c.session).Before(effectiveDate(current.session)) {
			continue
		}
		latest[id] = c
	}

	out := make([]createdSession, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out
}

func effectiveDate(session *entities.ReadingSession) time.Time {
	switch {
	case session.CompletedDate != nil:
		return *session.CompletedDate
	case session.StartedDate != nil:
		return *session.StartedDate
	}
	return session.CreatedAt
}

func (s *SessionImporter) backfillProgress(ctx context.Context, c createdSession) (bool, error) {
	count, err := s.sessions.CountProgressEntries(ctx, c.session.ID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	date := c.session.CreatedAt
	if c.session.CompletedDate != nil {
		date = *c.session.CompletedDate
	}
	if date.IsZero() {
		date = s.now()
	}

	entry := &entities.ProgressEntry{
		BookID:       c.session.BookID,
		SessionID:    c.session.ID,
		CurrentPage:  c.totalPages,
		Percentage:   100,
		ProgressDate: date,
		Notes:        c.note,
	}
	if err := s.sessions.CreateProgressEntry(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionImporter) skip(summary *ExecutionSummary, rec SkippedRecord) {
	summary.SessionsSkipped++
	summary.Skipped = append(summary.Skipped, rec)
	s.metrics.RecordSessionSkipped(rec.Reason)
}

func (s *SessionImporter) fail(summary *ExecutionSummary, row int, title string, err error) {
	summary.Errors = append(summary.Errors, importers.RowError{RowNumber: row, Title: title, Message: err.Error()})
	s.logger.Warn("import record failed", zap.Int("row", row), zap.String("title", title), zap.Error(err))
}

func totalPages(m matcher.MatchResult) int {
	if m.Book != nil && m.Book.TotalPages > 0 {
		return m.Book.TotalPages
	}
	return m.Record.TotalPages
}
