package services

import (
	"context"
	"time"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/matcher"
)

// CatalogReader provides read-only access to the book catalog.
type CatalogReader interface {
	FindAllCatalogEntries(ctx context.Context) ([]matcher.CatalogEntry, error)
	FindEntryByISBN(ctx context.Context, isbn string) (*matcher.CatalogEntry, error)
	FindEntriesByIDs(ctx context.Context, ids []uint) (map[uint]matcher.CatalogEntry, error)
}

// RatingUpdater writes the book-level rating.
type RatingUpdater interface {
	UpdateEntryRating(ctx context.Context, id uint, rating int) error
}

// SessionStore is the reading session collaborator used by imports.
// Lookups return nil and no error when nothing matches.
type SessionStore interface {
	FindActiveSession(ctx context.Context, bookID uint) (*entities.ReadingSession, error)
	FindDuplicateSession(ctx context.Context, bookID uint, status entities.SessionStatus, completed *time.Time, rating *int) (*entities.ReadingSession, error)
	ArchiveSession(ctx context.Context, sessionID uint, at time.Time) error
	GetNextSessionNumber(ctx context.Context, bookID uint) (int, error)
	CreateSession(ctx context.Context, session *entities.ReadingSession) error
	CreateProgressEntry(ctx context.Context, entry *entities.ProgressEntry) error
	CountProgressEntries(ctx context.Context, sessionID uint) (int64, error)
}

// RunRecorder persists the outcome of executed import batches.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *entities.ImportRun) error
	SaveRun(ctx context.Context, run *entities.ImportRun) error
	GetRun(ctx context.Context, importID string) (*entities.ImportRun, error)
}
