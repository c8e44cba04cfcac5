// Package sessions provides database operations for reading sessions and
// their progress entries.
//
// This package implements the SessionStore interface defined in
// internal/services/interfaces.go.
//
//	var _ services.SessionStore = (*Repository)(nil)
package sessions

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// Repository handles reading session database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new sessions repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActiveSession returns the book's active session, or nil if there is none.
func (r *Repository) FindActiveSession(ctx context.Context, bookID uint) (*entities.ReadingSession, error) {
	var found []entities.ReadingSession
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND is_active = ?", bookID, true).
		Order("session_number DESC").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active session for book %d: %w", bookID, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// FindDuplicateSession returns an existing session of the book that has the
// same status, the same completion day and the same rating, or nil.
// A nil completed date or rating only matches another nil.
func (r *Repository) FindDuplicateSession(ctx context.Context, bookID uint, status entities.SessionStatus, completed *time.Time, rating *int) (*entities.ReadingSession, error) {
	var candidates []entities.ReadingSession
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status = ?", bookID, status).
		Order("session_number ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up sessions for book %d: %w", bookID, err)
	}

	for i := range candidates {
		s := &candidates[i]
		if sameDay(s.CompletedDate, completed) && sameRating(s.Rating, rating) {
			return s, nil
		}
	}
	return nil, nil
}

// ArchiveSession marks a session inactive.
func (r *Repository) ArchiveSession(ctx context.Context, sessionID uint, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entities.ReadingSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"is_active":   false,
			"archived_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to archive session %d: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %d: %w", sessionID, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetNextSessionNumber returns one more than the book's highest session
// number, starting at 1.
func (r *Repository) GetNextSessionNumber(ctx context.Context, bookID uint) (int, error) {
	var next int
	err := r.db.WithContext(ctx).
		Model(&entities.ReadingSession{}).
		Where("book_id = ?", bookID).
		Select("COALESCE(MAX(session_number), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute next session number for book %d: %w", bookID, err)
	}
	return next, nil
}

// CreateSession inserts a session. A zero SessionNumber is filled in with the
// next number for the book.
func (r *Repository) CreateSession(ctx context.Context, session *entities.ReadingSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if session.SessionNumber == 0 {
			next, err := NewRepository(tx).GetNextSessionNumber(ctx, session.BookID)
			if err != nil {
				return err
			}
			session.SessionNumber = next
		}
		if err := tx.Omit("Book").Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session for book %d: %w", session.BookID, err)
		}
		return nil
	})
}

// ListSessions returns the book's sessions ordered by session number.
func (r *Repository) ListSessions(ctx context.Context, bookID uint) ([]entities.ReadingSession, error) {
	var sessions []entities.ReadingSession
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("session_number ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for book %d: %w", bookID, err)
	}
	return sessions, nil
}

// CreateProgressEntry inserts a progress entry.
func (r *Repository) CreateProgressEntry(ctx context.Context, entry *entities.ProgressEntry) error {
	if err := r.db.WithContext(ctx).Omit("Session").Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create progress entry for session %d: %w", entry.SessionID, err)
	}
	return nil
}

// CountProgressEntries returns how many progress entries a session has.
func (r *Repository) CountProgressEntries(ctx context.Context, sessionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.ProgressEntry{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count progress entries for session %d: %w", sessionID, err)
	}
	return count, nil
}

// ListProgressEntries returns a session's progress entries ordered by date.
func (r *Repository) ListProgressEntries(ctx context.Context, sessionID uint) ([]entities.ProgressEntry, error) {
	var entries []entities.ProgressEntry
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("progress_date ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list progress entries for session %d: %w", sessionID, err)
	}
	return entries, nil
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func sameRating(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
