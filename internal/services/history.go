package services

import (
	"context"
	"fmt"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// BookLookup loads a single catalog book. IsNotFound classifies its errors.
type BookLookup interface {
	GetBookByID(ctx context.Context, id uint) (*entities.Book, error)
}

// SessionHistory lists stored sessions and their progress.
type SessionHistory interface {
	ListSessions(ctx context.Context, bookID uint) ([]entities.ReadingSession, error)
	ListProgressEntries(ctx context.Context, sessionID uint) ([]entities.ProgressEntry, error)
}

// SessionWithProgress is a session together with its progress entries.
type SessionWithProgress struct {
	entities.ReadingSession
	Progress []entities.ProgressEntry `json:"progress"`
}

// BookHistory is the reading history of one book.
type BookHistory struct {
	Book     *entities.Book        `json:"book"`
	Sessions []SessionWithProgress `json:"sessions"`
}

// HistoryReader assembles the reading history of catalog books, so imported
// sessions can be reviewed after execution.
type HistoryReader struct {
	books      BookLookup
	sessions   SessionHistory
	isNotFound func(error) bool
}

// NewHistoryReader creates a HistoryReader. isNotFound reports whether a
// BookLookup error means the book does not exist.
func NewHistoryReader(books BookLookup, sessions SessionHistory, isNotFound func(error) bool) *HistoryReader {
	return &HistoryReader{books: books, sessions: sessions, isNotFound: isNotFound}
}

// History returns the book with its sessions in session-number order.
func (h *HistoryReader) History(ctx context.Context, bookID uint) (*BookHistory, error) {
	book, err := h.books.GetBookByID(ctx, bookID)
	if err != nil {
		if h.isNotFound != nil && h.isNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrNoCatalogEntry, bookID)
		}
		return nil, fmt.Errorf("failed to load book %d: %w", bookID, err)
	}

	sessions, err := h.sessions.ListSessions(ctx, bookID)
	if err != nil {
		return nil, err
	}

	history := &BookHistory{Book: book, Sessions: make([]SessionWithProgress, 0, len(sessions))}
	for _, s := range sessions {
		progress, err := h.sessions.ListProgressEntries(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		if progress == nil {
			progress = []entities.ProgressEntry{}
		}
		history.Sessions = append(history.Sessions, SessionWithProgress{ReadingSession: s, Progress: progress})
	}
	return history, nil
}
