package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mrlokans/shelfsync/internal/entities"
)

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) FindActiveSession(ctx context.Context, bookID uint) (*entities.ReadingSession, error) {
	args := m.Called(ctx, bookID)
	session, _ := args.Get(0).(*entities.ReadingSession)
	return session, args.Error(1)
}

func (m *MockSessionStore) FindDuplicateSession(ctx context.Context, bookID uint, status entities.SessionStatus, completed *time.Time, rating *int) (*entities.ReadingSession, error) {
	args := m.Called(ctx, bookID, status, completed, rating)
	session, _ := args.Get(0).(*entities.ReadingSession)
	return session, args.Error(1)
}

func (m *MockSessionStore) ArchiveSession(ctx context.Context, sessionID uint, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

func (m *MockSessionStore) GetNextSessionNumber(ctx context.Context, bookID uint) (int, error) {
	args := m.Called(ctx, bookID)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionStore) CreateSession(ctx context.Context, session *entities.ReadingSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) CreateProgressEntry(ctx context.Context, entry *entities.ProgressEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockSessionStore) CountProgressEntries(ctx context.Context, sessionID uint) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

type MockRatingUpdater struct {
	mock.Mock
}

func (m *MockRatingUpdater) UpdateEntryRating(ctx context.Context, id uint, rating int) error {
	args := m.Called(ctx, id, rating)
	return args.Error(0)
}
