package imports

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/shelfsync/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	dbPath := filepath.Join(t.TempDir(), "imports.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.ImportRun{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return NewRepository(db)
}

func TestRepository_CreateAndGetRun(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	run := &entities.ImportRun{
		ImportID:     "01HQ3Z8V6M2Y4K7N9P0R1S2T3U",
		Provider:     "goodreads",
		TotalRecords: 12,
		StartedAt:    time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateRun(ctx, run))
	assert.NotZero(t, run.ID)
	assert.Equal(t, entities.ImportStatusPending, run.Status)

	got, err := repo.GetRun(ctx, run.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.TotalRecords)
	assert.Equal(t, "goodreads", got.Provider)
}

func TestRepository_GetRun_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetRun(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepository_SaveRun(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	run := &entities.ImportRun{ImportID: "run-1", Provider: "storygraph", StartedAt: time.Now()}
	require.NoError(t, repo.CreateRun(ctx, run))

	done := time.Now()
	run.Status = entities.ImportStatusCompleted
	run.SessionsCreated = 7
	run.CompletedAt = &done
	require.NoError(t, repo.SaveRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entities.ImportStatusCompleted, got.Status)
	assert.Equal(t, 7, got.SessionsCreated)
	assert.NotNil(t, got.CompletedAt)
}

func TestRepository_CreateRun_DuplicateImportID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateRun(ctx, &entities.ImportRun{ImportID: "dup", StartedAt: time.Now()}))
	assert.Error(t, repo.CreateRun(ctx, &entities.ImportRun{ImportID: "dup", StartedAt: time.Now()}))
}

func TestRepository_ListRecentRuns(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateRun(ctx, &entities.ImportRun{ImportID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	runs, err := repo.ListRecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ImportID)
	assert.Equal(t, "b", runs[1].ImportID)
}
