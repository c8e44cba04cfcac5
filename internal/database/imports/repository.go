// Package imports persists the outcome of executed import batches.
//
// This package implements the RunRecorder interface defined in
// internal/services/interfaces.go.
//
//	var _ services.RunRecorder = (*Repository)(nil)
package imports

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// ErrRunNotFound is returned when no run exists for an import ID.
var ErrRunNotFound = errors.New("import run not found")

// Repository handles import run database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new import runs repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun inserts a run record.
func (r *Repository) CreateRun(ctx context.Context, run *entities.ImportRun) error {
	if run.Status == "" {
		run.Status = entities.ImportStatusPending
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create import run %s: %w", run.ImportID, err)
	}
	return nil
}

// SaveRun writes every field of an existing run.
func (r *Repository) SaveRun(ctx context.Context, run *entities.ImportRun) error {
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to save import run %s: %w", run.ImportID, err)
	}
	return nil
}

// GetRun returns the run for an import ID.
func (r *Repository) GetRun(ctx context.Context, importID string) (*entities.ImportRun, error) {
	var run entities.ImportRun
	err := r.db.WithContext(ctx).Where("import_id = ?", importID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, importID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import run %s: %w", importID, err)
	}
	return &run, nil
}

// ListRecentRuns returns up to limit runs, newest first.
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]entities.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []entities.ImportRun
	err := r.db.WithContext(ctx).Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	return runs, nil
}
