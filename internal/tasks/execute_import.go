package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/matcher"
	"github.com/mrlokans/shelfsync/internal/services"
)

// ImportExecutor executes cached import batches.
type ImportExecutor interface {
	Execute(ctx context.Context, id string, opts services.ExecuteOptions) (*services.ExecutionSummary, error)
}

// ExecuteImportTask executes one cached import batch in the background.
type ExecuteImportTask struct {
	ImportID       string `json:"import_id"`
	SkipDuplicates bool   `json:"skip_duplicates"`
	MinConfidence  string `json:"min_confidence,omitempty"`
}

// Config returns the queue configuration for import executions.
// A batch is consumed by its first attempt, so failures are not retried.
func (t ExecuteImportTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "execute_import",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ExecuteImportProcessor creates a processor function for ExecuteImportTask.
func ExecuteImportProcessor(executor ImportExecutor, logger *zap.Logger) backlite.QueueProcessor[ExecuteImportTask] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, task ExecuteImportTask) error {
		if executor == nil {
			return fmt.Errorf("import executor not configured")
		}

		summary, err := executor.Execute(ctx, task.ImportID, services.ExecuteOptions{
			SkipDuplicates: task.SkipDuplicates,
			MinConfidence:  matcher.Confidence(task.MinConfidence),
		})
		if err != nil {
			return fmt.Errorf("execute import %s: %w", task.ImportID, err)
		}

		logger.Info("background import finished",
			zap.String("import_id", task.ImportID),
			zap.Int("created", summary.SessionsCreated),
			zap.Int("duplicates", summary.DuplicatesFound),
			zap.Int("errors", len(summary.Errors)))
		return nil
	}
}

// NewExecuteImportQueue creates a backlite queue for import executions.
func NewExecuteImportQueue(executor ImportExecutor, logger *zap.Logger) backlite.Queue {
	return backlite.NewQueue(ExecuteImportProcessor(executor, logger))
}
