package http

import (
	"context"
	"io"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/services"
)

// Interfaces consumed by the HTTP controllers. *services.Reconciler,
// *services.HistoryReader and *tasks.Client satisfy them; tests substitute fakes.

// ImportReconciler runs the upload, preview and execute flow.
type ImportReconciler interface {
	Upload(ctx context.Context, src io.Reader, provider importers.Provider, fileName string) (*services.UploadResult, error)
	Preview(id string, filter services.PreviewFilter) (*services.Preview, error)
	Exists(id string) bool
	Execute(ctx context.Context, id string, opts services.ExecuteOptions) (*services.ExecutionSummary, error)
	Run(ctx context.Context, id string) (*entities.ImportRun, error)
	Discard(id string) bool
	Reread(ctx context.Context, bookID uint, completedDates []time.Time, opts services.RereadOptions) (*services.ExecutionSummary, error)
}

// TaskQueue enqueues background tasks and reports their status.
type TaskQueue interface {
	Enqueue(task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// BookHistoryReader loads the reading history of one book.
type BookHistoryReader interface {
	History(ctx context.Context, bookID uint) (*services.BookHistory, error)
}
