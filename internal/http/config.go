package http

import (
	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/importcache"
	"github.com/mrlokans/shelfsync/internal/metrics"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Reconciler ImportReconciler
	History    BookHistoryReader
	Database   *database.Database
	Cache      *importcache.Store

	// Task queue (optional); executions run inline without it
	TaskQueue TaskQueue

	// Metrics endpoint
	Metrics        *metrics.Metrics
	MetricsEnabled bool

	// Import behaviour
	MaxUploadBytes int64
	SkipDuplicates bool

	// Application info
	Version string

	Logger *zap.Logger
}
