package entrypoint

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/books"
	"github.com/mrlokans/shelfsync/internal/database/imports"
	"github.com/mrlokans/shelfsync/internal/database/sessions"
	"github.com/mrlokans/shelfsync/internal/importcache"
	"github.com/mrlokans/shelfsync/internal/metrics"
	"github.com/mrlokans/shelfsync/internal/services"
)

// App holds the wired import pipeline shared by the server and the CLI.
type App struct {
	DB         *database.Database
	Books      *books.Repository
	Sessions   *sessions.Repository
	Runs       *imports.Repository
	Cache      *importcache.Store
	Metrics    *metrics.Metrics
	Reconciler *services.Reconciler
	History    *services.HistoryReader
	Logger     *zap.Logger
}

// NewApp opens the database and wires the pipeline. The batch sweeper is not
// started; servers call StartSweeper.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
	}

	app := &App{
		DB:       db,
		Books:    books.NewRepository(db.DB),
		Sessions: sessions.NewRepository(db.DB),
		Runs:     imports.NewRepository(db.DB),
		Metrics:  m,
		Logger:   logger,
	}
	app.Cache = importcache.NewStore(cfg.Import.CacheTTL,
		importcache.WithLogger(logger.Named("importcache")),
		importcache.WithSizeObserver(m.SetCachedBatches),
	)
	app.Reconciler = services.NewReconciler(services.ReconcilerConfig{
		Catalog:    app.Books,
		Importer:   services.NewSessionImporter(app.Sessions, app.Books, logger.Named("importer"), m),
		Store:      app.Cache,
		Runs:       app.Runs,
		Thresholds: cfg.Match.Thresholds,
		Logger:     logger.Named("reconciler"),
		Metrics:    m,
	})

	app.History = services.NewHistoryReader(app.Books, app.Sessions, books.IsNotFound)

	logger.Info("database ready", zap.String("path", cfg.Database.Path))
	return app, nil
}

// StartSweeper evicts expired batches on the configured schedule.
func (a *App) StartSweeper(schedule string) error {
	return a.Cache.Start(schedule)
}

// Close stops the sweeper and closes the database.
func (a *App) Close() error {
	a.Cache.Stop()
	_ = a.Logger.Sync()
	return a.DB.Close()
}
