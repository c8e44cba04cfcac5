// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations
//	├── books/           # Catalog reads and rating writes
//	├── sessions/        # Reading sessions and progress entries
//	└── imports/         # Persisted import runs
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./shelfsync.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	sessionsRepo := sessions.NewRepository(db.DB)
//
//	entries, err := booksRepo.FindAllCatalogEntries(ctx)
//
// # Interface Implementations
//
//   - books.Repository: implements services.CatalogReader and services.RatingUpdater
//   - sessions.Repository: implements services.SessionStore
//   - imports.Repository: implements services.RunRecorder
package database
