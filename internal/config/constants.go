package config

import "time"

const (
	DefaultDatabasePath   = "./shelfsync.db"
	DefaultImportCacheTTL = 30 * time.Minute
	DefaultMaxUploadBytes = 10 << 20
)
