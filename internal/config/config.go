package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/mrlokans/shelfsync/internal/matcher"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Log
		Import
		Match
		Tasks
		Metrics
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Log struct {
		Level  string // debug, info, warn, error
		Format string // console or json
	}
	Import struct {
		CacheTTL       time.Duration
		SweepSchedule  string // Cron format: "@every 1m"
		MaxUploadBytes int64
		SkipDuplicates bool
	}
	Match struct {
		Thresholds matcher.Thresholds
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Metrics struct {
		Enabled bool
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	// Import pipeline defaults
	v.SetDefault("import_cache_ttl", DefaultImportCacheTTL)
	v.SetDefault("import_sweep_schedule", "@every 1m")
	v.SetDefault("import_max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("import_skip_duplicates", true)

	// Matching thresholds
	th := matcher.DefaultThresholds()
	v.SetDefault("match_isbn_title_min", th.ISBNTitleMin)
	v.SetDefault("match_title_author_title_min", th.TitleAuthorTitleMin)
	v.SetDefault("match_primary_author_min", th.PrimaryAuthorMin)
	v.SetDefault("match_strict_title_min", th.StrictTitleMin)
	v.SetDefault("match_author_set_min", th.AuthorSetMin)
	v.SetDefault("match_fuzzy_title_min", th.FuzzyTitleMin)
	v.SetDefault("match_relaxed_title_min", th.RelaxedTitleMin)
	v.SetDefault("match_substring_min_length", th.SubstringMinLength)
	v.SetDefault("match_substring_author_min", th.SubstringAuthorMin)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("metrics_enabled", true)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Import: Import{
			CacheTTL:       v.GetDuration("IMPORT_CACHE_TTL"),
			SweepSchedule:  v.GetString("IMPORT_SWEEP_SCHEDULE"),
			MaxUploadBytes: v.GetInt64("IMPORT_MAX_UPLOAD_BYTES"),
			SkipDuplicates: v.GetBool("IMPORT_SKIP_DUPLICATES"),
		},
		Match: Match{
			Thresholds: matcher.Thresholds{
				ISBNTitleMin:        v.GetFloat64("MATCH_ISBN_TITLE_MIN"),
				TitleAuthorTitleMin: v.GetFloat64("MATCH_TITLE_AUTHOR_TITLE_MIN"),
				PrimaryAuthorMin:    v.GetFloat64("MATCH_PRIMARY_AUTHOR_MIN"),
				StrictTitleMin:      v.GetFloat64("MATCH_STRICT_TITLE_MIN"),
				AuthorSetMin:        v.GetFloat64("MATCH_AUTHOR_SET_MIN"),
				FuzzyTitleMin:       v.GetFloat64("MATCH_FUZZY_TITLE_MIN"),
				RelaxedTitleMin:     v.GetFloat64("MATCH_RELAXED_TITLE_MIN"),
				SubstringMinLength:  v.GetInt("MATCH_SUBSTRING_MIN_LENGTH"),
				SubstringAuthorMin:  v.GetFloat64("MATCH_SUBSTRING_AUTHOR_MIN"),
			},
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}
}
