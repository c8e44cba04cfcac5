package entities

import "time"

type ImportStatus string

const (
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusCancelled ImportStatus = "cancelled"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportRun records the outcome of executing one cached import batch.
type ImportRun struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	ImportID           string       `gorm:"uniqueIndex;size:26" json:"import_id"`
	Provider           string       `gorm:"size:20" json:"provider"`
	FileName           string       `gorm:"size:512" json:"file_name,omitempty"`
	Status             ImportStatus `gorm:"size:20;default:'pending'" json:"status"`
	TotalRecords       int          `json:"total_records"`
	SessionsCreated    int          `json:"sessions_created"`
	SessionsSkipped    int          `json:"sessions_skipped"`
	DuplicatesFound    int          `json:"duplicates_found"`
	UnmatchedRecords   int          `json:"unmatched_records"`
	RatingsUpdated     int          `json:"ratings_updated"`
	RatingSyncFailures int          `json:"rating_sync_failures"`
	ProgressBackfilled int          `json:"progress_backfilled"`
	Errors             string       `gorm:"type:text" json:"errors,omitempty"` // JSON array of row errors
	StartedAt          time.Time    `json:"started_at"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`
}

func (ImportRun) TableName() string {
	return "import_runs"
}
