package entities

import "time"

// SessionStatus is the lifecycle state of a reading session.
type SessionStatus string

const (
	SessionStatusToRead  SessionStatus = "to-read"
	SessionStatusReading SessionStatus = "reading"
	SessionStatusRead    SessionStatus = "read"
)

// ReadingSession is one attempt at reading a book. SessionNumber increases
// by one for every new session of the same book.
type ReadingSession struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	BookID        uint          `gorm:"index;not null" json:"book_id"`
	SessionNumber int           `gorm:"not null" json:"session_number"`
	Status        SessionStatus `gorm:"size:20;index" json:"status"`
	StartedDate   *time.Time    `json:"started_date,omitempty"`
	CompletedDate *time.Time    `gorm:"index" json:"completed_date,omitempty"`
	Rating        *int          `json:"rating,omitempty"`
	Review        string        `gorm:"type:text" json:"review,omitempty"`
	IsActive      bool          `gorm:"index" json:"is_active"`
	ArchivedAt    *time.Time    `json:"archived_at,omitempty"`
	Book          Book          `gorm:"foreignKey:BookID" json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type ProgressEntry struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	BookID       uint           `gorm:"index;not null" json:"book_id"`
	SessionID    uint           `gorm:"index;not null" json:"session_id"`
	CurrentPage  int            `json:"current_page"`
	Percentage   float64        `json:"percentage"`
	ProgressDate time.Time      `gorm:"index" json:"progress_date"`
	Notes        string         `gorm:"type:text" json:"notes,omitempty"`
	Session      ReadingSession `gorm:"foreignKey:SessionID" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (ReadingSession) TableName() string {
	return "reading_sessions"
}

func (ProgressEntry) TableName() string {
	return "progress_entries"
}
