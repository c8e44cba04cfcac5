package importers

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies the reading tracker an export came from.
type Provider string

const (
	ProviderGoodreads  Provider = "goodreads"
	ProviderStoryGraph Provider = "storygraph"
)

// Providers lists every supported export format.
var Providers = []Provider{ProviderGoodreads, ProviderStoryGraph}

// ParseProvider maps a user-supplied tag to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "goodreads":
		return ProviderGoodreads, nil
	case "storygraph", "thestorygraph", "the-storygraph":
		return ProviderStoryGraph, nil
	}
	return "", fmt.Errorf("unsupported provider: %q", s)
}

// Status is the canonical reading status of an imported record.
type Status string

const (
	StatusRead             Status = "read"
	StatusCurrentlyReading Status = "currently-reading"
	StatusToRead           Status = "to-read"
	StatusDidNotFinish     Status = "did-not-finish"
	StatusPaused           Status = "paused"
)

// ImportRecord is one normalized row of an export. It carries no knowledge
// of the catalog and is not modified after normalization.
type ImportRecord struct {
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	ISBN          string     `json:"isbn,omitempty"`
	ISBN13        string     `json:"isbn13,omitempty"`
	TotalPages    int        `json:"total_pages,omitempty"`
	Rating        *int       `json:"rating,omitempty"`
	StartedDate   *time.Time `json:"started_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	Status        Status     `json:"status"`
	Review        string     `json:"review,omitempty"`
	ReadCount     int        `json:"read_count"`
	RowNumber     int        `json:"row_number"`
	Provider      Provider   `json:"provider"`
}

// Identifier returns the record's preferred ISBN: ISBN-13 when present,
// otherwise ISBN-10.
func (r ImportRecord) Identifier() string {
	if r.ISBN13 != "" {
		return r.ISBN13
	}
	return r.ISBN
}

// PrimaryAuthor returns the first listed author.
func (r ImportRecord) PrimaryAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// RowError describes a row that could not be normalized. The row is left
// out of the batch; the rest of the batch is unaffected.
type RowError struct {
	RowNumber int    `json:"row_number"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message"`
}

func (e RowError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("row %d (%s): %s", e.RowNumber, e.Title, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.RowNumber, e.Message)
}

// RowSkip describes a well-formed row that is deliberately not imported,
// such as a shelf with no canonical status.
type RowSkip struct {
	RowNumber int    `json:"row_number"`
	Title     string `json:"title,omitempty"`
	Reason    string `json:"reason"`
}

// StructuralError means the export as a whole is unusable. No records are
// produced when it is returned.
type StructuralError struct {
	Provider       Provider
	Message        string
	MissingColumns []string
	Err            error
}

func (e *StructuralError) Error() string {
	msg := e.Message
	if len(e.MissingColumns) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.MissingColumns, ", "))
	}
	if e.Provider != "" {
		msg = fmt.Sprintf("%s export: %s", e.Provider, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// NormalizeResult is the outcome of normalizing one export.
type NormalizeResult struct {
	Provider  Provider       `json:"provider"`
	TotalRows int            `json:"total_rows"`
	Records   []ImportRecord `json:"records"`
	Errors    []RowError     `json:"errors,omitempty"`
	Skipped   []RowSkip      `json:"skipped,omitempty"`
}
