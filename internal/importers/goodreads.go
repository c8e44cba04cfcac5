package importers

import (
	"fmt"
	"strings"
)

// goodreadsShelves maps Goodreads exclusive shelves onto canonical statuses.
var goodreadsShelves = map[string]Status{
	"read":              StatusRead,
	"currently-reading": StatusCurrentlyReading,
	"to-read":           StatusToRead,
	"paused":            StatusPaused,
	"on-hold":           StatusPaused,
}

// Goodreads has no first-class did-not-finish status; the custom shelves
// people use for it are dropped rather than imported.
var goodreadsAbandonedShelves = map[string]bool{
	"did-not-finish": true,
	"dnf":            true,
	"abandoned":      true,
}

type goodreadsParser struct{}

func (goodreadsParser) requiredColumns() []string {
	return []string{"title", "author", "exclusive shelf"}
}

func (goodreadsParser) parseRow(row csvRow) (ImportRecord, error) {
	record := ImportRecord{
		Title:      row.get("title"),
		Authors:    goodreadsAuthors(row),
		TotalPages: parsePositiveInt(row.get("number of pages")),
		Review:     StripMarkup(row.get("my review")),
		ReadCount:  parseReadCount(row.get("read count")),
	}
	if err := validateRequired(record); err != nil {
		return ImportRecord{}, err
	}

	shelf := canonicalStatusKey(row.get("exclusive shelf"))
	if goodreadsAbandonedShelves[shelf] {
		return ImportRecord{}, &skipRow{reason: "did-not-finish shelf is not imported from goodreads"}
	}
	status, ok := goodreadsShelves[shelf]
	if !ok {
		return ImportRecord{}, &skipRow{reason: fmt.Sprintf("unrecognized shelf %q", row.get("exclusive shelf"))}
	}
	record.Status = status

	assignISBN(&record, row.get("isbn13"))
	assignISBN(&record, row.get("isbn"))

	// Goodreads writes 0 for unrated books.
	if rating := parsePositiveInt(row.get("my rating")); rating >= 1 && rating <= 5 {
		record.Rating = &rating
	}

	record.StartedDate = parseOptionalDate(row.get("date started"))
	record.CompletedDate = parseOptionalDate(row.get("date read"))

	return record, nil
}

// goodreadsAuthors keeps the Author column whole ("Martin Luther King, Jr."
// is one person) and splits only Additional Authors.
func goodreadsAuthors(row csvRow) []string {
	authors := withAuthors(nil, row.get("author"))
	return withAuthors(authors, strings.Split(row.get("additional authors"), ",")...)
}
