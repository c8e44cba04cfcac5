package importers

import (
	"fmt"
	"math"
	"strconv"
)

// storyGraphStatuses maps StoryGraph read statuses onto canonical statuses.
// StoryGraph tracks did-not-finish explicitly, so it is kept as a terminal
// status.
var storyGraphStatuses = map[string]Status{
	"read":              StatusRead,
	"currently-reading": StatusCurrentlyReading,
	"to-read":           StatusToRead,
	"did-not-finish":    StatusDidNotFinish,
	"paused":            StatusPaused,
}

type storyGraphParser struct{}

func (storyGraphParser) requiredColumns() []string {
	return []string{"title", "authors", "read status"}
}

func (storyGraphParser) parseRow(row csvRow) (ImportRecord, error) {
	record := ImportRecord{
		Title:     row.get("title"),
		Authors:   splitAuthors(row.get("authors")),
		Review:    StripMarkup(row.get("review")),
		ReadCount: parseReadCount(row.get("read count")),
	}
	if err := validateRequired(record); err != nil {
		return ImportRecord{}, err
	}

	status, ok := storyGraphStatuses[canonicalStatusKey(row.get("read status"))]
	if !ok {
		return ImportRecord{}, &skipRow{reason: fmt.Sprintf("unrecognized read status %q", row.get("read status"))}
	}
	record.Status = status

	assignISBN(&record, row.get("isbn/uid"))
	record.TotalPages = parsePositiveInt(row.get("pages"))
	record.Rating = parseStarRating(row.get("star rating"))

	if dates := row.get("dates read"); dates != "" {
		record.StartedDate, record.CompletedDate = ParseDateRange(dates)
	} else {
		record.CompletedDate = parseOptionalDate(row.get("last date read"))
	}

	return record, nil
}

// parseStarRating rounds fractional star ratings ("4.5") half up and clamps
// them to 1..5. Empty and zero ratings are treated as unrated.
func parseStarRating(s string) *int {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return nil
	}
	rating := int(math.Floor(f + 0.5))
	rating = max(1, min(5, rating))
	return &rating
}
