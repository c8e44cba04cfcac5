package importers

import (
	"fmt"
	"strings"
	"time"
)

var dateFormats = []string{
	"2006/01/02",
	"2006-01-02",
	"2006/1/2",
	"2006-1-2",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC3339,
}

// ParseDate parses a calendar date in any of the formats reading trackers
// export and returns it as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// parseOptionalDate returns nil for empty or unparseable values.
func parseOptionalDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

// ParseDateRange parses a compound "start-end" reading range. When several
// ranges are listed (comma separated) the last one is used; commas inside
// dates such as "Jan 5, 2024" do not separate ranges. Either side may be
// empty: "2024/01/05-" is an open range with only a start date.
// A value without a separator is treated as an end date only.
func ParseDateRange(s string) (started, completed *time.Time) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	// Shortest trailing segment that parses wins, falling back to the whole value.
	for i := len(s); i >= 0; i-- {
		if i > 0 && s[i-1] != ',' {
			continue
		}
		segment := strings.TrimSpace(s[i:])
		if segment == "" {
			continue
		}
		if started, completed, ok := parseRangeSegment(segment); ok {
			return started, completed
		}
	}
	return nil, nil
}

func parseRangeSegment(s string) (started, completed *time.Time, ok bool) {
	if t := parseOptionalDate(s); t != nil {
		return nil, t, true
	}
	start, end, found := splitDateRange(s)
	if !found {
		return nil, nil, false
	}
	started, completed = parseOptionalDate(start), parseOptionalDate(end)
	if started == nil && strings.TrimSpace(start) != "" {
		return nil, nil, false
	}
	if completed == nil && strings.TrimSpace(end) != "" {
		return nil, nil, false
	}
	return started, completed, started != nil || completed != nil
}

func splitDateRange(s string) (string, string, bool) {
	s = strings.NewReplacer("\u2013", "-", "\u2014", "-").Replace(s)

	if before, after, found := strings.Cut(s, " - "); found {
		return before, after, true
	}
	if before, after, found := strings.Cut(s, " to "); found {
		return before, after, true
	}

	parts := strings.Split(s, "-")
	switch len(parts) {
	case 2:
		return parts[0], parts[1], true
	case 6:
		// ISO dates on both sides: 2024-01-05-2024-01-20
		return strings.Join(parts[:3], "-"), strings.Join(parts[3:], "-"), true
	case 4:
		// ISO start with an open end: 2024-01-05-
		if parts[3] == "" {
			return strings.Join(parts[:3], "-"), "", true
		}
	}
	return "", "", false
}
