package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrlokans/shelfsync/internal/matcher"
	"github.com/mrlokans/shelfsync/internal/services"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format %q (use text, json or yaml)", format)
}

type importReport struct {
	ImportID  string         `json:"import_id" yaml:"import_id"`
	Provider  string         `json:"provider" yaml:"provider"`
	File      string         `json:"file" yaml:"file"`
	DryRun    bool           `json:"dry_run" yaml:"dry_run"`
	TotalRows int            `json:"total_rows" yaml:"total_rows"`
	Records   int            `json:"records" yaml:"records"`
	Counts    map[string]int `json:"counts" yaml:"counts"`
	RowErrors []string       `json:"row_errors,omitempty" yaml:"row_errors,omitempty"`
	Skipped   []string       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Matches   []matchLine    `json:"matches,omitempty" yaml:"matches,omitempty"`
	Summary   *summaryReport `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type matchLine struct {
	Row        int     `json:"row" yaml:"row"`
	Title      string  `json:"title" yaml:"title"`
	Author     string  `json:"author,omitempty" yaml:"author,omitempty"`
	Reads      int     `json:"reads" yaml:"reads"`
	Confidence string  `json:"confidence" yaml:"confidence"`
	Score      float64 `json:"score" yaml:"score"`
	Reason     string  `json:"reason" yaml:"reason"`
	BookID     uint    `json:"book_id,omitempty" yaml:"book_id,omitempty"`
	BookTitle  string  `json:"book_title,omitempty" yaml:"book_title,omitempty"`
}

type summaryReport struct {
	TotalRecords       int      `json:"total_records" yaml:"total_records"`
	SessionsCreated    int      `json:"sessions_created" yaml:"sessions_created"`
	SessionsSkipped    int      `json:"sessions_skipped" yaml:"sessions_skipped"`
	DuplicatesFound    int      `json:"duplicates_found" yaml:"duplicates_found"`
	UnmatchedRecords   int      `json:"unmatched_records" yaml:"unmatched_records"`
	RatingsUpdated     int      `json:"ratings_updated" yaml:"ratings_updated"`
	RatingSyncFailures int      `json:"rating_sync_failures" yaml:"rating_sync_failures"`
	ProgressBackfilled int      `json:"progress_backfilled" yaml:"progress_backfilled"`
	Cancelled          bool     `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Errors             []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Skipped            []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func newImportReport(upload *services.UploadResult, dryRun bool) *importReport {
	r := &importReport{
		ImportID:  upload.ImportID,
		Provider:  string(upload.Provider),
		File:      filepath.Base(upload.FileName),
		DryRun:    dryRun,
		TotalRows: upload.TotalRows,
		Records:   upload.Records,
		Counts:    make(map[string]int, len(upload.Counts)),
	}
	for conf, n := range upload.Counts {
		r.Counts[string(conf)] = n
	}
	for _, e := range upload.RowErrors {
		r.RowErrors = append(r.RowErrors, e.Error())
	}
	for _, s := range upload.Skipped {
		r.Skipped = append(r.Skipped, fmt.Sprintf("row %d (%s): %s", s.RowNumber, s.Title, s.Reason))
	}
	return r
}

// addMatches records the preview lines and recounts confidences, which may
// differ from the upload after a minimum confidence is applied.
func (r *importReport) addMatches(matches []matcher.MatchResult) {
	for _, c := range matcher.Confidences {
		r.Counts[string(c)] = 0
	}
	for _, m := range matches {
		r.Counts[string(m.Confidence)]++
		line := matchLine{
			Row:        m.Record.RowNumber,
			Title:      m.Record.Title,
			Author:     m.Record.PrimaryAuthor(),
			Reads:      m.Record.ReadCount,
			Confidence: string(m.Confidence),
			Score:      m.Score,
			Reason:     string(m.Reason),
		}
		if m.Book != nil {
			line.BookID = m.Book.ID
			line.BookTitle = m.Book.Title
		}
		r.Matches = append(r.Matches, line)
	}
}

func (r *importReport) addSummary(s *services.ExecutionSummary) {
	sr := &summaryReport{}
	fillSummary(sr, s)
	r.Summary = sr
}

func fillSummary(sr *summaryReport, s *services.ExecutionSummary) {
	*sr = summaryReport{
		TotalRecords:       s.TotalRecords,
		SessionsCreated:    s.SessionsCreated,
		SessionsSkipped:    s.SessionsSkipped,
		DuplicatesFound:    s.DuplicatesFound,
		UnmatchedRecords:   s.UnmatchedRecords,
		RatingsUpdated:     s.RatingsUpdated,
		RatingSyncFailures: s.RatingSyncFailures,
		ProgressBackfilled: s.ProgressBackfilled,
		Cancelled:          s.Cancelled,
	}
	for _, e := range s.Errors {
		sr.Errors = append(sr.Errors, e.Error())
	}
	for _, sk := range s.Skipped {
		sr.Skipped = append(sr.Skipped, describeSkip(sk))
	}
}

func describeSkip(s services.SkippedRecord) string {
	switch {
	case s.RowNumber > 0 && s.Title != "":
		return fmt.Sprintf("row %d (%s): %s", s.RowNumber, s.Title, s.Reason)
	case s.RowNumber > 0:
		return fmt.Sprintf("row %d: %s", s.RowNumber, s.Reason)
	default:
		return s.Reason
	}
}

func writeReport(w io.Writer, format string, report any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}

	switch r := report.(type) {
	case *importReport:
		writeImportText(w, r)
	case *summaryReport:
		writeSummaryText(w, r)
	default:
		return fmt.Errorf("unsupported report type %T", report)
	}
	return nil
}

func writeImportText(w io.Writer, r *importReport) {
	title := "Reading History Import"
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	if r.DryRun {
		fmt.Fprintln(w, "DRY RUN MODE - No changes will be made")
	}
	fmt.Fprintf(w, "\nFile: %s (%s)\n", r.File, r.Provider)
	fmt.Fprintf(w, "Rows: %d, records: %d\n", r.TotalRows, r.Records)

	fmt.Fprintln(w, "\n=== Match Confidence ===")
	for _, c := range matcher.Confidences {
		fmt.Fprintf(w, "%-10s %d\n", c, r.Counts[string(c)])
	}

	if len(r.Matches) > 0 {
		fmt.Fprintln(w, "\n=== Matches ===")
		for _, m := range r.Matches {
			source := fmt.Sprintf("%q", m.Title)
			if m.Author != "" {
				source += " by " + m.Author
			}
			if m.Reads > 1 {
				source += fmt.Sprintf(" (read %d times)", m.Reads)
			}
			if m.BookID == 0 {
				fmt.Fprintf(w, "%4d. %s -> (no match)\n", m.Row, source)
				continue
			}
			fmt.Fprintf(w, "%4d. %s -> #%d %q [%s %.0f, %s]\n", m.Row, source, m.BookID, m.BookTitle, m.Confidence, m.Score, m.Reason)
		}
	}

	writeLines(w, "Rows with errors", r.RowErrors)
	writeLines(w, "Rows not imported", r.Skipped)

	if r.Summary != nil {
		fmt.Fprintln(w)
		writeSummaryText(w, r.Summary)
	} else if r.DryRun {
		fmt.Fprintln(w, "\nDry run complete. Use without --dry-run to import.")
	}
}

func writeSummaryText(w io.Writer, s *summaryReport) {
	fmt.Fprintln(w, "=== Import Summary ===")
	fmt.Fprintf(w, "Records:              %d\n", s.TotalRecords)
	fmt.Fprintf(w, "Sessions created:     %d\n", s.SessionsCreated)
	fmt.Fprintf(w, "Sessions skipped:     %d\n", s.SessionsSkipped)
	fmt.Fprintf(w, "  duplicates:         %d\n", s.DuplicatesFound)
	fmt.Fprintf(w, "  unmatched:          %d\n", s.UnmatchedRecords)
	fmt.Fprintf(w, "Ratings updated:      %d\n", s.RatingsUpdated)
	fmt.Fprintf(w, "Rating sync failures: %d\n", s.RatingSyncFailures)
	fmt.Fprintf(w, "Progress backfilled:  %d\n", s.ProgressBackfilled)
	if s.Cancelled {
		fmt.Fprintln(w, "Import was cancelled before all records were processed")
	}
	writeLines(w, "Errors", s.Errors)
	writeLines(w, "Skipped", s.Skipped)
}

func writeLines(w io.Writer, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d %s:\n", len(lines), strings.ToLower(heading))
	for _, l := range lines {
		fmt.Fprintf(w, "  - %s\n", l)
	}
}
