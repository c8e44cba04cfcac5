package importers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// rowParser turns one data row of a provider export into an ImportRecord.
type rowParser interface {
	requiredColumns() []string
	parseRow(row csvRow) (ImportRecord, error)
}

// skipRow is returned by a rowParser for rows that are valid but not imported.
type skipRow struct {
	reason string
}

func (s *skipRow) Error() string {
	return s.reason
}

func parserFor(provider Provider) (rowParser, error) {
	switch provider {
	case ProviderGoodreads:
		return goodreadsParser{}, nil
	case ProviderStoryGraph:
		return storyGraphParser{}, nil
	}
	return nil, &StructuralError{Message: fmt.Sprintf("unsupported provider %q", provider)}
}

// Normalize parses a CSV export with a header row into ImportRecords.
//
// Required columns are validated before any row is read: a missing column,
// an unreadable header or an unknown provider returns a *StructuralError and
// no records. Rows that fail to parse are reported in NormalizeResult.Errors
// and rows with a status that is not imported land in NormalizeResult.Skipped.
// Row numbers are 1-based and do not count the header.
func Normalize(r io.Reader, provider Provider) (*NormalizeResult, error) {
	parser, err := parserFor(provider)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, &StructuralError{Provider: provider, Message: "failed to read header", Err: err}
	}

	index := headerIndex(header)
	var missing []string
	for _, col := range parser.requiredColumns() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &StructuralError{Provider: provider, Message: "missing required columns", MissingColumns: missing}
	}

	result := &NormalizeResult{Provider: provider}
	rowNumber := 0

	for {
		values, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNumber++
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, &StructuralError{Provider: provider, Message: "failed to read rows", Err: err}
			}
			result.TotalRows++
			result.Errors = append(result.Errors, RowError{RowNumber: rowNumber, Message: parseErr.Err.Error()})
			continue
		}
		if blankRow(values) {
			continue
		}
		result.TotalRows++

		row := csvRow{values: values, index: index}
		record, err := parser.parseRow(row)
		if err != nil {
			var skip *skipRow
			if errors.As(err, &skip) {
				result.Skipped = append(result.Skipped, RowSkip{RowNumber: rowNumber, Title: row.get("title"), Reason: skip.reason})
			} else {
				result.Errors = append(result.Errors, RowError{RowNumber: rowNumber, Title: row.get("title"), Message: err.Error()})
			}
			continue
		}

		record.RowNumber = rowNumber
		record.Provider = provider
		result.Records = append(result.Records, record)
	}

	return result, nil
}

// DetectProvider guesses the export format from its header row.
func DetectProvider(header []string) (Provider, bool) {
	index := headerIndex(header)
	for _, p := range Providers {
		parser, _ := parserFor(p)
		if hasColumns(index, parser.requiredColumns()) {
			return p, true
		}
	}
	return "", false
}

// DetectProviderFromCSV reads only the header row of r.
func DetectProviderFromCSV(r io.Reader) (Provider, bool) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return "", false
	}
	return DetectProvider(header)
}

func hasColumns(index map[string]int, cols []string) bool {
	for _, c := range cols {
		if _, ok := index[c]; !ok {
			return false
		}
	}
	return true
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return index
}

func blankRow(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// csvRow gives header-keyed access to one data row.
type csvRow struct {
	values []string
	index  map[string]int
}

// get returns the trimmed value for a lowercased header, or "".
func (r csvRow) get(header string) string {
	if idx, ok := r.index[header]; ok && idx < len(r.values) {
		return strings.TrimSpace(r.values[idx])
	}
	return ""
}

// splitAuthors splits a comma separated author list, dropping empty names.
func splitAuthors(list string) []string {
	return withAuthors(nil, strings.Split(list, ",")...)
}

// withAuthors appends names to authors, collapsing whitespace and skipping
// blanks and case-insensitive repeats.
func withAuthors(authors []string, names ...string) []string {
	for _, a := range names {
		a = strings.Join(strings.Fields(a), " ")
		if a == "" || containsFold(authors, a) {
			continue
		}
		authors = append(authors, a)
	}
	return authors
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// assignISBN normalizes raw and stores it in the ISBN or ISBN13 slot by
// length. Invalid identifiers are dropped. An existing value is not replaced.
func assignISBN(record *ImportRecord, raw string) {
	isbn := NormalizeISBN(raw)
	switch len(isbn) {
	case 10:
		if record.ISBN == "" {
			record.ISBN = isbn
		}
	case 13:
		if record.ISBN13 == "" {
			record.ISBN13 = isbn
		}
	}
}

func parsePositiveInt(s string) int {
	s = stripFormulaWrapper(s)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func parseReadCount(s string) int {
	if n := parsePositiveInt(s); n > 0 {
		return n
	}
	return 1
}

// canonicalStatusKey lowercases a status and joins words with hyphens so that
// "Currently Reading" and "currently-reading" compare equal.
func canonicalStatusKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), "-")
}

func validateRequired(record ImportRecord) error {
	if record.Title == "" {
		return errors.New("missing title")
	}
	if len(record.Authors) == 0 {
		return errors.New("missing author")
	}
	return nil
}
