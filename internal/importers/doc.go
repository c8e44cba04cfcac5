// Package importers normalizes reading-history exports from third-party
// trackers into provider-agnostic ImportRecords.
//
// # Architecture
//
// Normalization is a single pass over a CSV export:
//
//	CSV export → header validation → rowParser (per provider) → ImportRecord
//
// Required columns are checked before any row is parsed; a missing column
// aborts the whole export with a *StructuralError. After that, every row is
// parsed independently: a bad row becomes a RowError, a row whose status is
// not imported becomes a RowSkip, and the rest of the export continues.
//
// # Providers
//
//   - Goodreads: "Exclusive Shelf" status, ISBN columns in ="..." formula
//     quoting, 0 meaning unrated, HTML reviews. Did-not-finish shelves are
//     dropped.
//   - StoryGraph: "Read Status" status, fractional star ratings, "Dates Read"
//     ranges. Did-not-finish is kept as a terminal status.
//
// # Adding a New Provider
//
//  1. Add a Provider constant and list it in Providers.
//  2. Implement rowParser in a new file (requiredColumns, parseRow).
//  3. Add a case to parserFor and to ParseProvider.
//
// # Example Usage
//
//	result, err := importers.Normalize(file, importers.ProviderGoodreads)
//	var structural *importers.StructuralError
//	if errors.As(err, &structural) {
//		// the export cannot be used at all
//	}
//	for _, rowErr := range result.Errors {
//		log.Println(rowErr)
//	}
package importers
