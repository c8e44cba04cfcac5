package matcher

import (
	"sort"

	"github.com/mrlokans/shelfsync/internal/importers"
)

// CatalogEntry is a read-only snapshot of one library book.
type CatalogEntry struct {
	ID         uint     `json:"id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	ISBN       string   `json:"isbn,omitempty"`
	TotalPages int      `json:"total_pages,omitempty"`
}

// LibraryCache indexes a catalog snapshot for one matching batch. It is built
// once, never mutated afterwards, and discarded with the batch.
//
// Entries are kept sorted by ID so that scans, and therefore tie-breaks
// between equally scored candidates, follow a stable order.
type LibraryCache struct {
	entries []CatalogEntry
	byISBN  map[string]int
	isbn13  []string
	titles  []string
	authors [][]string
}

// NewLibraryCache copies entries and precomputes normalized identifiers,
// titles and authors.
func NewLibraryCache(entries []CatalogEntry) *LibraryCache {
	sorted := make([]CatalogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	c := &LibraryCache{
		entries: sorted,
		byISBN:  make(map[string]int, len(sorted)),
		isbn13:  make([]string, len(sorted)),
		titles:  make([]string, len(sorted)),
		authors: make([][]string, len(sorted)),
	}

	for i, e := range sorted {
		if isbn := importers.NormalizeISBN(e.ISBN); isbn != "" {
			// First entry wins when the catalog holds the same ISBN twice.
			if _, exists := c.byISBN[isbn]; !exists {
				c.byISBN[isbn] = i
			}
			c.isbn13[i] = importers.ToISBN13(isbn)
		}
		c.titles[i] = NormalizeTitle(e.Title)
		c.authors[i] = NormalizeAuthors(e.Authors)
	}

	return c
}

// Len returns the number of catalog entries in the snapshot.
func (c *LibraryCache) Len() int {
	return len(c.entries)
}

// lookupISBN finds an entry by normalized ISBN. An exact hit in the index is
// preferred; otherwise entries are scanned for the same book under its other
// representation (ISBN-10 vs ISBN-13). Returns -1 when nothing matches.
func (c *LibraryCache) lookupISBN(isbn string) int {
	if isbn == "" {
		return -1
	}
	if i, ok := c.byISBN[isbn]; ok {
		return i
	}

	want := importers.ToISBN13(isbn)
	if want == "" {
		return -1
	}
	for i, have := range c.isbn13 {
		if have != "" && have == want {
			return i
		}
	}
	return -1
}
