// Package books provides database operations for the book catalog.
//
// This package implements the CatalogReader and RatingUpdater interfaces
// defined in internal/services/interfaces.go.
//
// # Interface Implementation
//
//	var _ services.CatalogReader = (*Repository)(nil)
//	var _ services.RatingUpdater = (*Repository)(nil)
//
// # Usage
//
//	repo := books.NewRepository(db)
//	entries, err := repo.FindAllCatalogEntries(ctx)
package books

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/matcher"
)

// Repository handles all book catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateBook inserts a book. Authors is derived from Author when empty.
func (r *Repository) CreateBook(ctx context.Context, book *entities.Book) error {
	if book.Authors == "" && book.Author != "" {
		book.Authors = book.Author
	}
	if book.Author == "" {
		if authors := book.AuthorList(); len(authors) > 0 {
			book.Author = authors[0]
		}
	}
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetBookByID retrieves a book by its ID.
func (r *Repository) GetBookByID(ctx context.Context, id uint) (*entities.Book, error) {
	var found []entities.Book
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to load book %d: %w", id, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("book %d: %w", id, gorm.ErrRecordNotFound)
	}
	return &found[0], nil
}

// FindAllCatalogEntries returns every book in the catalog ordered by ID.
func (r *Repository) FindAllCatalogEntries(ctx context.Context) ([]matcher.CatalogEntry, error) {
	var books []entities.Book
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	entries := make([]matcher.CatalogEntry, len(books))
	for i := range books {
		entries[i] = toCatalogEntry(&books[i])
	}
	return entries, nil
}

// FindEntryByISBN looks a book up by ISBN. Both the ISBN-10 and ISBN-13 forms
// of isbn are tried, with and without hyphens removed. It returns nil and no
// error when nothing matches.
func (r *Repository) FindEntryByISBN(ctx context.Context, isbn string) (*matcher.CatalogEntry, error) {
	candidates := isbnVariants(isbn)
	if len(candidates) == 0 {
		return nil, nil
	}

	var books []entities.Book
	err := r.db.WithContext(ctx).
		Where("UPPER(REPLACE(REPLACE(isbn, '-', ''), ' ', '')) IN ?", candidates).
		Order("id ASC").
		Limit(1).
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up isbn %s: %w", isbn, err)
	}
	if len(books) == 0 {
		return nil, nil
	}

	entry := toCatalogEntry(&books[0])
	return &entry, nil
}

// FindEntriesByIDs returns the catalog entries with the given IDs, keyed by ID.
// Unknown IDs are absent from the result.
func (r *Repository) FindEntriesByIDs(ctx context.Context, ids []uint) (map[uint]matcher.CatalogEntry, error) {
	result := make(map[uint]matcher.CatalogEntry, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var books []entities.Book
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to load books: %w", err)
	}
	for i := range books {
		result[books[i].ID] = toCatalogEntry(&books[i])
	}
	return result, nil
}

// UpdateEntryRating sets the book-level rating.
func (r *Repository) UpdateEntryRating(ctx context.Context, id uint, rating int) error {
	result := r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Update("rating", rating)
	if result.Error != nil {
		return fmt.Errorf("failed to update rating for book %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("book %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// IsNotFound reports whether err means the book does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func toCatalogEntry(b *entities.Book) matcher.CatalogEntry {
	return matcher.CatalogEntry{
		ID:         b.ID,
		Title:      b.Title,
		Authors:    b.AuthorList(),
		ISBN:       b.ISBN,
		TotalPages: b.TotalPages,
	}
}

func isbnVariants(isbn string) []string {
	normalized := importers.NormalizeISBN(isbn)
	if normalized == "" {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	for _, v := range []string{normalized, importers.ToISBN13(normalized), importers.ToISBN10(normalized)} {
		v = strings.ToUpper(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
