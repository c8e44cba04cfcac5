package entities

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// AuthorSeparator joins multiple authors in Book.Authors. Semicolons are used
// because catalog author names may themselves contain commas ("Colfer, Chris").
const AuthorSeparator = "; "

type Book struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	Title      string           `gorm:"index;size:512" json:"title"`
	Author     string           `gorm:"index;size:256" json:"author"`
	Authors    string           `gorm:"size:1024" json:"authors,omitempty"`
	ISBN       string           `gorm:"index;size:20" json:"isbn,omitempty"`
	TotalPages int              `json:"total_pages,omitempty"`
	Rating     *int             `json:"rating,omitempty"`
	Sessions   []ReadingSession `gorm:"foreignKey:BookID" json:"sessions,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	DeletedAt  gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

// AuthorList returns the book's authors in order. Authors takes precedence
// over the single Author column when both are set.
func (b Book) AuthorList() []string {
	if strings.TrimSpace(b.Authors) == "" {
		if a := strings.TrimSpace(b.Author); a != "" {
			return []string{a}
		}
		return nil
	}

	var out []string
	for _, a := range strings.Split(b.Authors, ";") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (Book) TableName() string {
	return "books"
}
