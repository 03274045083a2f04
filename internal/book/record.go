// Package book defines the canonical cached book record and the normalizer
// that builds it from Google Books documents.
package book

import "time"

// Placeholders used when upstream omits title or authors.
const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

// Record is the canonical cached representation of a book.
type Record struct {
	Key             string    `json:"key" yaml:"key"`
	Title           string    `json:"title" yaml:"title"`
	Author          string    `json:"author" yaml:"author"`
	Description     string    `json:"description" yaml:"description"`
	CoverImageURL   *string   `json:"cover_image_url,omitempty" yaml:"cover_image_url,omitempty"`
	Publisher       *string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublicationDate *string   `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`
	ISBN10          *string   `json:"isbn10,omitempty" yaml:"isbn10,omitempty"`
	ISBN13          *string   `json:"isbn13,omitempty" yaml:"isbn13,omitempty"`
	PageCount       *int      `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	LanguageCode    *string   `json:"language_code,omitempty" yaml:"language_code,omitempty"`
	Category        *string   `json:"category,omitempty" yaml:"category,omitempty"`
	RefreshedAt     time.Time `json:"refreshed_at" yaml:"refreshed_at"`
}

// Summary is the short "Title by Author" form used in listings.
func (r Record) Summary() string {
	return r.Title + " by " + r.Author
}
