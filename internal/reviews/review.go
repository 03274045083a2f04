// Package reviews stores user reviews of books and the likes they collect.
package reviews

import (
	"errors"
	"time"
)

// Page size limits for listing reviews of a book.
const (
	DefaultListLimit = 5
	MaxListLimit     = 100
)

var (
	// ErrInvalidRating is returned for ratings outside 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrReviewNotFound is returned when a review id does not exist.
	ErrReviewNotFound = errors.New("review not found")

	// ErrNotAuthor is returned when someone other than the author deletes a review.
	ErrNotAuthor = errors.New("only the author can delete a review")

	// ErrMissingUser is returned when no user id is supplied.
	ErrMissingUser = errors.New("user id is required")
)

// Review is a user's rating and text for a book.
type Review struct {
	ID            string    `json:"id" yaml:"id"`
	UserID        string    `json:"user_id" yaml:"user_id"`
	BookKey       string    `json:"book_key" yaml:"book_key"`
	Rating        int       `json:"rating" yaml:"rating"`
	Title         *string   `json:"title,omitempty" yaml:"title,omitempty"`
	Text          string    `json:"text" yaml:"text"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
	LikesCount    int       `json:"likes_count" yaml:"likes_count"`
	LikedByViewer bool      `json:"liked_by_viewer" yaml:"liked_by_viewer"`
}

// Stats aggregates the ratings of a book.
type Stats struct {
	Count         int     `json:"count" yaml:"count"`
	AverageRating float64 `json:"average_rating" yaml:"average_rating"`
}
