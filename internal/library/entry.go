// Package library tracks the books each user keeps in their reading list.
package library

import (
	"errors"
	"fmt"
	"time"
)

// Status is the reading state of a library entry.
type Status string

// Reading states.
const (
	StatusToRead    Status = "to_read"
	StatusReading   Status = "reading"
	StatusCompleted Status = "completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusToRead, StatusReading, StatusCompleted}

var (
	// ErrInvalidStatus is returned for statuses other than to_read, reading and completed.
	ErrInvalidStatus = errors.New("invalid reading status")

	// ErrInvalidProgress is returned for progress outside 0-100.
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")

	// ErrEntryNotFound is returned when the book is not in the user's library.
	ErrEntryNotFound = errors.New("book not in library")

	// ErrMissingUser is returned when no user id is supplied.
	ErrMissingUser = errors.New("user id is required")
)

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, error) {
	for _, status := range Statuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Entry is one book in a user's library. Title and Author are filled from
// the book cache when listing.
type Entry struct {
	UserID    string    `json:"user_id" yaml:"user_id"`
	BookKey   string    `json:"book_key" yaml:"book_key"`
	Status    Status    `json:"status" yaml:"status"`
	Progress  int       `json:"progress" yaml:"progress"`
	AddedAt   time.Time `json:"added_at" yaml:"added_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	Title     string    `json:"title,omitempty" yaml:"title,omitempty"`
	Author    string    `json:"author,omitempty" yaml:"author,omitempty"`
}

// Counts is the number of entries per status.
type Counts struct {
	ToRead    int `json:"to_read" yaml:"to_read"`
	Reading   int `json:"reading" yaml:"reading"`
	Completed int `json:"completed" yaml:"completed"`
	Total     int `json:"total" yaml:"total"`
}
