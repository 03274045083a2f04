package book

import "errors"

var (
	// ErrNotFound is returned when a book is neither cached nor obtainable from the catalog.
	ErrNotFound = errors.New("book not found")

	// ErrInvalidDocument is returned when an upstream document lacks its id or volumeInfo block.
	ErrInvalidDocument = errors.New("invalid catalog document")
)
