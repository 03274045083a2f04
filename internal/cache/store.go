// Package cache persists canonical book records and decides their freshness.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/datastore"
)

// FreshnessWindow is how long a cached record is served without asking the catalog.
const FreshnessWindow = 7 * 24 * time.Hour

// ErrAbsent is returned by Get when no record exists for a key.
var ErrAbsent = errors.New("book not cached")

const bookColumns = `key, title, author, description, cover_image_url, publisher, publication_date,
	isbn10, isbn13, page_count, language_code, category, refreshed_at`

// Stats summarizes the cache contents at a point in time.
type Stats struct {
	Total int `json:"total" yaml:"total"`
	Fresh int `json:"fresh" yaml:"fresh"`
	Stale int `json:"stale" yaml:"stale"`
}

// Store reads and writes book records.
type Store struct {
	db    datastore.DBTX
	bind  func(string) string
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used to stamp refreshed_at.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore creates a Store on top of an opened database.
func NewStore(db *datastore.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		bind:  db.Rebind,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsFresh reports whether rec was refreshed less than FreshnessWindow before now.
func IsFresh(rec book.Record, now time.Time) bool {
	return now.Sub(rec.RefreshedAt) < FreshnessWindow
}

// Get returns the cached record for key, or ErrAbsent.
func (s *Store) Get(ctx context.Context, key string) (*book.Record, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+bookColumns+` FROM books WHERE key = ?`), key)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query book %s: %w", key, err)
	}
	return rec, nil
}

// Upsert inserts or fully replaces the record for rec.Key in one statement
// and stamps refreshed_at with the store clock. The stored record is returned.
func (s *Store) Upsert(ctx context.Context, rec book.Record) (book.Record, error) {
	rec.RefreshedAt = s.clock().UTC()

	query := s.bind(`
		INSERT INTO books (` + bookColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			description = excluded.description,
			cover_image_url = excluded.cover_image_url,
			publisher = excluded.publisher,
			publication_date = excluded.publication_date,
			isbn10 = excluded.isbn10,
			isbn13 = excluded.isbn13,
			page_count = excluded.page_count,
			language_code = excluded.language_code,
			category = excluded.category,
			refreshed_at = excluded.refreshed_at
	`)

	_, err := s.db.ExecContext(ctx, query,
		rec.Key, rec.Title, rec.Author, rec.Description, rec.CoverImageURL, rec.Publisher,
		rec.PublicationDate, rec.ISBN10, rec.ISBN13, rec.PageCount, rec.LanguageCode,
		rec.Category, rec.RefreshedAt,
	)
	if err != nil {
		return book.Record{}, fmt.Errorf("failed to upsert book %s: %w", rec.Key, err)
	}

	slog.Debug("Book cached", "key", rec.Key, "refreshed_at", rec.RefreshedAt)
	return rec, nil
}

// ListByCategory returns up to limit cached records whose category contains
// category, excluding excludeKey, in random order.
func (s *Store) ListByCategory(ctx context.Context, category, excludeKey string, limit int) ([]book.Record, error) {
	if category == "" || limit <= 0 {
		return []book.Record{}, nil
	}

	query := s.bind(`
		SELECT ` + bookColumns + `
		FROM books
		WHERE category LIKE ? ESCAPE '\' AND key <> ?
		ORDER BY RANDOM()
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, "%"+escapeLike(category)+"%", excludeKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query books by category: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []book.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return records, nil
}

// Stats counts cached records and how many of them are fresh at now.
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT refreshed_at FROM books`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats Stats
	for rows.Next() {
		var rec book.Record
		if err := rows.Scan(&rec.RefreshedAt); err != nil {
			return Stats{}, fmt.Errorf("failed to scan refreshed_at: %w", err)
		}
		stats.Total++
		if IsFresh(rec, now) {
			stats.Fresh++
		} else {
			stats.Stale++
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("failed to iterate cache stats: %w", err)
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*book.Record, error) {
	var rec book.Record
	err := row.Scan(
		&rec.Key, &rec.Title, &rec.Author, &rec.Description, &rec.CoverImageURL, &rec.Publisher,
		&rec.PublicationDate, &rec.ISBN10, &rec.ISBN13, &rec.PageCount, &rec.LanguageCode,
		&rec.Category, &rec.RefreshedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.RefreshedAt = rec.RefreshedAt.UTC()
	return &rec, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
