package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/datastore"
)

// Resolver resolves book keys through the cache.
type Resolver interface {
	Resolve(ctx context.Context, key string) (*book.Record, error)
}

// Service manages library entries.
type Service struct {
	db       datastore.DBTX
	bind     func(string) string
	resolver Resolver
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for added_at and updated_at.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService creates a library Service.
func NewService(db *datastore.DB, resolver Resolver, opts ...Option) *Service {
	s := &Service{
		db:       db,
		bind:     db.Rebind,
		resolver: resolver,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const entryColumns = `e.user_id, e.book_key, e.status, e.progress, e.added_at, e.updated_at,
	COALESCE(b.title, ''), COALESCE(b.author, '')`

// Add puts the book in the user's library with status to_read. Adding a
// book that is already there returns the existing entry unchanged and
// created false.
func (s *Service) Add(ctx context.Context, userID, key string) (*Entry, bool, error) {
	if userID == "" {
		return nil, false, ErrMissingUser
	}
	if _, err := s.resolver.Resolve(ctx, key); err != nil {
		return nil, false, err
	}

	now := s.clock().UTC()
	result, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO library_entries (user_id, book_key, status, progress, added_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT (user_id, book_key) DO NOTHING
	`), userID, key, string(StatusToRead), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to add book to library: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to add book to library: %w", err)
	}
	created := rows > 0
	if created {
		slog.Info("Book added to library", "user", userID, "key", key)
	}

	entry, err := s.Get(ctx, userID, key)
	if err != nil {
		return nil, false, err
	}
	return entry, created, nil
}

// UpdateStatus changes the reading status of an entry.
func (s *Service) UpdateStatus(ctx context.Context, userID, key string, status Status) (*Entry, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, `UPDATE library_entries SET status = ?, updated_at = ? WHERE user_id = ? AND book_key = ?`,
		string(status), s.clock().UTC(), userID, key); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, key)
}

// UpdateProgress sets the reading progress of an entry in percent.
func (s *Service) UpdateProgress(ctx context.Context, userID, key string, percent int) (*Entry, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProgress, percent)
	}
	if err := s.update(ctx, `UPDATE library_entries SET progress = ?, updated_at = ? WHERE user_id = ? AND book_key = ?`,
		percent, s.clock().UTC(), userID, key); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, key)
}

// Remove deletes the entry.
func (s *Service) Remove(ctx context.Context, userID, key string) error {
	if err := s.update(ctx, `DELETE FROM library_entries WHERE user_id = ? AND book_key = ?`, userID, key); err != nil {
		return err
	}
	slog.Info("Book removed from library", "user", userID, "key", key)
	return nil
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, userID, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`
		SELECT `+entryColumns+`
		FROM library_entries e
		LEFT JOIN books b ON b.key = e.book_key
		WHERE e.user_id = ? AND e.book_key = ?
	`), userID, key)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query library entry: %w", err)
	}
	return entry, nil
}

// List returns the user's entries, newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, userID string, status Status) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM library_entries e
		LEFT JOIN books b ON b.key = e.book_key
		WHERE e.user_id = ?`
	args := []any{userID}

	if status != "" {
		if _, err := ParseStatus(string(status)); err != nil {
			return nil, err
		}
		query += ` AND e.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY e.added_at DESC, e.book_key`

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan library entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate library: %w", err)
	}
	return entries, nil
}

// Counts returns the number of entries per status for the user.
func (s *Service) Counts(ctx context.Context, userID string) (Counts, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT status, COUNT(*) FROM library_entries WHERE user_id = ? GROUP BY status
	`), userID)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count library: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts Counts
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("failed to scan library count: %w", err)
		}
		switch status {
		case StatusToRead:
			counts.ToRead = n
		case StatusReading:
			counts.Reading = n
		case StatusCompleted:
			counts.Completed = n
		}
		counts.Total += n
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("failed to iterate library counts: %w", err)
	}
	return counts, nil
}

func (s *Service) update(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, s.bind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update library: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrEntryNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.UserID, &e.BookKey, &e.Status, &e.Progress, &e.AddedAt, &e.UpdatedAt, &e.Title, &e.Author); err != nil {
		return nil, err
	}
	e.AddedAt = e.AddedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
