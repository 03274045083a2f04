package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/datastore"
)

// Resolver resolves book keys through the cache.
type Resolver interface {
	Resolve(ctx context.Context, key string) (*book.Record, error)
}

// Service manages reviews and likes.
type Service struct {
	db       *datastore.DB
	resolver Resolver
	clock    func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService creates a reviews Service.
func NewService(db *datastore.DB, resolver Resolver, opts ...Option) *Service {
	s := &Service{
		db:       db,
		resolver: resolver,
		clock:    time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reviewColumns selects a review with its likes count and whether the
// viewer (first bound argument) liked it.
const reviewColumns = `r.id, r.user_id, r.book_key, r.rating, r.title, r.body, r.created_at, r.updated_at,
	(SELECT COUNT(*) FROM review_likes l WHERE l.review_id = r.id),
	EXISTS (SELECT 1 FROM review_likes l WHERE l.review_id = r.id AND l.user_id = ?)`

// Post creates the user's review of the book, or updates it when one exists.
func (s *Service) Post(ctx context.Context, userID, key string, rating int, title, text string) (*Review, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, rating)
	}
	if _, err := s.resolver.Resolve(ctx, key); err != nil {
		return nil, err
	}

	var titleArg *string
	if t := strings.TrimSpace(title); t != "" {
		titleArg = &t
	}
	now := s.clock().UTC()

	// Insert or update in one statement; (user_id, book_key) picks the row.
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO reviews (id, user_id, book_key, rating, title, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, book_key) DO UPDATE SET
			rating = excluded.rating,
			title = excluded.title,
			body = excluded.body,
			updated_at = excluded.updated_at
	`), s.newID(), userID, key, rating, titleArg, text, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	var id string
	err = s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT id FROM reviews WHERE user_id = ? AND book_key = ?`), userID, key).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up review: %w", err)
	}
	slog.Info("Review saved", "id", id, "user", userID, "key", key, "rating", rating)

	return s.Get(ctx, id, userID)
}

// Get returns a review as seen by viewerID.
func (s *Service) Get(ctx context.Context, reviewID, viewerID string) (*Review, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+reviewColumns+` FROM reviews r WHERE r.id = ?`), viewerID, reviewID)

	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query review: %w", err)
	}
	return review, nil
}

// ListForBook returns the newest reviews of a book as seen by viewerID.
// A limit of zero or less means DefaultListLimit; larger limits are capped at MaxListLimit.
func (s *Service) ListForBook(ctx context.Context, key, viewerID string, limit int) ([]Review, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	return s.list(ctx, `SELECT `+reviewColumns+` FROM reviews r WHERE r.book_key = ?
		ORDER BY r.created_at DESC, r.id LIMIT ?`, viewerID, key, limit)
}

// ListForUser returns every review written by userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Review, error) {
	return s.list(ctx, `SELECT `+reviewColumns+` FROM reviews r WHERE r.user_id = ?
		ORDER BY r.created_at DESC, r.id`, userID, userID)
}

// Stats returns the number of reviews and the average rating of a book.
func (s *Service) Stats(ctx context.Context, key string) (Stats, error) {
	var stats Stats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*), AVG(rating) FROM reviews WHERE book_key = ?`), key).
		Scan(&stats.Count, &avg)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query review stats: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = avg.Float64
	}
	return stats, nil
}

// Like records that userID likes the review. Liking twice is a no-op.
func (s *Service) Like(ctx context.Context, reviewID, userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	if err := s.exists(ctx, reviewID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO review_likes (review_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (review_id, user_id) DO NOTHING
	`), reviewID, userID, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("failed to like review: %w", err)
	}
	return nil
}

// Unlike removes the like of userID. Unliking a review that was not liked is a no-op.
func (s *Service) Unlike(ctx context.Context, reviewID, userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	if err := s.exists(ctx, reviewID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM review_likes WHERE review_id = ? AND user_id = ?`), reviewID, userID)
	if err != nil {
		return fmt.Errorf("failed to unlike review: %w", err)
	}
	return nil
}

// Delete removes a review and its likes. Only the author may delete it.
func (s *Service) Delete(ctx context.Context, reviewID, userID string) error {
	return datastore.WithTx(ctx, s.db.DB, nil, func(ctx context.Context, tx datastore.DBTX) error {
		var author string
		err := tx.QueryRowContext(ctx, s.db.Rebind(`SELECT user_id FROM reviews WHERE id = ?`), reviewID).Scan(&author)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReviewNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up review: %w", err)
		}
		if author != userID {
			return ErrNotAuthor
		}

		if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM review_likes WHERE review_id = ?`), reviewID); err != nil {
			return fmt.Errorf("failed to delete review likes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM reviews WHERE id = ?`), reviewID); err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}

		slog.Info("Review deleted", "id", reviewID, "user", userID)
		return nil
	})
}

func (s *Service) exists(ctx context.Context, reviewID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT 1 FROM reviews WHERE id = ?`), reviewID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReviewNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up review: %w", err)
	}
	return nil
}

func (s *Service) list(ctx context.Context, query string, args ...any) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	reviews := []Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(row scanner) (*Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.UserID, &r.BookKey, &r.Rating, &r.Title, &r.Text,
		&r.CreatedAt, &r.UpdatedAt, &r.LikesCount, &r.LikedByViewer)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}
