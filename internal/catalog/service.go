// Package catalog resolves books through the local cache, refreshing from
// Google Books when a record is missing or stale.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/cache"
	"github.com/lepinkainen/bookhaven/internal/googlebooks"
)

// DefaultRelatedLimit is the number of related books returned when no limit is given.
const DefaultRelatedLimit = 6

const tracerName = "github.com/lepinkainen/bookhaven/internal/catalog"

// Outcomes recorded on resolve spans.
const (
	OutcomeFresh     = "fresh"
	OutcomeRefreshed = "refreshed"
	OutcomeStale     = "stale"
	OutcomeNotFound  = "not_found"
)

// Client is the subset of the Google Books client used by the service.
type Client interface {
	FetchByKey(ctx context.Context, key string) (*googlebooks.Volume, error)
	Search(ctx context.Context, query string, offset, limit int) ([]googlebooks.Volume, error)
}

// Store is the subset of the cache store used by the service.
type Store interface {
	Get(ctx context.Context, key string) (*book.Record, error)
	Upsert(ctx context.Context, rec book.Record) (book.Record, error)
	ListByCategory(ctx context.Context, category, excludeKey string, limit int) ([]book.Record, error)
}

// Service coordinates the cache store and the catalog client.
type Service struct {
	client Client
	store  Store
	clock  func() time.Time
	tracer trace.Tracer
	flight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for freshness checks.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewService creates a Service.
func NewService(client Client, store Store, opts ...Option) *Service {
	s := &Service{
		client: client,
		store:  store,
		clock:  time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the record for key. A fresh cached record is returned
// without contacting the catalog. Otherwise the catalog is asked once; if
// that fails the stale cached record is returned when there is one. The only
// error returned is book.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, key string) (*book.Record, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.resolve", trace.WithAttributes(attribute.String("book.key", key)))
	defer span.End()

	cached := s.lookup(ctx, key)
	if cached != nil && cache.IsFresh(*cached, s.clock()) {
		span.SetAttributes(attribute.String("catalog.outcome", OutcomeFresh))
		return cached, nil
	}

	result, err, shared := s.flight.Do(key, func() (any, error) {
		return s.refresh(ctx, key)
	})
	span.SetAttributes(attribute.Bool("catalog.shared_refresh", shared))

	if err == nil {
		rec := *result.(*book.Record)
		span.SetAttributes(attribute.String("catalog.outcome", OutcomeRefreshed))
		return &rec, nil
	}

	if cached != nil {
		slog.Warn("Catalog refresh failed, serving stale record", "key", key, "refreshed_at", cached.RefreshedAt, "error", err)
		span.SetAttributes(attribute.String("catalog.outcome", OutcomeStale))
		return cached, nil
	}

	if errors.Is(err, googlebooks.ErrNotFound) || errors.Is(err, book.ErrInvalidDocument) {
		slog.Debug("Book not found in catalog", "key", key, "error", err)
	} else {
		slog.Warn("Catalog fetch failed with no cached record", "key", key, "error", err)
	}
	span.SetAttributes(attribute.String("catalog.outcome", OutcomeNotFound))
	span.SetStatus(codes.Error, book.ErrNotFound.Error())
	return nil, book.ErrNotFound
}

// SearchAndCache runs query against the catalog and caches every valid
// result unconditionally. Failures are logged and produce an empty slice.
func (s *Service) SearchAndCache(ctx context.Context, query string, offset, limit int) []book.Record {
	ctx, span := s.tracer.Start(ctx, "catalog.search", trace.WithAttributes(
		attribute.String("catalog.query", query),
		attribute.Int("catalog.offset", offset),
		attribute.Int("catalog.limit", limit),
	))
	defer span.End()

	volumes, err := s.client.Search(ctx, query, offset, limit)
	if err != nil {
		slog.Warn("Catalog search failed", "query", query, "error", err)
		span.RecordError(err)
		return []book.Record{}
	}

	records := make([]book.Record, 0, len(volumes))
	for _, volume := range volumes {
		rec, err := book.Normalize(volume)
		if err != nil {
			slog.Debug("Skipping invalid search result", "query", query, "id", volume.ID, "error", err)
			continue
		}
		records = append(records, s.upsert(ctx, rec))
	}

	span.SetAttributes(attribute.Int("catalog.results", len(records)))
	return records
}

// Related returns up to limit books sharing the category of key. Cached
// books are preferred; the rest is filled from a subject search. The book
// itself never appears in the result.
func (s *Service) Related(ctx context.Context, key string, limit int) ([]book.Record, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	ctx, span := s.tracer.Start(ctx, "catalog.related", trace.WithAttributes(
		attribute.String("book.key", key),
		attribute.Int("catalog.limit", limit),
	))
	defer span.End()

	rec, err := s.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.Category == nil || *rec.Category == "" {
		return []book.Record{}, nil
	}
	category := *rec.Category

	related, err := s.store.ListByCategory(ctx, category, key, limit)
	if err != nil {
		slog.Warn("Failed to list cached books by category", "category", category, "error", err)
		related = []book.Record{}
	}
	cachedCount := len(related)

	seen := map[string]bool{key: true}
	for _, r := range related {
		seen[r.Key] = true
	}

	if missing := limit - len(related); missing > 0 {
		for _, r := range s.SearchAndCache(ctx, "subject:"+category, 0, missing) {
			if len(related) >= limit {
				break
			}
			if seen[r.Key] {
				continue
			}
			seen[r.Key] = true
			related = append(related, r)
		}
	}

	span.SetAttributes(
		attribute.Int("catalog.cached_results", cachedCount),
		attribute.Int("catalog.results", len(related)),
	)
	return related, nil
}

func (s *Service) lookup(ctx context.Context, key string) *book.Record {
	rec, err := s.store.Get(ctx, key)
	if err == nil {
		return rec
	}
	if !errors.Is(err, cache.ErrAbsent) {
		slog.Warn("Cache lookup failed, treating as absent", "key", key, "error", err)
	}
	return nil
}

func (s *Service) refresh(ctx context.Context, key string) (*book.Record, error) {
	volume, err := s.client.FetchByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	rec, err := book.Normalize(*volume)
	if err != nil {
		return nil, err
	}
	// Merged volumes come back under their canonical id; keep the requested
	// key so the row is found again and foreign keys hold.
	if rec.Key != key {
		slog.Debug("Catalog returned a different volume id", "key", key, "id", rec.Key)
		rec.Key = key
	}

	stored := s.upsert(ctx, rec)
	return &stored, nil
}

// upsert stores rec; when the store fails the record is still returned,
// stamped with the service clock.
func (s *Service) upsert(ctx context.Context, rec book.Record) book.Record {
	stored, err := s.store.Upsert(ctx, rec)
	if err != nil {
		slog.Warn("Failed to cache book", "key", rec.Key, "error", err)
		rec.RefreshedAt = s.clock().UTC()
		return rec
	}
	return stored
}
