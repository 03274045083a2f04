// Package httpapi exposes the catalog, library and review services as a JSON API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/library"
	"github.com/lepinkainen/bookhaven/internal/reviews"
)

// UserHeader carries the caller's user id, set by the authenticating proxy.
const UserHeader = "X-User-ID"

const shutdownTimeout = 10 * time.Second

// Catalog is the book lookup surface used by the API.
type Catalog interface {
	Resolve(ctx context.Context, key string) (*book.Record, error)
	SearchAndCache(ctx context.Context, query string, offset, limit int) []book.Record
	Related(ctx context.Context, key string, limit int) ([]book.Record, error)
}

// Library is the reading list surface used by the API.
type Library interface {
	Add(ctx context.Context, userID, key string) (*library.Entry, bool, error)
	UpdateStatus(ctx context.Context, userID, key string, status library.Status) (*library.Entry, error)
	UpdateProgress(ctx context.Context, userID, key string, percent int) (*library.Entry, error)
	Remove(ctx context.Context, userID, key string) error
	Get(ctx context.Context, userID, key string) (*library.Entry, error)
	List(ctx context.Context, userID string, status library.Status) ([]library.Entry, error)
	Counts(ctx context.Context, userID string) (library.Counts, error)
}

// Reviews is the review surface used by the API.
type Reviews interface {
	Post(ctx context.Context, userID, key string, rating int, title, text string) (*reviews.Review, error)
	ListForBook(ctx context.Context, key, viewerID string, limit int) ([]reviews.Review, error)
	Stats(ctx context.Context, key string) (reviews.Stats, error)
	Like(ctx context.Context, reviewID, userID string) error
	Unlike(ctx context.Context, reviewID, userID string) error
	Delete(ctx context.Context, reviewID, userID string) error
}

// Server holds the services behind the API.
type Server struct {
	catalog Catalog
	library Library
	reviews Reviews
	tracer  trace.Tracer
}

// Option configures a Server.
type Option func(*Server)

// WithTracerProvider sets the provider request spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		if tp != nil {
			s.tracer = tp.Tracer("github.com/lepinkainen/bookhaven/internal/httpapi")
		}
	}
}

// NewServer creates a Server.
func NewServer(catalog Catalog, lib Library, rev Reviews, opts ...Option) *Server {
	s := &Server{
		catalog: catalog,
		library: lib,
		reviews: rev,
		tracer:  otel.Tracer("github.com/lepinkainen/bookhaven/internal/httpapi"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.traceRequests)
	r.Use(logRequests)

	r.Get("/healthz", s.handleHealth)

	r.Route("/books", func(r chi.Router) {
		r.Get("/", s.handleSearch)
		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", s.handleGetBook)
			r.Get("/related", s.handleRelated)
			r.Get("/reviews", s.handleListReviews)
			r.Get("/reviews/stats", s.handleReviewStats)
			r.Put("/review", s.handlePostReview)
		})
	})

	r.Route("/reviews/{id}", func(r chi.Router) {
		r.Delete("/", s.handleDeleteReview)
		r.Put("/like", s.handleLike)
		r.Delete("/like", s.handleUnlike)
	})

	r.Route("/library", func(r chi.Router) {
		r.Get("/", s.handleListLibrary)
		r.Post("/", s.handleAddToLibrary)
		r.Get("/stats", s.handleLibraryStats)
		r.Get("/{key}", s.handleGetLibraryEntry)
		r.Patch("/{key}", s.handleUpdateLibraryEntry)
		r.Delete("/{key}", s.handleRemoveFromLibrary)
	})

	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, listener, handler)
}

// Serve serves the API on listener until ctx is cancelled.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), "http.request", trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			span.SetName(r.Method + " " + rctx.RoutePattern())
			span.SetAttributes(attribute.String("http.route", rctx.RoutePattern()))
		}
		span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
