package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/lepinkainen/bookhaven/internal/cache"
	"github.com/lepinkainen/bookhaven/internal/catalog"
	"github.com/lepinkainen/bookhaven/internal/config"
	"github.com/lepinkainen/bookhaven/internal/datastore"
	"github.com/lepinkainen/bookhaven/internal/googlebooks"
	"github.com/lepinkainen/bookhaven/internal/library"
	"github.com/lepinkainen/bookhaven/internal/ratelimit"
	"github.com/lepinkainen/bookhaven/internal/reviews"
)

var errMissingUser = errors.New("user id is required (provide via --user or BOOKHAVEN_USER)")

// App is the wired service graph shared by every command.
type App struct {
	DB      *datastore.DB
	Cache   *cache.Store
	Catalog *catalog.Service
	Library *library.Service
	Reviews *reviews.Service
}

// NewApp opens the database and wires the services on top of it. tp may be
// nil, in which case the global tracer provider is used.
func NewApp(ctx context.Context, cfg config.Config, tp trace.TracerProvider) (*App, error) {
	db, err := datastore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	client := googlebooks.NewClient(
		googlebooks.WithAPIKey(cfg.GoogleBooks.APIKey),
		googlebooks.WithBaseURL(cfg.GoogleBooks.BaseURL),
		googlebooks.WithHTTPClient(&http.Client{Timeout: cfg.GoogleBooks.Timeout}),
		googlebooks.WithRateLimiter(ratelimit.New("GoogleBooks", cfg.GoogleBooks.Rate)),
	)

	store := cache.NewStore(db)
	svc := catalog.NewService(client, store, catalog.WithTracerProvider(tp))

	return &App{
		DB:      db,
		Cache:   store,
		Catalog: svc,
		Library: library.NewService(db, svc),
		Reviews: reviews.NewService(db, svc),
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Runtime is bound into every command's Run method.
type Runtime struct {
	ctx    context.Context
	cfg    config.Config
	out    io.Writer
	format string
	user   string

	tracerProvider trace.TracerProvider
	app            *App
}

func newRuntime(ctx context.Context, cfg config.Config, out io.Writer, format, user string) *Runtime {
	return &Runtime{
		ctx:    ctx,
		cfg:    cfg,
		out:    out,
		format: format,
		user:   strings.TrimSpace(user),
	}
}

// App opens the service graph on first use.
func (rt *Runtime) App() (*App, error) {
	if rt.app != nil {
		return rt.app, nil
	}
	app, err := NewApp(rt.ctx, rt.cfg, rt.tracerProvider)
	if err != nil {
		return nil, err
	}
	rt.app = app
	return app, nil
}

// RequireUser returns the --user value or errMissingUser.
func (rt *Runtime) RequireUser() (string, error) {
	if rt.user == "" {
		return "", errMissingUser
	}
	return rt.user, nil
}

// Close closes the service graph if it was opened.
func (rt *Runtime) Close() {
	if rt.app == nil {
		return
	}
	if err := rt.app.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
	rt.app = nil
}
