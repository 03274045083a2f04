package cmd

import (
	"io"
	"log/slog"
	"strings"

	bherrors "github.com/lepinkainen/bookhaven/internal/errors"
	"github.com/lepinkainen/bookhaven/internal/tui"
)

// BookCmd groups the catalog commands
type BookCmd struct {
	Show    BookShowCmd    `cmd:"" help:"Show a book by its Google Books id"`
	Search  BookSearchCmd  `cmd:"" help:"Search Google Books and cache the results"`
	Related BookRelatedCmd `cmd:"" help:"List books in the same category"`
}

// BookShowCmd resolves a single book through the cache
type BookShowCmd struct {
	Key string `arg:"" help:"Google Books volume id"`
}

// BookSearchCmd runs a keyword search
type BookSearchCmd struct {
	Query       []string `arg:"" help:"Search terms (Google Books query syntax)"`
	Offset      int      `help:"Index of the first result" default:"0"`
	Limit       int      `short:"n" help:"Maximum number of results" default:"10"`
	Interactive bool     `short:"i" help:"Pick a result in an interactive list"`
}

// BookRelatedCmd lists books sharing the category of a book
type BookRelatedCmd struct {
	Key   string `arg:"" help:"Google Books volume id"`
	Limit int    `short:"n" help:"Maximum number of related books" default:"6"`
}

func (c *BookShowCmd) Run(rt *Runtime) error {
	app, err := rt.App()
	if err != nil {
		return err
	}

	rec, err := app.Catalog.Resolve(rt.ctx, c.Key)
	if err != nil {
		return err
	}
	return rt.render(rec, func(w io.Writer) { writeRecord(w, *rec) })
}

func (c *BookSearchCmd) Run(rt *Runtime) error {
	app, err := rt.App()
	if err != nil {
		return err
	}

	query := strings.Join(c.Query, " ")
	results := app.Catalog.SearchAndCache(rt.ctx, query, c.Offset, c.Limit)

	if !c.Interactive {
		return rt.render(results, func(w io.Writer) { writeRecordList(w, results) })
	}

	selection, err := selectBook(query, results)
	if err != nil {
		return err
	}

	switch selection.Action {
	case tui.ActionSelected:
		rec := selection.Selection
		return rt.render(rec, func(w io.Writer) { writeRecord(w, *rec) })
	case tui.ActionStopped:
		return bherrors.NewStopProcessingError("search cancelled")
	default:
		slog.Info("No book selected", "query", query, "results", len(results))
		return nil
	}
}

func (c *BookRelatedCmd) Run(rt *Runtime) error {
	app, err := rt.App()
	if err != nil {
		return err
	}

	related, err := app.Catalog.Related(rt.ctx, c.Key, c.Limit)
	if err != nil {
		return err
	}
	return rt.render(related, func(w io.Writer) { writeRecordList(w, related) })
}
