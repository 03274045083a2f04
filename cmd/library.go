package cmd

import (
	"io"

	"github.com/lepinkainen/bookhaven/internal/library"
)

// LibraryCmd groups the reading library commands
type LibraryCmd struct {
	Add      LibraryAddCmd      `cmd:"" help:"Add a book to your library"`
	Status   LibraryStatusCmd   `cmd:"" help:"Set the reading status of a book"`
	Progress LibraryProgressCmd `cmd:"" help:"Set the reading progress of a book"`
	Remove   LibraryRemoveCmd   `cmd:"" help:"Remove a book from your library"`
	List     LibraryListCmd     `cmd:"" help:"List the books in your library"`
	Stats    LibraryStatsCmd    `cmd:"" help:"Count your books by status"`
}

// LibraryAddCmd adds a book with status to_read
type LibraryAddCmd struct {
	Key string `arg:"" help:"Google Books volume id"`
}

// LibraryStatusCmd changes the status of an entry
type LibraryStatusCmd struct {
	Key    string `arg:"" help:"Google Books volume id"`
	Status string `arg:"" help:"New status" enum:"to_read,reading,completed"`
}

// LibraryProgressCmd changes the progress of an entry
type LibraryProgressCmd struct {
	Key     string `arg:"" help:"Google Books volume id"`
	Percent int    `arg:"" help:"Progress in percent (0-100)"`
}

// LibraryRemoveCmd deletes an entry
type LibraryRemoveCmd struct {
	Key string `arg:"" help:"Google Books volume id"`
}

// LibraryListCmd lists entries, optionally filtered by status
type LibraryListCmd struct {
	Status string `short:"s" help:"Only list books with this status (to_read, reading, completed)"`
}

// LibraryStatsCmd prints the counts per status
type LibraryStatsCmd struct{}

func (c *LibraryAddCmd) Run(rt *Runtime) error {
	return withLibrary(rt, func(lib *library.Service, userID string) error {
		entry, _, err := lib.Add(rt.ctx, userID, c.Key)
		if err != nil {
			return err
		}
		return rt.render(entry, func(w io.Writer) { writeEntry(w, *entry) })
	})
}

func (c *LibraryStatusCmd) Run(rt *Runtime) error {
	return withLibrary(rt, func(lib *library.Service, userID string) error {
		status, err := library.ParseStatus(c.Status)
		if err != nil {
			return err
		}
		entry, err := lib.UpdateStatus(rt.ctx, userID, c.Key, status)
		if err != nil {
			return err
		}
		return rt.render(entry, func(w io.Writer) { writeEntry(w, *entry) })
	})
}

func (c *LibraryProgressCmd) Run(rt *Runtime) error {
	return withLibrary(rt, func(lib *library.Service, userID string) error {
		entry, err := lib.UpdateProgress(rt.ctx, userID, c.Key, c.Percent)
		if err != nil {
			return err
		}
		return rt.render(entry, func(w io.Writer) { writeEntry(w, *entry) })
	})
}

func (c *LibraryRemoveCmd) Run(rt *Runtime) error {
	return withLibrary(rt, func(lib *library.Service, userID string) error {
		if err := lib.Remove(rt.ctx, userID, c.Key); err != nil {
			return err
		}
		result := map[string]string{"removed": c.Key}
		return rt.render(result, func(w io.Writer) { _, _ = io.WriteString(w, "Removed "+c.Key+"\n") })
	})
}

func (c *LibraryListCmd) Run(rt *Runtime) error {
	return withLibrary(rt, func(lib *library.Service, userID string) error {
		entries, err := lib.List(rt.ctx, userID, library.Status(c.Status))
		if err != nil {
			return err
		}
		return rt.render(entries, func(w io.Writer) { writeEntries(w, entries) })
	})
}

func (c *LibraryStatsCmd) Run(rt *Runtime) error {
	return withLibrary(rt, func(lib *library.Service, userID string) error {
		counts, err := lib.Counts(rt.ctx, userID)
		if err != nil {
			return err
		}
		return rt.render(counts, func(w io.Writer) { writeCounts(w, counts) })
	})
}

func withLibrary(rt *Runtime, fn func(lib *library.Service, userID string) error) error {
	userID, err := rt.RequireUser()
	if err != nil {
		return err
	}
	app, err := rt.App()
	if err != nil {
		return err
	}
	return fn(app.Library, userID)
}
