package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/cache"
	"github.com/lepinkainen/bookhaven/internal/library"
	"github.com/lepinkainen/bookhaven/internal/reviews"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// render writes v in the selected format; text output is produced by text.
func (rt *Runtime) render(v any, text func(w io.Writer)) error {
	switch rt.format {
	case formatJSON:
		enc := json.NewEncoder(rt.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to write json: %w", err)
		}
	case formatYAML:
		enc := yaml.NewEncoder(rt.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to write yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to write yaml: %w", err)
		}
	default:
		text(rt.out)
	}
	return nil
}

func writeRecord(w io.Writer, rec book.Record) {
	fmt.Fprintln(w, rec.Summary())
	fmt.Fprintf(w, "  key:        %s\n", rec.Key)
	optional := []struct {
		label string
		value *string
	}{
		{"published", rec.PublicationDate},
		{"publisher", rec.Publisher},
		{"category", rec.Category},
		{"language", rec.LanguageCode},
		{"isbn13", rec.ISBN13},
		{"isbn10", rec.ISBN10},
		{"cover", rec.CoverImageURL},
	}
	for _, field := range optional {
		if field.value != nil {
			fmt.Fprintf(w, "  %-11s %s\n", field.label+":", *field.value)
		}
	}
	if rec.PageCount != nil {
		fmt.Fprintf(w, "  pages:      %d\n", *rec.PageCount)
	}
	if rec.Description != "" {
		fmt.Fprintf(w, "\n%s\n", rec.Description)
	}
}

func writeRecordList(w io.Writer, records []book.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%-14s %s\n", rec.Key, rec.Summary())
	}
}

func writeEntry(w io.Writer, entry library.Entry) {
	fmt.Fprintf(w, "%-14s %-9s %3d%%  %s\n", entry.BookKey, entry.Status, entry.Progress, entrySummary(entry))
}

func writeEntries(w io.Writer, entries []library.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Library is empty.")
		return
	}
	for _, entry := range entries {
		writeEntry(w, entry)
	}
}

func entrySummary(entry library.Entry) string {
	if entry.Title == "" {
		return entry.BookKey
	}
	return entry.Title + " by " + entry.Author
}

func writeCounts(w io.Writer, counts library.Counts) {
	fmt.Fprintf(w, "to_read:   %d\nreading:   %d\ncompleted: %d\ntotal:     %d\n",
		counts.ToRead, counts.Reading, counts.Completed, counts.Total)
}

func writeReview(w io.Writer, review reviews.Review) {
	header := fmt.Sprintf("%s  %s  %s", review.ID, strings.Repeat("*", review.Rating), review.UserID)
	if review.Title != nil {
		header += "  " + *review.Title
	}
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "  book: %s  likes: %d  posted: %s\n", review.BookKey, review.LikesCount, review.CreatedAt.Format("2006-01-02"))
	if review.Text != "" {
		fmt.Fprintf(w, "  %s\n", review.Text)
	}
}

func writeReviews(w io.Writer, list []reviews.Review) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No reviews yet.")
		return
	}
	for _, review := range list {
		writeReview(w, review)
	}
}

func writeReviewStats(w io.Writer, stats reviews.Stats) {
	fmt.Fprintf(w, "reviews: %d\naverage: %.1f\n", stats.Count, stats.AverageRating)
}

func writeCacheStats(w io.Writer, stats cache.Stats) {
	fmt.Fprintf(w, "total: %d\nfresh: %d\nstale: %d\n", stats.Total, stats.Fresh, stats.Stale)
}
