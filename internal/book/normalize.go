package book

import (
	"strings"

	"github.com/lepinkainen/bookhaven/internal/googlebooks"
)

// Normalize maps a Google Books volume to a Record. It is pure: the same
// volume always yields the same record, and RefreshedAt is left zero for the
// cache store to fill.
func Normalize(v googlebooks.Volume) (Record, error) {
	if v.ID == "" || v.VolumeInfo == nil {
		return Record{}, ErrInvalidDocument
	}
	info := v.VolumeInfo

	rec := Record{
		Key:             v.ID,
		Title:           UnknownTitle,
		Author:          UnknownAuthor,
		Description:     valueOrEmpty(info.Description),
		Publisher:       nonEmpty(info.Publisher),
		PublicationDate: normalizeDate(info.PublishedDate),
		LanguageCode:    nonEmpty(info.Language),
	}

	if title := valueOrEmpty(info.Title); title != "" {
		rec.Title = title
	}
	if len(info.Authors) > 0 {
		rec.Author = strings.Join(info.Authors, ", ")
	}

	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case googlebooks.IdentifierISBN10:
			rec.ISBN10 = stringPtr(id.Identifier)
		case googlebooks.IdentifierISBN13:
			rec.ISBN13 = stringPtr(id.Identifier)
		}
	}

	if info.PageCount != nil && *info.PageCount >= 0 {
		count := *info.PageCount
		rec.PageCount = &count
	}

	if info.ImageLinks != nil && info.ImageLinks.Thumbnail != "" {
		rec.CoverImageURL = stringPtr(secureURL(info.ImageLinks.Thumbnail))
	}

	if len(info.Categories) > 0 && info.Categories[0] != "" {
		rec.Category = stringPtr(info.Categories[0])
	}

	return rec, nil
}

// normalizeDate pads year and year-month dates to YYYY-MM-DD and truncates
// timestamps to their date part.
func normalizeDate(raw *string) *string {
	date := valueOrEmpty(raw)
	if date == "" {
		return nil
	}

	switch {
	case len(date) == 4:
		date += "-01-01"
	case len(date) == 7:
		date += "-01"
	case len(date) > 10:
		date = date[:10]
	}
	return &date
}

func secureURL(raw string) string {
	if rest, ok := strings.CutPrefix(raw, "http://"); ok {
		return "https://" + rest
	}
	return raw
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return stringPtr(*s)
}

func stringPtr(s string) *string {
	return &s
}
