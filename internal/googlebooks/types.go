package googlebooks

// Volume is a single Google Books volume document. Every field is optional
// upstream; pointer fields distinguish "not sent" from zero values.
type Volume struct {
	ID         string      `json:"id"`
	VolumeInfo *VolumeInfo `json:"volumeInfo,omitempty"`
}

// VolumeInfo is the descriptive block of a volume.
type VolumeInfo struct {
	Title               *string              `json:"title,omitempty"`
	Subtitle            string               `json:"subtitle,omitempty"`
	Authors             []string             `json:"authors,omitempty"`
	Publisher           *string              `json:"publisher,omitempty"`
	PublishedDate       *string              `json:"publishedDate,omitempty"`
	Description         *string              `json:"description,omitempty"`
	IndustryIdentifiers []IndustryIdentifier `json:"industryIdentifiers,omitempty"`
	PageCount           *int                 `json:"pageCount,omitempty"`
	Categories          []string             `json:"categories,omitempty"`
	Language            *string              `json:"language,omitempty"`
	ImageLinks          *ImageLinks          `json:"imageLinks,omitempty"`
}

// IndustryIdentifier is a typed identifier such as ISBN_10 or ISBN_13.
type IndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// ImageLinks holds cover image URLs.
type ImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail,omitempty"`
	Thumbnail      string `json:"thumbnail,omitempty"`
}

// Identifier types used by Google Books.
const (
	IdentifierISBN10 = "ISBN_10"
	IdentifierISBN13 = "ISBN_13"
)

// searchResponse matches the /volumes search response.
type searchResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}
