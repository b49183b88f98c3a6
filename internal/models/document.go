package models

import (
	"strings"
	"time"
)

// RawNote is one note as read from an export archive.
type RawNote struct {
	ID        string
	Title     string
	Body      string
	SourceURL string
	Tags      []string
	Resources []Resource
	Created   time.Time
	Updated   time.Time
}

// Resource is a binary attachment embedded in a note.
type Resource struct {
	Data     []byte
	Mime     string
	Hash     string
	FileName string
}

func (r Resource) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Mime)), "image/")
}

// Image is a resolved image payload.
type Image struct {
	Data        []byte
	ContentType string
	Source      string
}

// Extension maps the content type to the file extension used in exports.
func (i Image) Extension() string {
	ct := strings.ToLower(i.ContentType)
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	switch strings.TrimSpace(ct) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	default:
		return "jpg"
	}
}

// ExtractedContent is what the note itself says about the recipe.
type ExtractedContent struct {
	SourceURL    string
	Text         string
	Lines        []string
	Title        string
	Description  string
	Ingredients  []string
	Instructions []string
	Yield        string
	Images       []Image
	Anomalies    []error
}
