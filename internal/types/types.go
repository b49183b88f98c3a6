package types

import (
	"context"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
)

// Core interfaces
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

type AssetFetcher interface {
	FetchAsset(ctx context.Context, url string) ([]byte, string, error)
}

type NoteParser interface {
	Parse(note models.RawNote) models.ExtractedContent
}

type Extractor interface {
	Extract(html string) (*models.StructuredRecipe, error)
}

type ImageSelector interface {
	Resolve(ctx context.Context, urls []string, embedded []models.Image) *models.Image
}

type RecipeSink interface {
	Write(recipe models.Recipe) error
}

type Catalog interface {
	Store(ctx context.Context, recipes []models.Recipe) error
	Close()
}
