package images

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/types"
)

type Resolver struct {
	fetcher types.AssetFetcher
	logger  *slog.Logger
}

func New(fetcher types.AssetFetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fetcher: fetcher, logger: logger}
}

// Resolve downloads the first web image that succeeds, falling back to the
// first embedded image. It returns nil when neither source has one.
func (r *Resolver) Resolve(ctx context.Context, urls []string, embedded []models.Image) *models.Image {
	if r.fetcher != nil {
		for _, url := range urls {
			if ctx.Err() != nil {
				break
			}
			data, contentType, err := r.fetcher.FetchAsset(ctx, url)
			if err != nil {
				r.logger.Debug("image download failed", "url", url, "error", err)
				continue
			}
			contentType = imageContentType(contentType, data)
			if contentType == "" {
				r.logger.Debug("skipping non-image asset", "url", url)
				continue
			}
			return &models.Image{Data: data, ContentType: contentType, Source: url}
		}
	}

	for _, img := range embedded {
		if len(img.Data) == 0 {
			continue
		}
		if len(urls) > 0 {
			r.logger.Debug("using embedded note image", "source", img.Source)
		}
		out := img
		return &out
	}
	return nil
}

// imageContentType returns the image media type, sniffing the payload when
// the declared type is missing or generic. It is empty for non-images.
func imageContentType(declared string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	if ct == "" || ct == "application/octet-stream" || ct == "binary/octet-stream" {
		sniffed := http.DetectContentType(data)
		if strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	return ""
}
