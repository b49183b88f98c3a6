package resolver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/extractor"
)

var ErrNoFetcher = errors.New("no fetcher configured")

// TestURL fetches one page and extracts its recipe without any note
// processing. A nil recipe with a nil error means nothing was found.
func (r *Resolver) TestURL(ctx context.Context, rawURL string) (*models.StructuredRecipe, error) {
	if r.fetcher == nil || r.extractor == nil {
		return nil, ErrNoFetcher
	}
	html, err := r.fetcher.FetchHTML(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("fetched page", "url", rawURL, "bytes", len(html))
	return r.extractor.Extract(html)
}

// FormatReport renders the outcome of TestURL for a terminal.
func FormatReport(rawURL string, recipe *models.StructuredRecipe, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", rawURL)

	if err != nil {
		fmt.Fprintf(&b, "Fetch failed: %v\n", err)
		return b.String()
	}
	if recipe == nil {
		b.WriteString("No structured recipe found\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Found recipe via %s\n", recipe.Source)
	writeField(&b, "Title", recipe.Title)
	writeField(&b, "Description", recipe.Description)
	writeField(&b, "Yield", recipe.Yield)
	writeField(&b, "Prep time", extractor.FormatDuration(recipe.PrepTime))
	writeField(&b, "Cook time", extractor.FormatDuration(recipe.CookTime))
	writeField(&b, "Total time", extractor.FormatDuration(recipe.TotalTime))
	writeField(&b, "Cuisine", recipe.Cuisine)
	writeField(&b, "Categories", strings.Join(recipe.Categories, ", "))
	writeField(&b, "Keywords", strings.Join(recipe.Keywords, ", "))

	fmt.Fprintf(&b, "Ingredients (%d):\n", len(recipe.Ingredients))
	for _, ingredient := range recipe.Ingredients {
		fmt.Fprintf(&b, "  - %s\n", ingredient)
	}
	lines := recipe.InstructionLines()
	fmt.Fprintf(&b, "Instructions (%d):\n", len(lines))
	for i, line := range lines {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, line)
	}
	if len(recipe.Nutrition) > 0 {
		b.WriteString("Nutrition:\n")
		for _, key := range slices.Sorted(maps.Keys(recipe.Nutrition)) {
			fmt.Fprintf(&b, "  %s: %s\n", strings.TrimSuffix(key, "Content"), recipe.Nutrition[key])
		}
	}
	if len(recipe.ImageURLs) > 0 {
		b.WriteString("Images:\n")
		for _, img := range recipe.ImageURLs {
			fmt.Fprintf(&b, "  %s\n", img)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", name, value)
}
