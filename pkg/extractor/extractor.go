package extractor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
)

const (
	SourceJSONLD    = "json-ld"
	SourceHeuristic = "heuristic"
	SourceMarkdown  = "markdown"
)

// ExtractionError reports a page that could not be read at all.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting recipe (%s): %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type ExtractorConfig struct {
	// DisableMarkdown skips the markdown section scan fallback.
	DisableMarkdown bool
	Logger          *slog.Logger
}

type Extractor struct {
	config ExtractorConfig
	logger *slog.Logger
}

func NewWithConfig(config ExtractorConfig) *Extractor {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{config: config, logger: logger}
}

func New() *Extractor {
	return NewWithConfig(ExtractorConfig{})
}

// Extract finds recipe metadata in a page. A nil recipe with a nil error
// means the page holds no usable recipe. A JSON-LD recipe is kept whenever
// it has any field; the markup strategies only fill in its ingredients and
// instructions, and on their own they must find one of the two.
func (e *Extractor) Extract(html string) (*models.StructuredRecipe, error) {
	if strings.TrimSpace(html) == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{Stage: "parse", Err: err}
	}

	structured := e.fromJSONLD(doc)
	if structured.Usable() {
		return structured, nil
	}
	if structured.Empty() {
		structured = nil
		e.logger.Debug("no json-ld recipe found, trying heuristics")
	} else {
		e.logger.Debug("json-ld recipe has no ingredients or instructions, trying heuristics", "title", structured.Title)
	}

	heuristic := fromMarkup(doc)
	if !heuristic.Usable() && !e.config.DisableMarkdown {
		md, err := fromMarkdown(html)
		if err != nil {
			e.logger.Debug("markdown fallback failed", "error", err)
		} else if md.Usable() {
			md.Title = firstNonEmpty(heuristic.Title, md.Title)
			md.ImageURLs = append(heuristic.ImageURLs, md.ImageURLs...)
			heuristic = md
		}
	}
	if heuristic.Usable() {
		return overlay(structured, heuristic), nil
	}
	if structured != nil {
		e.logger.Debug("using partial json-ld recipe", "title", structured.Title)
		return structured, nil
	}
	e.logger.Debug("no recipe found by any strategy")
	return nil, nil
}

// overlay fills the heuristic result with whatever the partial structured
// recipe did provide.
func overlay(structured, heuristic *models.StructuredRecipe) *models.StructuredRecipe {
	if structured == nil {
		return heuristic
	}
	heuristic.Title = firstNonEmpty(structured.Title, heuristic.Title)
	heuristic.Description = firstNonEmpty(structured.Description, heuristic.Description)
	if len(structured.ImageURLs) > 0 {
		heuristic.ImageURLs = structured.ImageURLs
	}
	heuristic.Categories = structured.Categories
	heuristic.Keywords = structured.Keywords
	heuristic.Cuisine = structured.Cuisine
	heuristic.Yield = firstNonEmpty(structured.Yield, heuristic.Yield)
	heuristic.PrepTime = structured.PrepTime
	heuristic.CookTime = structured.CookTime
	heuristic.TotalTime = structured.TotalTime
	heuristic.Nutrition = structured.Nutrition
	return heuristic
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
