package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/types"
	"github.com/google/uuid"
)

// Options controls tagging, categorisation and web access. It is copied on
// construction and never changed afterwards.
type Options struct {
	DisableWebFetch    bool
	TagsAdd            []string
	TagsOverride       []string
	CategoriesAdd      []string
	CategoriesOverride []string
	DefaultTags        []string
	DefaultCategories  []string
}

func DefaultOptions() Options {
	return Options{
		DefaultTags:       []string{"imported", "evernote"},
		DefaultCategories: []string{"Imported"},
	}
}

func (o Options) clone() Options {
	o.TagsAdd = slices.Clone(o.TagsAdd)
	o.TagsOverride = slices.Clone(o.TagsOverride)
	o.CategoriesAdd = slices.Clone(o.CategoriesAdd)
	o.CategoriesOverride = slices.Clone(o.CategoriesOverride)
	o.DefaultTags = slices.Clone(o.DefaultTags)
	o.DefaultCategories = slices.Clone(o.DefaultCategories)
	return o
}

type ResolverConfig struct {
	Parser    types.NoteParser
	Fetcher   types.Fetcher
	Extractor types.Extractor
	Images    types.ImageSelector
	Options   Options
	Logger    *slog.Logger
}

type Resolver struct {
	parser    types.NoteParser
	fetcher   types.Fetcher
	extractor types.Extractor
	images    types.ImageSelector
	options   Options
	logger    *slog.Logger
}

func NewWithConfig(config ResolverConfig) *Resolver {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		parser:    config.Parser,
		fetcher:   config.Fetcher,
		extractor: config.Extractor,
		images:    config.Images,
		options:   config.Options.clone(),
		logger:    logger,
	}
}

func (r *Resolver) Options() Options {
	return r.options.clone()
}

// Resolve produces the best available recipe for a note. Fetch and
// extraction failures fall back to the note's own content; the result is
// always a recipe, flagged low confidence when essential fields are missing.
func (r *Resolver) Resolve(ctx context.Context, note models.RawNote) models.Recipe {
	content := r.parser.Parse(note)

	var structured *models.StructuredRecipe
	if content.SourceURL != "" {
		structured = r.structured(ctx, note.ID, content.SourceURL)
	}

	recipe := merge(note, content, structured)
	recipe.ID = RecipeID(note)
	recipe.Categories = r.categories(structured)
	recipe.Tags = r.tags(note)

	if r.images != nil {
		var urls []string
		if structured != nil {
			urls = absoluteURLs(content.SourceURL, structured.ImageURLs)
		}
		recipe.Image = r.images.Resolve(ctx, urls, content.Images)
	}

	if recipe.LowConfidence {
		r.logger.Debug("low confidence recipe", "note", note.ID, "title", recipe.Title, "missing", recipe.Missing)
	}
	return recipe
}

func (r *Resolver) structured(ctx context.Context, noteID, sourceURL string) *models.StructuredRecipe {
	if r.options.DisableWebFetch || r.fetcher == nil || r.extractor == nil {
		r.logger.Debug("web fetch disabled, using note content", "note", noteID, "url", sourceURL)
		return nil
	}

	html, err := r.fetcher.FetchHTML(ctx, sourceURL)
	if err != nil {
		r.logger.Debug("web fetch failed, using note content", "note", noteID, "url", sourceURL, "error", err)
		return nil
	}

	structured, err := r.extractor.Extract(html)
	if err != nil {
		r.logger.Debug("extraction failed, using note content", "note", noteID, "url", sourceURL, "error", err)
		return nil
	}
	if structured == nil {
		r.logger.Debug("no structured recipe on page, using note content", "note", noteID, "url", sourceURL)
		return nil
	}
	r.logger.Debug("structured recipe found", "note", noteID, "url", sourceURL, "source", structured.Source)
	return structured
}

// merge applies per-field precedence: structured data, then note content.
// Times, keywords, cuisine and nutrition only come from structured data.
func merge(note models.RawNote, content models.ExtractedContent, structured *models.StructuredRecipe) models.Recipe {
	recipe := models.Recipe{
		Title:         content.Title,
		Description:   content.Description,
		Ingredients:   slices.Clone(content.Ingredients),
		Instructions:  slices.Clone(content.Instructions),
		Yield:         content.Yield,
		SourceURL:     content.SourceURL,
		Created:       note.Created,
		Updated:       note.Updated,
		ContentSource: models.ContentSourceNote,
	}

	if structured != nil {
		if s := strings.TrimSpace(structured.Title); s != "" {
			recipe.Title = s
		}
		if s := strings.TrimSpace(structured.Description); s != "" {
			recipe.Description = s
		}
		if len(structured.Ingredients) > 0 {
			recipe.Ingredients = slices.Clone(structured.Ingredients)
		}
		if lines := structured.InstructionLines(); len(lines) > 0 {
			recipe.Instructions = lines
		}
		if s := strings.TrimSpace(structured.Yield); s != "" {
			recipe.Yield = s
		}
		recipe.PrepTime = structured.PrepTime
		recipe.CookTime = structured.CookTime
		recipe.TotalTime = structured.TotalTime
		recipe.Keywords = slices.Clone(structured.Keywords)
		recipe.Cuisine = strings.TrimSpace(structured.Cuisine)
		recipe.Nutrition = maps.Clone(structured.Nutrition)
		// Only ingredients or instructions make the recipe a web recipe.
		if structured.Usable() {
			recipe.ContentSource = models.ContentSourceWeb
		}
	}

	if strings.TrimSpace(recipe.Title) == "" {
		recipe.Missing = append(recipe.Missing, "title")
		recipe.Title = models.UntitledRecipe
	}
	if len(recipe.Ingredients) == 0 {
		recipe.Missing = append(recipe.Missing, "ingredients")
	}
	if len(recipe.Instructions) == 0 {
		recipe.Missing = append(recipe.Missing, "instructions")
	}
	recipe.LowConfidence = len(recipe.Missing) > 0

	return recipe
}

func (r *Resolver) categories(structured *models.StructuredRecipe) []string {
	if len(r.options.CategoriesOverride) > 0 {
		return dedupeFold(r.options.CategoriesOverride)
	}
	base := r.options.DefaultCategories
	if structured != nil && len(structured.Categories) > 0 {
		base = structured.Categories
	}
	return dedupeFold(slices.Concat(base, r.options.CategoriesAdd))
}

func (r *Resolver) tags(note models.RawNote) []string {
	if len(r.options.TagsOverride) > 0 {
		return dedupeFold(r.options.TagsOverride)
	}
	return dedupeFold(slices.Concat(note.Tags, r.options.DefaultTags, r.options.TagsAdd))
}

// dedupeFold drops blanks and case-insensitive duplicates, keeping the first
// spelling seen.
func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func absoluteURLs(base string, refs []string) []string {
	baseURL, err := url.Parse(base)
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		u, perr := url.Parse(strings.TrimSpace(ref))
		if perr != nil {
			continue
		}
		if !u.IsAbs() {
			if err != nil {
				continue
			}
			u = baseURL.ResolveReference(u)
		}
		out = append(out, u.String())
	}
	return out
}

// RecipeID derives a stable identifier so re-running an import yields the
// same ids.
func RecipeID(note models.RawNote) string {
	key := note.ID
	if key == "" {
		sum := sha256.Sum256([]byte(note.Title + "\x00" + note.Created.UTC().String() + "\x00" + note.Body))
		key = hex.EncodeToString(sum[:])
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("evernote-note:"+key)).String()
}
