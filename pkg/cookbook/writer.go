// Package cookbook writes recipes as a Nextcloud Cookbook import archive.
package cookbook

import (
	"archive/zip"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/goliatone/go-slug"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrInvalidRecipe = errors.New("invalid recipe document")

//go:embed recipe.schema.json
var recipeSchema []byte

var (
	yieldPattern    = regexp.MustCompile(`\d+`)
	durationPattern = regexp.MustCompile(`^P(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)
)

type HowToStep struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

// Document is the recipe.json layout the Cookbook app imports.
type Document struct {
	Context            string         `json:"@context"`
	Type               string         `json:"@type"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Image              string         `json:"image"`
	RecipeYield        int            `json:"recipeYield,omitempty"`
	PrepTime           string         `json:"prepTime,omitempty"`
	CookTime           string         `json:"cookTime,omitempty"`
	TotalTime          string         `json:"totalTime,omitempty"`
	RecipeCategory     string         `json:"recipeCategory"`
	RecipeCuisine      string         `json:"recipeCuisine,omitempty"`
	Keywords           string         `json:"keywords"`
	RecipeIngredient   []string       `json:"recipeIngredient"`
	RecipeInstructions []HowToStep    `json:"recipeInstructions"`
	Nutrition          map[string]any `json:"nutrition,omitempty"`
	Tool               []string       `json:"tool"`
	DateCreated        string         `json:"dateCreated"`
	DateModified       string         `json:"dateModified"`
	URL                string         `json:"url"`
}

// NewDocument maps a resolved recipe onto the Cookbook layout. imageName is
// the archive-local file name of the main image, or empty.
func NewDocument(recipe models.Recipe, imageName string, now time.Time) Document {
	doc := Document{
		Context:            "https://schema.org",
		Type:               "Recipe",
		Name:               recipe.Title,
		Description:        recipe.Description,
		Image:              imageName,
		RecipeYield:        parseYield(recipe.Yield),
		PrepTime:           isoDuration(recipe.PrepTime),
		CookTime:           isoDuration(recipe.CookTime),
		TotalTime:          isoDuration(recipe.TotalTime),
		RecipeCategory:     strings.Join(recipe.Categories, ", "),
		RecipeCuisine:      recipe.Cuisine,
		Nutrition:          nutrition(recipe.Nutrition),
		Keywords:           strings.Join(keywords(recipe), ", "),
		RecipeIngredient:   []string{},
		RecipeInstructions: []HowToStep{},
		Tool:               []string{},
		DateCreated:        formatTime(recipe.Created, now),
		DateModified:       formatTime(recipe.Updated, now),
		URL:                recipe.SourceURL,
	}
	for _, ingredient := range recipe.Ingredients {
		if ingredient = strings.TrimSpace(ingredient); ingredient != "" {
			doc.RecipeIngredient = append(doc.RecipeIngredient, ingredient)
		}
	}
	for _, step := range recipe.Instructions {
		if step = strings.TrimSpace(step); step != "" {
			doc.RecipeInstructions = append(doc.RecipeInstructions, HowToStep{Type: "HowToStep", Text: step})
		}
	}
	return doc
}

func nutrition(values map[string]string) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := map[string]any{"@type": "NutritionInformation"}
	for key, value := range values {
		out[key] = value
	}
	return out
}

type WriterConfig struct {
	Logger *slog.Logger
	// Now stamps recipes that carry no note timestamps.
	Now func() time.Time
}

// Writer streams recipe directories into a zip archive. It is not safe for
// concurrent use.
type Writer struct {
	zw     *zip.Writer
	schema *jsonschema.Schema
	count  int
	now    func() time.Time
	logger *slog.Logger
}

func NewWriter(w io.Writer, config WriterConfig) (*Writer, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile recipe schema: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Writer{zw: zip.NewWriter(w), schema: schema, now: now, logger: logger}, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("recipe.schema.json", bytes.NewReader(recipeSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("recipe.schema.json")
}

// Write adds <slug>_<n>/recipe.json and, when the recipe has an image,
// <slug>_<n>/full.<ext>. Nothing is written for a recipe that fails schema
// validation.
func (w *Writer) Write(recipe models.Recipe) error {
	var imageName string
	if recipe.Image != nil && len(recipe.Image.Data) > 0 {
		imageName = "full." + recipe.Image.Extension()
	}

	doc := NewDocument(recipe, imageName, w.now())
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode recipe %q: %w", recipe.Title, err)
	}
	if err := w.validate(data); err != nil {
		return fmt.Errorf("recipe %q: %w", recipe.Title, err)
	}

	dir := w.dirName(recipe.Title)
	if err := w.add(dir+"/recipe.json", data); err != nil {
		return err
	}
	if imageName != "" {
		if err := w.add(dir+"/"+imageName, recipe.Image.Data); err != nil {
			return err
		}
	}
	w.logger.Debug("recipe written", "dir", dir, "image", imageName != "", "low_confidence", recipe.LowConfidence)
	return nil
}

func (w *Writer) validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
	}
	if err := w.schema.Validate(v); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrInvalidRecipe, strings.Join(issues(verr), "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
	}
	return nil
}

func issues(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		return []string{fmt.Sprintf("%s: %s", err.InstanceLocation, err.Message)}
	}
	var out []string
	for _, cause := range err.Causes {
		out = append(out, issues(cause)...)
	}
	return out
}

func (w *Writer) dirName(title string) string {
	w.count++
	name, err := slug.Normalize(title)
	if err != nil || name == "" {
		name = "recipe"
	}
	return name + "_" + strconv.Itoa(w.count)
}

func (w *Writer) add(name string, data []byte) error {
	f, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Count returns the number of recipes written so far.
func (w *Writer) Count() int {
	return w.count
}

func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func parseYield(yield string) int {
	m := yieldPattern.FindString(yield)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func isoDuration(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "P" || value == "PT" || !durationPattern.MatchString(value) {
		return ""
	}
	return value
}

func keywords(recipe models.Recipe) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range append(append([]string{}, recipe.Tags...), recipe.Keywords...) {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(k))
	}
	return out
}

func formatTime(t, fallback time.Time) string {
	if t.IsZero() {
		t = fallback
	}
	return t.UTC().Format(time.RFC3339)
}
