package cookbook

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ types.RecipeSink = (*Writer)(nil)

var fixedNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = content
	}
	return files
}

func dirOf(t *testing.T, files map[string][]byte, suffix string) string {
	t.Helper()
	for name := range files {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, "/recipe.json")
		}
	}
	t.Fatalf("no entry ending in %s", suffix)
	return ""
}

func TestWriterArchive(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterConfig{Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)

	soup := models.Recipe{
		Title:        "Grandma's Soup",
		Ingredients:  []string{"1 cup broth", " ", "1 onion"},
		Instructions: []string{"Simmer 20 min"},
		Categories:   []string{"Soups", "Winter"},
		Tags:         []string{"imported", "Evernote"},
		Keywords:     []string{"evernote", "comfort"},
		Cuisine:      "Scottish",
		Nutrition:    map[string]string{"calories": "180 kcal"},
		Yield:        "Serves 6",
		TotalTime:    "pt45m",
		CookTime:     "about an hour",
		SourceURL:    "https://recipes.test/soup",
		Created:      time.Date(2023, 12, 1, 12, 30, 0, 0, time.UTC),
		Image:        &models.Image{Data: []byte("\x89PNG..."), ContentType: "image/png"},
	}
	untitled := models.Recipe{Title: models.UntitledRecipe, LowConfidence: true}

	require.NoError(t, w.Write(soup))
	require.NoError(t, w.Write(untitled))
	require.NoError(t, w.Close())
	assert.Equal(t, 2, w.Count())

	files := readArchive(t, buf.Bytes())
	require.Len(t, files, 3)

	soupDir := dirOf(t, files, "_1/recipe.json")
	assert.Equal(t, []byte("\x89PNG..."), files[soupDir+"/full.png"])
	untitledDir := dirOf(t, files, "_2/recipe.json")
	assert.NotContains(t, files, untitledDir+"/full.jpg")

	var doc Document
	require.NoError(t, json.Unmarshal(files[soupDir+"/recipe.json"], &doc))
	assert.Equal(t, "https://schema.org", doc.Context)
	assert.Equal(t, "Recipe", doc.Type)
	assert.Equal(t, "Grandma's Soup", doc.Name)
	assert.Equal(t, "full.png", doc.Image)
	assert.Equal(t, 6, doc.RecipeYield)
	assert.Equal(t, "PT45M", doc.TotalTime)
	assert.Empty(t, doc.CookTime)
	assert.Equal(t, "Soups, Winter", doc.RecipeCategory)
	assert.Equal(t, "Scottish", doc.RecipeCuisine)
	assert.Equal(t, map[string]any{"@type": "NutritionInformation", "calories": "180 kcal"}, doc.Nutrition)
	assert.Equal(t, "imported, Evernote, comfort", doc.Keywords)
	assert.Equal(t, []string{"1 cup broth", "1 onion"}, doc.RecipeIngredient)
	assert.Equal(t, []HowToStep{{Type: "HowToStep", Text: "Simmer 20 min"}}, doc.RecipeInstructions)
	assert.Equal(t, "2023-12-01T12:30:00Z", doc.DateCreated)
	assert.Equal(t, "2024-05-01T09:00:00Z", doc.DateModified)
	assert.Equal(t, "https://recipes.test/soup", doc.URL)

	var untitledDoc map[string]any
	require.NoError(t, json.Unmarshal(files[untitledDir+"/recipe.json"], &untitledDoc))
	assert.Equal(t, models.UntitledRecipe, untitledDoc["name"])
	assert.Empty(t, untitledDoc["recipeIngredient"])
	assert.NotContains(t, untitledDoc, "nutrition")
	assert.NotContains(t, untitledDoc, "recipeCuisine")

	require.NoError(t, json.Unmarshal(files[untitledDir+"/recipe.json"], &doc))
	assert.Equal(t, models.UntitledRecipe, doc.Name)
	assert.Empty(t, doc.RecipeIngredient)
}

func TestWriterRejectsInvalidRecipe(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterConfig{})
	require.NoError(t, err)

	err = w.Write(models.Recipe{Title: "", Ingredients: []string{"1 egg"}})
	require.ErrorIs(t, err, ErrInvalidRecipe)
	assert.Contains(t, err.Error(), "/name")
	assert.Equal(t, 0, w.Count())

	require.NoError(t, w.Close())
	assert.Empty(t, readArchive(t, buf.Bytes()))
}

func TestParseYield(t *testing.T) {
	tests := []struct {
		in       string
		expected int
	}{
		{"4", 4},
		{"Serves 6", 6},
		{"8-10 cookies", 8},
		{"a dozen", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseYield(tt.in))
		})
	}
}
