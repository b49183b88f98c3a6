package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ types.Catalog = (*Catalog)(nil)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	table := fmt.Sprintf("test_recipes_%d", time.Now().UnixNano())
	c, err := NewWithConfig(ctx, CatalogConfig{ConnString: connString, TableName: table, BatchSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() {
		c.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+c.table)
		c.Close()
	})
	return c
}

func TestCatalogStore(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	recipes := []models.Recipe{
		{
			ID:            "a",
			Title:         "Pasta",
			Ingredients:   []string{"200 g spaghetti"},
			Instructions:  []string{"Cook."},
			Categories:    []string{"Dinner"},
			Tags:          []string{"imported"},
			SourceURL:     "https://recipes.test/pasta",
			ContentSource: models.ContentSourceWeb,
			Created:       time.Date(2023, 12, 1, 12, 30, 0, 0, time.UTC),
			Image:         &models.Image{Source: "https://recipes.test/pasta.jpg", Data: []byte("x")},
		},
		{ID: "b", Title: "Bad \xff bytes", ContentSource: models.ContentSourceNote, LowConfidence: true},
		{ID: "c", Title: models.UntitledRecipe, ContentSource: models.ContentSourceNote, LowConfidence: true},
	}
	require.NoError(t, c.Store(ctx, recipes))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entry, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Pasta", entry.Title)
	assert.Equal(t, "https://recipes.test/pasta", entry.SourceURL)
	assert.Equal(t, []string{"Dinner"}, entry.Categories)
	assert.Equal(t, "https://recipes.test/pasta.jpg", entry.Recipe["imageSource"])

	entry, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Bad  bytes", entry.Title)
	assert.True(t, entry.LowConfidence)

	// Upsert replaces instead of duplicating.
	recipes[0].Title = "Better Pasta"
	require.NoError(t, c.Store(ctx, recipes[:1]))
	n, err = c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	entry, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Better Pasta", entry.Title)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "plain", sanitizeUTF8("plain"))
	assert.Equal(t, "crème brûlée", sanitizeUTF8("crème brûlée"))
	assert.Equal(t, "ab", sanitizeUTF8("a\xffb"))
	assert.Equal(t, []string{"x", "y"}, sanitizeAll([]string{"x\xc3", "y"}))
	assert.Nil(t, sanitizeAll(nil))
}

func TestToRecord(t *testing.T) {
	r := toRecord(models.Recipe{
		Title:         "Toast",
		Cuisine:       "British \xff",
		Nutrition:     map[string]string{"calories": "90 kcal"},
		ContentSource: models.ContentSourceNote,
		Missing:       []string{"ingredients"},
	})
	assert.Equal(t, []string{}, r.Ingredients)
	assert.Equal(t, []string{}, r.Instructions)
	assert.Equal(t, []string{"ingredients"}, r.Missing)
	assert.Empty(t, r.ImageSource)
	assert.Equal(t, "British ", r.Cuisine)
	assert.Equal(t, map[string]string{"calories": "90 kcal"}, r.Nutrition)
}
