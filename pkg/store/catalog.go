package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("recipe not found")

type CatalogConfig struct {
	ConnString string
	TableName  string
	BatchSize  int
	Logger     *slog.Logger
}

// Catalog keeps an index of imported recipes in PostgreSQL so repeated
// imports can be compared. Rows are keyed by the stable recipe id.
type Catalog struct {
	config CatalogConfig
	table  string
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Entry is a catalog row.
type Entry struct {
	ID            string
	Title         string
	SourceURL     string
	ContentSource string
	LowConfidence bool
	Categories    []string
	Tags          []string
	Recipe        map[string]any
	ImportedAt    time.Time
}

type record struct {
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Ingredients   []string          `json:"ingredients"`
	Instructions  []string          `json:"instructions"`
	Keywords      []string          `json:"keywords,omitempty"`
	Cuisine       string            `json:"cuisine,omitempty"`
	Nutrition     map[string]string `json:"nutrition,omitempty"`
	Yield         string            `json:"yield,omitempty"`
	PrepTime      string            `json:"prepTime,omitempty"`
	CookTime      string            `json:"cookTime,omitempty"`
	TotalTime     string            `json:"totalTime,omitempty"`
	ImageSource   string            `json:"imageSource,omitempty"`
	Missing       []string          `json:"missing,omitempty"`
	ContentSource string            `json:"contentSource"`
}

func NewWithConfig(ctx context.Context, config CatalogConfig) (*Catalog, error) {
	if config.TableName == "" {
		config.TableName = "recipes"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c := &Catalog{
		config: config,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
		pool:   pool,
		logger: logger,
	}

	if err := c.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source_url TEXT,
			content_source TEXT NOT NULL,
			low_confidence BOOLEAN NOT NULL DEFAULT FALSE,
			categories TEXT[],
			tags TEXT[],
			recipe JSONB NOT NULL,
			created_at TIMESTAMPTZ,
			imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, c.table)

	if _, err := c.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Store upserts recipes in one transaction, sending them in batches.
func (c *Catalog) Store(ctx context.Context, recipes []models.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, title, source_url, content_source, low_confidence, categories, tags, recipe, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source_url = EXCLUDED.source_url,
			content_source = EXCLUDED.content_source,
			low_confidence = EXCLUDED.low_confidence,
			categories = EXCLUDED.categories,
			tags = EXCLUDED.tags,
			recipe = EXCLUDED.recipe,
			imported_at = now()`,
		c.table)

	for start := 0; start < len(recipes); start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, len(recipes))

		batch := &pgx.Batch{}
		for _, recipe := range recipes[start:end] {
			data, err := json.Marshal(toRecord(recipe))
			if err != nil {
				return fmt.Errorf("failed to encode recipe %s: %w", recipe.ID, err)
			}
			batch.Queue(stmt,
				recipe.ID,
				sanitizeUTF8(recipe.Title),
				recipe.SourceURL,
				recipe.ContentSource,
				recipe.LowConfidence,
				sanitizeAll(recipe.Categories),
				sanitizeAll(recipe.Tags),
				data,
				pgtype.Timestamptz{Time: recipe.Created, Valid: !recipe.Created.IsZero()},
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range recipes[start:end] {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to upsert recipe: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to upsert recipes: %w", err)
		}
		c.logger.Debug("stored recipe batch", "count", end-start)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*Entry, error) {
	query := fmt.Sprintf(`
		SELECT id, title, source_url, content_source, low_confidence, categories, tags, recipe, imported_at
		FROM %s
		WHERE id = $1`,
		c.table)

	var (
		entry     Entry
		sourceURL pgtype.Text
	)
	err := c.pool.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.Title,
		&sourceURL,
		&entry.ContentSource,
		&entry.LowConfidence,
		&entry.Categories,
		&entry.Tags,
		&entry.Recipe,
		&entry.ImportedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe: %w", err)
	}
	entry.SourceURL = sourceURL.String
	return &entry, nil
}

func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", c.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return n, nil
}

func (c *Catalog) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func toRecord(recipe models.Recipe) record {
	r := record{
		Title:         sanitizeUTF8(recipe.Title),
		Description:   sanitizeUTF8(recipe.Description),
		Ingredients:   sanitizeAll(recipe.Ingredients),
		Instructions:  sanitizeAll(recipe.Instructions),
		Keywords:      sanitizeAll(recipe.Keywords),
		Cuisine:       sanitizeUTF8(recipe.Cuisine),
		Nutrition:     recipe.Nutrition,
		Yield:         sanitizeUTF8(recipe.Yield),
		PrepTime:      recipe.PrepTime,
		CookTime:      recipe.CookTime,
		TotalTime:     recipe.TotalTime,
		Missing:       recipe.Missing,
		ContentSource: recipe.ContentSource,
	}
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Instructions == nil {
		r.Instructions = []string{}
	}
	if recipe.Image != nil {
		r.ImageSource = recipe.Image.Source
	}
	return r
}

func sanitizeAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = sanitizeUTF8(v)
	}
	return out
}

// sanitizeUTF8 drops invalid bytes, which PostgreSQL rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
