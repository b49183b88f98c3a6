package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENEX2COOKBOOK_NO_WEB_FETCH", "")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
fetch:
  max_attempts: 5
  timeout: 20s
  retry_delay: 500ms
  rate_limit: 1.5

parser:
  ignore_hosts:
    - "intranet.local"
  disable_markdown: true

tags:
  add: ["family"]
  default: []

categories:
  override: ["Desserts"]

processing:
  workers: 4
  max_run_time: 10m

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_recipes"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 5, config.Fetch.MaxAttempts)
	assert.Equal(t, 20*time.Second, config.Fetch.Timeout)
	assert.Equal(t, 500*time.Millisecond, config.Fetch.RetryDelay)
	assert.Equal(t, 1.5, config.Fetch.RateLimit)
	assert.Equal(t, []string{"intranet.local"}, config.Parser.IgnoreHosts)
	assert.True(t, config.Parser.DisableMarkdown)
	assert.Equal(t, []string{"family"}, config.Tags.Add)
	assert.Empty(t, config.Tags.Default, "explicit empty list is kept")
	assert.Equal(t, []string{"Imported"}, config.Categories.Default)
	assert.Equal(t, []string{"Desserts"}, config.Categories.Override)
	assert.Equal(t, 4, config.Processing.Workers)
	assert.Equal(t, 10*time.Minute, config.Processing.MaxRunTime)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_recipes", config.Database.TableName)
	assert.Equal(t, 100, config.Database.BatchSize)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch: [not, a, map"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENEX2COOKBOOK_NO_WEB_FETCH", "")

	config := getDefaultConfig()

	assert.False(t, config.Fetch.Disabled)
	assert.Equal(t, 3, config.Fetch.MaxAttempts)
	assert.Equal(t, 15*time.Second, config.Fetch.Timeout)
	assert.Equal(t, time.Second, config.Fetch.RetryDelay)
	assert.Equal(t, 2.0, config.Fetch.RateLimit)
	assert.Equal(t, []string{"imported", "evernote"}, config.Tags.Default)
	assert.Equal(t, []string{"Imported"}, config.Categories.Default)
	assert.Equal(t, 1, config.Processing.Workers)
	assert.Zero(t, config.Processing.MaxRunTime)
	assert.Equal(t, "recipes", config.Database.TableName)
	assert.Empty(t, config.Validate())
}

func TestMergeWithEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db.internal/recipes")
	t.Setenv("ENEX2COOKBOOK_NO_WEB_FETCH", "true")

	config := getDefaultConfig()
	assert.True(t, config.Fetch.Disabled)
	assert.Equal(t, "postgres://db.internal/recipes", config.Database.URL)

	t.Setenv("ENEX2COOKBOOK_NO_WEB_FETCH", "maybe")
	config = getDefaultConfig()
	assert.False(t, config.Fetch.Disabled, "unparseable values are ignored")
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		expected []string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name: "fetch limits",
			mutate: func(c *Config) {
				c.Fetch.MaxAttempts = 11
				c.Fetch.Timeout = 100 * time.Millisecond
				c.Fetch.RateLimit = -1
			},
			expected: []string{"fetch.max_attempts", "fetch.rate_limit", "fetch.timeout"},
		},
		{
			name: "blank labels",
			mutate: func(c *Config) {
				c.Tags.Add = []string{"ok", ""}
				c.Categories.Override = []string{""}
			},
			expected: []string{"categories.override", "tags.add"},
		},
		{
			name: "bad extension",
			mutate: func(c *Config) {
				c.Parser.IgnoreExtensions = []string{".pdf", "zip"}
			},
			expected: []string{"parser.ignore_extensions"},
		},
		{
			name: "processing bounds",
			mutate: func(c *Config) {
				c.Processing.Workers = 64
				c.Processing.MaxRunTime = -time.Second
			},
			expected: []string{"processing.max_run_time", "processing.workers"},
		},
		{
			name: "database",
			mutate: func(c *Config) {
				c.Database.URL = "mysql://localhost/recipes"
				c.Database.TableName = "Recipes; DROP"
				c.Database.BatchSize = -5
			},
			expected: []string{"database.batch_size", "database.table_name", "database.url"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			applyDefaults(config)
			tt.mutate(config)

			var fields []string
			for _, err := range config.Validate() {
				fields = append(fields, err.Field)
				assert.NotEmpty(t, err.Message)
			}
			assert.Equal(t, tt.expected, fields)
		})
	}
}

func TestResolverOptions(t *testing.T) {
	config := &Config{}
	applyDefaults(config)
	config.Fetch.Disabled = true
	config.Tags.Add = []string{"family"}
	config.Categories.Override = []string{"Soups"}

	opts := config.ResolverOptions()
	assert.True(t, opts.DisableWebFetch)
	assert.Equal(t, []string{"family"}, opts.TagsAdd)
	assert.Equal(t, []string{"Soups"}, opts.CategoriesOverride)
	assert.Equal(t, []string{"imported", "evernote"}, opts.DefaultTags)

	opts.TagsAdd[0] = "changed"
	assert.Equal(t, []string{"family"}, config.Tags.Add)

	sc := config.ScraperConfig(nil)
	assert.True(t, sc.Disabled)
	assert.Equal(t, 3, sc.MaxAttempts)

	rc := config.RunnerConfig(nil)
	assert.Equal(t, 1, rc.Workers)
}
