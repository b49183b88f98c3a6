package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/extractor"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/processor"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/resolver"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/scraper"
	"gopkg.in/yaml.v3"
)

type FetchConfig struct {
	Disabled    bool          `yaml:"disabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	RateLimit   float64       `yaml:"rate_limit"`
}

type ParserConfig struct {
	IgnoreHosts      []string `yaml:"ignore_hosts"`
	IgnoreExtensions []string `yaml:"ignore_extensions"`
	SharingParams    []string `yaml:"sharing_params"`
	DisableMarkdown  bool     `yaml:"disable_markdown"`
}

// LabelConfig holds the add/override/default lists for tags or categories.
type LabelConfig struct {
	Add      []string `yaml:"add"`
	Override []string `yaml:"override"`
	Default  []string `yaml:"default"`
}

type ProcessingConfig struct {
	Workers     int           `yaml:"workers"`
	MaxRunTime  time.Duration `yaml:"max_run_time"`
	NoteTimeout time.Duration `yaml:"note_timeout"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	BatchSize int    `yaml:"batch_size"`
}

type Config struct {
	Fetch      FetchConfig      `yaml:"fetch"`
	Parser     ParserConfig     `yaml:"parser"`
	Tags       LabelConfig      `yaml:"tags"`
	Categories LabelConfig      `yaml:"categories"`
	Processing ProcessingConfig `yaml:"processing"`
	Database   DatabaseConfig   `yaml:"database"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/enex2cookbook/config.yaml"),
			"/etc/enex2cookbook/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() *Config {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config
}

// applyDefaults fills unset values. A list explicitly set to [] in the file
// stays empty.
func applyDefaults(config *Config) {
	if config.Fetch.MaxAttempts == 0 {
		config.Fetch.MaxAttempts = 3
	}
	if config.Fetch.Timeout == 0 {
		config.Fetch.Timeout = 15 * time.Second
	}
	if config.Fetch.RetryDelay == 0 {
		config.Fetch.RetryDelay = time.Second
	}
	if config.Fetch.RateLimit == 0 {
		config.Fetch.RateLimit = 2.0
	}

	if config.Tags.Default == nil {
		config.Tags.Default = []string{"imported", "evernote"}
	}
	if config.Categories.Default == nil {
		config.Categories.Default = []string{"Imported"}
	}

	if config.Processing.Workers == 0 {
		config.Processing.Workers = 1
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "recipes"
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}
}

func mergeWithEnv(config *Config) {
	if v := os.Getenv("ENEX2COOKBOOK_NO_WEB_FETCH"); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			config.Fetch.Disabled = disabled
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}

// ResolverOptions returns a fresh copy of the tagging and fetch options.
func (c *Config) ResolverOptions() resolver.Options {
	return resolver.Options{
		DisableWebFetch:    c.Fetch.Disabled,
		TagsAdd:            slices.Clone(c.Tags.Add),
		TagsOverride:       slices.Clone(c.Tags.Override),
		CategoriesAdd:      slices.Clone(c.Categories.Add),
		CategoriesOverride: slices.Clone(c.Categories.Override),
		DefaultTags:        slices.Clone(c.Tags.Default),
		DefaultCategories:  slices.Clone(c.Categories.Default),
	}
}

func (c *Config) ScraperConfig(logger *slog.Logger) scraper.ScraperConfig {
	return scraper.ScraperConfig{
		MaxAttempts: c.Fetch.MaxAttempts,
		Timeout:     c.Fetch.Timeout,
		RetryDelay:  c.Fetch.RetryDelay,
		RateLimit:   c.Fetch.RateLimit,
		Disabled:    c.Fetch.Disabled,
		Logger:      logger,
	}
}

// ProcessorConfig leaves unset lists nil so the parser falls back to its
// built-in defaults.
func (c *Config) ProcessorConfig(logger *slog.Logger) processor.ProcessorConfig {
	return processor.ProcessorConfig{
		IgnoreHosts:      c.Parser.IgnoreHosts,
		IgnoreExtensions: c.Parser.IgnoreExtensions,
		SharingParams:    c.Parser.SharingParams,
		Logger:           logger,
	}
}

func (c *Config) ExtractorConfig(logger *slog.Logger) extractor.ExtractorConfig {
	return extractor.ExtractorConfig{
		DisableMarkdown: c.Parser.DisableMarkdown,
		Logger:          logger,
	}
}

func (c *Config) RunnerConfig(logger *slog.Logger) resolver.RunnerConfig {
	return resolver.RunnerConfig{
		Workers:     c.Processing.Workers,
		MaxRunTime:  c.Processing.MaxRunTime,
		NoteTimeout: c.Processing.NoteTimeout,
		Logger:      logger,
	}
}
