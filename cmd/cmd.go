package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/types"
	cfgPkg "github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/config"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/cookbook"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/enex"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/extractor"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/images"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/processor"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/resolver"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/scraper"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/pkg/store"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("notes"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("no-web-fetch") {
		cfg.Fetch.Disabled = flags.NoWebFetch
	}
	if changed("tags") {
		cfg.Tags.Add = flags.Tags
	}
	if changed("tags-override") {
		cfg.Tags.Override = flags.TagsOverride
	}
	if changed("categories") {
		cfg.Categories.Add = flags.Categories
	}
	if changed("categories-override") {
		cfg.Categories.Override = flags.CategoriesOverride
	}
	if changed("workers") {
		cfg.Processing.Workers = flags.Workers
	}
	if changed("max-run-time") {
		cfg.Processing.MaxRunTime = flags.MaxRunTime
	}
	if changed("db-url") {
		cfg.Database.URL = flags.DBUrl
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("  %s", e.Error())
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}
	return cfg, nil
}

func newResolver(cfg *cfgPkg.Config, logger *slog.Logger) *resolver.Resolver {
	web := scraper.NewWithConfig(cfg.ScraperConfig(logger))
	return resolver.NewWithConfig(resolver.ResolverConfig{
		Parser:    processor.NewWithConfig(cfg.ProcessorConfig(logger)),
		Fetcher:   web,
		Extractor: extractor.NewWithConfig(cfg.ExtractorConfig(logger)),
		Images:    images.New(web, logger),
		Options:   cfg.ResolverOptions(),
		Logger:    logger,
	})
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()

	if flags.TestURL != "" {
		// A single page check always goes to the network.
		cfg.Fetch.Disabled = false
		return runTestURL(ctx, newResolver(cfg, logger), flags.TestURL)
	}
	return convert(ctx, cfg, logger, args[0], args[1])
}

func runTestURL(ctx context.Context, r *resolver.Resolver, url string) error {
	spinner := getSpinner("Fetching " + url)
	recipe, err := r.TestURL(ctx, url)
	spinner.Finish()
	fmt.Print("\r")

	report := resolver.FormatReport(url, recipe, err)
	switch {
	case err != nil:
		color.Red("%s", report)
		return fmt.Errorf("failed to fetch %s", url)
	case recipe == nil:
		color.Yellow("%s", report)
	default:
		color.Green("%s", report)
	}
	return nil
}

func convert(ctx context.Context, cfg *cfgPkg.Config, logger *slog.Logger, inputDir, outputFile string) error {
	if !strings.EqualFold(filepath.Ext(outputFile), ".zip") {
		outputFile += ".zip"
	}

	src, err := enex.OpenDir(inputDir, logger)
	if err != nil {
		return err
	}
	defer src.Close()
	color.Blue("Found %d .enex files in %s", len(src.Files()), inputDir)
	if cfg.Fetch.Disabled {
		color.Yellow("Web fetch disabled, using note content only")
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	writer, err := cookbook.NewWriter(out, cookbook.WriterConfig{Logger: logger})
	if err != nil {
		return err
	}

	var sink types.RecipeSink = writer

	var catalog types.Catalog
	if cfg.Database.URL != "" {
		c, err := store.NewWithConfig(ctx, store.CatalogConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			BatchSize:  cfg.Database.BatchSize,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize recipe catalog: %w", err)
		}
		defer c.Close()
		catalog = c
	}

	bar := getProgressBar(-1, "Converting notes...")
	runnerCfg := cfg.RunnerConfig(logger)
	runnerCfg.OnResolved = func(recipe models.Recipe) {
		bar.Add(1)
		if recipe.LowConfidence {
			logger.Info("recipe needs review", "title", recipe.Title, "missing", recipe.Missing)
		}
	}

	var pending []models.Recipe
	flush := func() error {
		if catalog == nil || len(pending) == 0 {
			return nil
		}
		if err := catalog.Store(ctx, pending); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	stats, err := resolver.NewRunner(newResolver(cfg, logger), runnerCfg).Run(ctx, src, func(recipe models.Recipe) error {
		if err := sink.Write(recipe); err != nil {
			if !errors.Is(err, cookbook.ErrInvalidRecipe) {
				return err
			}
			logger.Warn("skipping recipe", "note", recipe.ID, "error", err)
			return nil
		}
		if catalog != nil {
			// The catalog only keeps the image source, not its bytes.
			recipe.Image = stripImageData(recipe.Image)
			pending = append(pending, recipe)
			if len(pending) >= cfg.Database.BatchSize {
				return flush()
			}
		}
		return nil
	})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return fmt.Errorf("failed to store recipes: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	color.Green("✓ Converted %d notes in %s", stats.Notes, stats.Duration.Round(time.Millisecond))
	color.Green("  %d from web pages, %d with images", stats.FromWeb, stats.WithImage)
	if stats.LowConfidence > 0 {
		color.Yellow("  %d recipes are missing a title, ingredients or instructions", stats.LowConfidence)
	}
	if stats.Aborted {
		color.Yellow("  Stopped early: maximum run time reached or interrupted")
	}
	color.Cyan("Export created: %s", outputFile)
	fmt.Println("Import it into Nextcloud Cookbook or any app that reads schema.org Recipe data.")
	return nil
}

func stripImageData(img *models.Image) *models.Image {
	if img == nil {
		return nil
	}
	return &models.Image{ContentType: img.ContentType, Source: img.Source}
}
