package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type Flags struct {
	ConfigPath         string
	TestURL            string
	NoWebFetch         bool
	Debug              bool
	Verbose            bool
	Tags               []string
	TagsOverride       []string
	Categories         []string
	CategoriesOverride []string
	Workers            int
	MaxRunTime         time.Duration
	DBUrl              string
}

var flags Flags

var rootCmd = &cobra.Command{
	Use:   "enex2cookbook <input_dir> <output_file>",
	Short: "Convert Evernote .enex exports into a Nextcloud Cookbook import archive",
	Long: `enex2cookbook reads every .enex file below input_dir, turns each note into a
recipe and writes a zip archive that Nextcloud Cookbook can import.

When a note links to its original recipe page, the page is fetched and its
structured recipe data is preferred over the note text. Use --no-web-fetch to
work from the notes alone, or --test-url to check a single page.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if flags.TestURL != "" {
			return cobra.NoArgs(cmd, args)
		}
		if len(args) != 2 {
			return errors.New("requires <input_dir> and <output_file>")
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flags.Debug || flags.Verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, args)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	f.StringVar(&flags.TestURL, "test-url", "", "Fetch one recipe page, print what was extracted and exit")
	f.BoolVar(&flags.NoWebFetch, "no-web-fetch", false, "Disable fetching content from source URLs, use only .enex content")
	f.StringSliceVar(&flags.Tags, "tags", nil, "Tags to add to every recipe")
	f.StringSliceVar(&flags.TagsOverride, "tags-override", nil, "Replace all recipe tags with these")
	f.StringSliceVar(&flags.Categories, "categories", nil, "Categories to add to every recipe")
	f.StringSliceVar(&flags.CategoriesOverride, "categories-override", nil, "Replace all recipe categories with these")
	f.IntVar(&flags.Workers, "workers", 0, "Number of notes resolved concurrently")
	f.DurationVar(&flags.MaxRunTime, "max-run-time", 0, "Stop resolving new notes after this long (0 for no limit)")
	f.StringVar(&flags.DBUrl, "db-url", "", "PostgreSQL connection string for the recipe catalog")

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug output")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
