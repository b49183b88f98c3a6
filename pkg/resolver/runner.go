package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"golang.org/x/sync/errgroup"
)

// NoteSource yields notes until it returns io.EOF.
type NoteSource interface {
	Next() (models.RawNote, error)
}

type RunnerConfig struct {
	Workers     int
	MaxRunTime  time.Duration
	NoteTimeout time.Duration
	OnResolved  func(models.Recipe)
	Logger      *slog.Logger
}

type Stats struct {
	Notes         int
	FromWeb       int
	LowConfidence int
	WithImage     int
	Aborted       bool
	Duration      time.Duration
}

type Runner struct {
	resolver *Resolver
	config   RunnerConfig
	logger   *slog.Logger
}

func NewRunner(resolver *Resolver, config RunnerConfig) *Runner {
	if config.Workers < 1 {
		config.Workers = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{resolver: resolver, config: config, logger: logger}
}

// Run resolves every note from src and hands the recipes to sink in input
// order as soon as each one and all before it are resolved. sink and
// OnResolved are never called concurrently. Reaching MaxRunTime or cancelling ctx stops scheduling new notes;
// recipes resolved before that point are still delivered.
func (r *Runner) Run(ctx context.Context, src NoteSource, sink func(models.Recipe) error) (Stats, error) {
	start := time.Now()
	if r.config.MaxRunTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.MaxRunTime)
		defer cancel()
	}

	var (
		stats Stats
		err   error
	)
	if r.config.Workers == 1 {
		err = r.runSequential(ctx, src, sink, &stats)
	} else {
		err = r.runParallel(ctx, src, sink, &stats)
	}
	stats.Duration = time.Since(start)
	return stats, err
}

func (r *Runner) runSequential(ctx context.Context, src NoteSource, sink func(models.Recipe) error, stats *Stats) error {
	for {
		if ctx.Err() != nil {
			stats.Aborted = true
			r.logger.Debug("batch aborted", "resolved", stats.Notes, "error", ctx.Err())
			return nil
		}
		note, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read note: %w", err)
		}

		if err := r.deliver(r.resolve(ctx, note), sink, stats); err != nil {
			return err
		}
	}
}

// runParallel resolves up to Workers notes at a time. A single goroutine
// hands finished recipes to sink in input order, so at most about twice
// Workers recipes are held in memory at once.
func (r *Runner) runParallel(ctx context.Context, src NoteSource, sink func(models.Recipe) error, stats *Stats) error {
	type slot struct {
		recipe models.Recipe
		done   chan struct{}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan *slot, r.config.Workers)
	delivered := make(chan struct{})
	var sinkErr error
	go func() {
		defer close(delivered)
		for s := range queue {
			<-s.done
			if sinkErr != nil {
				continue
			}
			if err := r.deliver(s.recipe, sink, stats); err != nil {
				sinkErr = err
				cancel()
			}
		}
	}()

	var (
		g       errgroup.Group
		readErr error
		aborted bool
	)
	g.SetLimit(r.config.Workers)

	for {
		if runCtx.Err() != nil {
			aborted = ctx.Err() != nil
			break
		}
		note, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("failed to read note: %w", err)
			break
		}

		s := &slot{done: make(chan struct{})}
		queue <- s
		g.Go(func() error {
			defer close(s.done)
			s.recipe = r.resolve(runCtx, note)
			return nil
		})
	}
	_ = g.Wait()
	close(queue)
	<-delivered

	if aborted {
		stats.Aborted = true
		r.logger.Debug("batch aborted", "resolved", stats.Notes, "error", ctx.Err())
	}
	if sinkErr != nil {
		return sinkErr
	}
	return readErr
}

func (r *Runner) resolve(ctx context.Context, note models.RawNote) models.Recipe {
	if r.config.NoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.NoteTimeout)
		defer cancel()
	}
	return r.resolver.Resolve(ctx, note)
}

func (r *Runner) deliver(recipe models.Recipe, sink func(models.Recipe) error, stats *Stats) error {
	stats.Notes++
	if recipe.ContentSource == models.ContentSourceWeb {
		stats.FromWeb++
	}
	if recipe.LowConfidence {
		stats.LowConfidence++
	}
	if recipe.Image != nil {
		stats.WithImage++
	}
	if r.config.OnResolved != nil {
		r.config.OnResolved(recipe)
	}
	if sink == nil {
		return nil
	}
	if err := sink(recipe); err != nil {
		return fmt.Errorf("failed to write recipe %q: %w", recipe.Title, err)
	}
	return nil
}
