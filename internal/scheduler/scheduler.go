// Package scheduler runs the configured search profiles on a cron schedule
// and prunes old postings once a day.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/service"
)

const defaultCleanupSpec = "@daily"

// Search is one saved query run on every cycle.
type Search struct {
	Name     string
	Keywords string
	Location string
	Sources  []string
	MaxPages int
}

type Scraper interface {
	RunScrape(ctx context.Context, req service.ScrapeRequest) (model.RunStats, error)
}

type Cleaner interface {
	Cleanup(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Spec         string // cron spec, e.g. "@every 6h"
	Searches     []Search
	CleanupAfter time.Duration // zero disables cleanup
	CleanupSpec  string
}

// Scheduler owns the main loop: one immediate cycle, then a cycle per cron tick.
type Scheduler struct {
	scraper Scraper
	cleaner Cleaner
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// NewScheduler validates the cron specs up front so a typo fails at startup.
func NewScheduler(scraper Scraper, cleaner Cleaner, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.CleanupSpec == "" {
		cfg.CleanupSpec = defaultCleanupSpec
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("schedule spec %q: %w", cfg.Spec, err)
	}
	if _, err := cron.ParseStandard(cfg.CleanupSpec); err != nil {
		return nil, fmt.Errorf("cleanup spec %q: %w", cfg.CleanupSpec, err)
	}
	if len(cfg.Searches) == 0 {
		cfg.Searches = []Search{{Name: "default"}}
	}
	return &Scheduler{
		scraper: scraper,
		cleaner: cleaner,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Run blocks until ctx is cancelled, then waits for a running cycle to
// finish. It returns nil on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"spec", s.cfg.Spec,
		"searches", len(s.cfg.Searches),
		"cleanup_after", s.cfg.CleanupAfter.String(),
	)

	// Run one immediate cycle.
	s.runCycle(ctx)

	cronLog := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() { s.runCycle(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	if s.cleaner != nil && s.cfg.CleanupAfter > 0 {
		if _, err := c.AddFunc(s.cfg.CleanupSpec, func() { s.cleanup(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc: %w", err)
		}
	}
	c.Start()

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

// runCycle runs every search sequentially. A failing search is logged and
// the rest still run.
func (s *Scheduler) runCycle(ctx context.Context) {
	for _, search := range s.cfg.Searches {
		if ctx.Err() != nil {
			return
		}

		stats, err := s.scraper.RunScrape(ctx, service.ScrapeRequest{
			Sources:  search.Sources,
			Keywords: search.Keywords,
			Location: search.Location,
			MaxPages: search.MaxPages,
		})
		if err != nil {
			s.logger.Error("search failed",
				"search", search.Name,
				"error", err,
			)
			continue
		}
		t := stats.Totals()
		s.logger.Info("search finished",
			"search", search.Name,
			"run_id", stats.RunID,
			"inserted", t.Inserted,
			"failed_sources", stats.FailedSources(),
		)
	}
}

func (s *Scheduler) cleanup(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.CleanupAfter)
	n, err := s.cleaner.Cleanup(ctx, cutoff)
	if err != nil {
		s.logger.Error("cleanup failed", "error", err)
		return
	}
	s.logger.Info("cleanup finished", "removed", n, "cutoff", cutoff.Format(time.RFC3339))
}
