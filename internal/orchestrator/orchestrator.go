// Package orchestrator drives a set of sources through normalization,
// filtering and the deduplicating store, one goroutine per source.
package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobagg/internal/metrics"
	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/normalize"
)

const (
	defaultWorkers       = 4
	defaultMaxPages      = 5
	defaultSourceTimeout = 5 * time.Minute
)

// SourceRegistry resolves source names for a run.
type SourceRegistry interface {
	Get(name string) (model.Source, bool)
	Names() []string
}

// Config bounds a run. Zero values fall back to defaults.
type Config struct {
	Workers       int
	MaxPages      int
	SourceTimeout time.Duration
}

// RunRequest names the sources to drive and the query they all receive.
// An empty Sources list means every registered source. RunID is generated
// when empty.
type RunRequest struct {
	RunID   string
	Sources []string
	Query   model.Query
}

// Orchestrator runs sources concurrently and records per-source outcomes.
// A failing, slow or panicking source never affects its siblings.
type Orchestrator struct {
	registry   SourceRegistry
	normalizer *normalize.Normalizer
	filter     model.PostingFilter
	store      model.PostingInserter
	cfg        Config
	logger     *slog.Logger
}

// New creates an orchestrator. filter may be nil to keep every posting.
func New(
	registry SourceRegistry,
	normalizer *normalize.Normalizer,
	filter model.PostingFilter,
	store model.PostingInserter,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	return &Orchestrator{
		registry:   registry,
		normalizer: normalizer,
		filter:     filter,
		store:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run drives every requested source and returns once all of them finished.
// Per-source failures are recorded in the returned stats, never returned.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) model.RunStats {
	names := lo.Uniq(lo.Compact(req.Sources))
	if len(names) == 0 {
		names = o.registry.Names()
	}
	q := req.Query
	if q.MaxPages <= 0 {
		q.MaxPages = o.cfg.MaxPages
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	stats := model.RunStats{
		RunID:     runID,
		Query:     q,
		StartedAt: time.Now().UTC(),
		Sources:   make([]model.SourceStats, len(names)),
	}
	logger := o.logger.With("run_id", stats.RunID)
	logger.Info("run started", "sources", names, "keywords", q.Keywords, "location", q.Location, "max_pages", q.MaxPages)

	if len(names) > 0 {
		// Plain Group: a source error must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(min(o.cfg.Workers, len(names)))
		for i, name := range names {
			g.Go(func() error {
				stats.Sources[i] = o.runSource(ctx, name, q, logger)
				return nil
			})
		}
		g.Wait()
	}

	stats.FinishedAt = time.Now().UTC()
	metrics.RunDuration.Observe(stats.FinishedAt.Sub(stats.StartedAt).Seconds())

	totals := stats.Totals()
	logger.Info("run finished",
		"inserted", totals.Inserted,
		"duplicates", totals.Duplicates,
		"raw", totals.Raw,
		"failed", stats.FailedSources(),
		"duration", totals.Duration.Round(time.Millisecond).String(),
	)
	return stats
}

func (o *Orchestrator) runSource(ctx context.Context, name string, q model.Query, logger *slog.Logger) (st model.SourceStats) {
	st.Source = name
	start := time.Now()
	logger = logger.With("source", name)

	defer func() {
		if r := recover(); r != nil {
			st.Err = fmt.Sprintf("panic: %v", r)
		}
		st.Duration = time.Since(start)
		record(st)
		if st.Failed() {
			logger.Warn("source failed",
				"error", st.Err,
				"pages", st.Pages,
				"inserted", st.Inserted,
			)
			return
		}
		logger.Info("source finished",
			"pages", st.Pages,
			"raw", st.Raw,
			"dropped", st.Dropped,
			"filtered", st.Filtered,
			"inserted", st.Inserted,
			"duplicates", st.Duplicates,
			"duration", st.Duration.Round(time.Millisecond).String(),
		)
	}()

	src, ok := o.registry.Get(name)
	if !ok {
		st.Err = (&model.SourceError{Source: name, Err: fmt.Errorf("unknown source")}).Error()
		return st
	}

	srcCtx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout)
	defer cancel()
	// A page that was fetched is stored in full even if the run is cancelled
	// meanwhile.
	writeCtx := context.WithoutCancel(ctx)

	for postings, err := range Pages(srcCtx, src, q) {
		if err != nil {
			st.Err = (&model.SourceError{Source: name, Err: err}).Error()
			return st
		}
		st.Pages++
		if err := o.ingest(writeCtx, name, postings, &st, logger); err != nil {
			st.Err = (&model.SourceError{Source: name, Err: err}).Error()
			return st
		}
	}
	return st
}

// ingest normalizes, filters and stores one page. Only a store failure is
// returned; bad postings are counted and skipped.
func (o *Orchestrator) ingest(ctx context.Context, source string, postings []model.RawPosting, st *model.SourceStats, logger *slog.Logger) error {
	for _, raw := range postings {
		st.Raw++
		p, err := o.normalizer.Normalize(raw, source)
		if err != nil {
			st.Dropped++
			logger.Debug("dropping posting", "title", raw.Title, "error", err)
			continue
		}
		st.Normalized++

		if o.filter != nil && !o.filter.Match(p) {
			st.Filtered++
			continue
		}

		res, err := o.store.Insert(ctx, p)
		if err != nil {
			return fmt.Errorf("storing %s: %w", p.Fingerprint, err)
		}
		if res == model.Duplicate {
			st.Duplicates++
		} else {
			st.Inserted++
		}
	}
	return nil
}

// Pages turns a Source into a lazy page sequence. It stops after q.MaxPages
// pages, after a page marked Done, or after yielding the first error.
func Pages(ctx context.Context, src model.Source, q model.Query) iter.Seq2[[]model.RawPosting, error] {
	return func(yield func([]model.RawPosting, error) bool) {
		for page := 1; page <= q.MaxPages; page++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			p, err := src.FetchPage(ctx, q, page)
			if err != nil {
				yield(nil, fmt.Errorf("page %d: %w", page, err))
				return
			}
			if !yield(p.Postings, nil) || p.Done {
				return
			}
		}
	}
}

func record(st model.SourceStats) {
	metrics.PostingsRaw.WithLabelValues(st.Source).Add(float64(st.Raw))
	metrics.PostingsInserted.WithLabelValues(st.Source).Add(float64(st.Inserted))
	metrics.PostingsDuplicate.WithLabelValues(st.Source).Add(float64(st.Duplicates))
	metrics.PostingsDropped.WithLabelValues(st.Source).Add(float64(st.Dropped))
	metrics.PostingsFiltered.WithLabelValues(st.Source).Add(float64(st.Filtered))
	if st.Failed() {
		metrics.SourceErrors.WithLabelValues(st.Source).Inc()
	}
}
