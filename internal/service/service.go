// Package service is the query facade shared by the HTTP server, the CLI and
// the TUI. It owns no state of its own beyond the run event bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"

	"github.com/amishk599/jobagg/internal/adapter"
	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/orchestrator"
)

// ScrapeCompletedTopic is published on the bus with the RunStats of every
// finished run.
const ScrapeCompletedTopic = "scrape:completed"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrInvalidRequest marks caller mistakes: bad paging or unknown sources.
var ErrInvalidRequest = errors.New("invalid request")

type PostingRepo interface {
	model.PostingIterator
	Stats(ctx context.Context, now time.Time) (model.Stats, error)
}

type ProjectionRepo interface {
	ImportFrom(ctx context.Context, src model.PostingIterator) (imported, skipped int, err error)
	List(ctx context.Context, f model.Filter, page, size int) ([]model.Projection, int, int, error)
	Count(ctx context.Context) (int, error)
	CachedCount(ctx context.Context) (int, error)
}

type DetailGetter interface {
	GetDetail(ctx context.Context, id int64, useCache bool) (model.FullDetail, error)
}

type Runner interface {
	Run(ctx context.Context, req orchestrator.RunRequest) model.RunStats
}

type SourceCatalog interface {
	Names() []string
	Describe() []adapter.SourceInfo
}

// Deps are the collaborators every Service needs.
type Deps struct {
	Postings    PostingRepo
	Projections ProjectionRepo
	Details     DetailGetter
	Runner      Runner
	Sources     SourceCatalog
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets a custom clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithBus sets the bus runs are published on.
func WithBus(bus EventBus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithReporter sets the reporter notified after every run.
func WithReporter(r model.RunReporter) Option {
	return func(s *Service) { s.reporter = r }
}

// WithAutoImport imports new postings into the projection store after every run.
func WithAutoImport(on bool) Option {
	return func(s *Service) { s.autoImport = on }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMaxPages sets the page budget used when a request leaves it at zero.
func WithMaxPages(n int) Option {
	return func(s *Service) { s.maxPages = n }
}

type Service struct {
	deps       Deps
	bus        EventBus.Bus
	reporter   model.RunReporter
	autoImport bool
	maxPages   int
	clock      func() time.Time
	logger     *slog.Logger

	// background runs started by StartScrape
	running sync.WaitGroup
}

// New builds a Service and subscribes its post-run handler on the bus.
func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Postings == nil:
		return nil, fmt.Errorf("service: posting store is required")
	case deps.Projections == nil:
		return nil, fmt.Errorf("service: projection store is required")
	case deps.Details == nil:
		return nil, fmt.Errorf("service: detail cache is required")
	case deps.Runner == nil:
		return nil, fmt.Errorf("service: runner is required")
	case deps.Sources == nil:
		return nil, fmt.Errorf("service: source catalog is required")
	}

	s := &Service{
		deps:   deps,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = EventBus.New()
	}

	// Transactional: completed runs are handled one at a time, in order.
	if err := s.bus.SubscribeAsync(ScrapeCompletedTopic, s.onScrapeCompleted, true); err != nil {
		return nil, fmt.Errorf("service: subscribing to %s: %w", ScrapeCompletedTopic, err)
	}
	return s, nil
}

// ListRequest pages through projections. Zero Page and PageSize take defaults.
type ListRequest struct {
	Page     int
	PageSize int
	Filter   model.Filter
}

type ListResult struct {
	Jobs       []model.Projection `json:"jobs"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// ListJobs returns one page of projections. A page past the end is empty,
// not an error.
func (s *Service) ListJobs(ctx context.Context, req ListRequest) (ListResult, error) {
	if req.Page < 0 {
		return ListResult{}, fmt.Errorf("%w: page must be positive", ErrInvalidRequest)
	}
	if req.PageSize < 0 {
		return ListResult{}, fmt.Errorf("%w: page_size must be positive", ErrInvalidRequest)
	}
	page := max(req.Page, 1)
	size := req.PageSize
	if size == 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	jobs, total, pages, err := s.deps.Projections.List(ctx, req.Filter, page, size)
	if err != nil {
		return ListResult{}, fmt.Errorf("listing jobs: %w", err)
	}
	if jobs == nil {
		jobs = []model.Projection{}
	}
	return ListResult{
		Jobs:       jobs,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
	}, nil
}

// GetJobDetail resolves the full body through the detail cache. An unknown
// id returns model.ErrNotFound.
func (s *Service) GetJobDetail(ctx context.Context, id int64, useCache bool) (model.FullDetail, error) {
	return s.deps.Details.GetDetail(ctx, id, useCache)
}

// GetStats summarizes the posting store and the projection cache.
func (s *Service) GetStats(ctx context.Context) (model.Stats, error) {
	st, err := s.deps.Postings.Stats(ctx, s.clock())
	if err != nil {
		return model.Stats{}, fmt.Errorf("posting stats: %w", err)
	}
	if st.ProjectedJobs, err = s.deps.Projections.Count(ctx); err != nil {
		return model.Stats{}, fmt.Errorf("projection count: %w", err)
	}
	if st.CachedDetails, err = s.deps.Projections.CachedCount(ctx); err != nil {
		return model.Stats{}, fmt.Errorf("cached detail count: %w", err)
	}
	return st, nil
}

type ScrapeRequest struct {
	Sources  []string `json:"sources"`
	Keywords string   `json:"keywords"`
	Location string   `json:"location"`
	MaxPages int      `json:"max_pages"`
}

// RunScrape runs the request to completion. Source failures are reported in
// the returned stats; only a malformed request is an error.
func (s *Service) RunScrape(ctx context.Context, req ScrapeRequest) (model.RunStats, error) {
	runReq, err := s.runRequest(req, "")
	if err != nil {
		return model.RunStats{}, err
	}
	return s.run(ctx, runReq), nil
}

// StartScrape validates the request and runs it in the background on a
// context detached from ctx. It returns the run id immediately.
func (s *Service) StartScrape(ctx context.Context, req ScrapeRequest) (string, error) {
	runReq, err := s.runRequest(req, uuid.NewString())
	if err != nil {
		return "", err
	}

	detached := context.WithoutCancel(ctx)
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.run(detached, runReq)
	}()
	return runReq.RunID, nil
}

func (s *Service) runRequest(req ScrapeRequest, runID string) (orchestrator.RunRequest, error) {
	if req.MaxPages < 0 {
		return orchestrator.RunRequest{}, fmt.Errorf("%w: max_pages must be positive", ErrInvalidRequest)
	}
	known := s.deps.Sources.Names()
	for _, name := range req.Sources {
		if !slices.Contains(known, name) {
			return orchestrator.RunRequest{}, fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, name)
		}
	}
	maxPages := req.MaxPages
	if maxPages == 0 {
		maxPages = s.maxPages
	}
	return orchestrator.RunRequest{
		RunID:   runID,
		Sources: req.Sources,
		Query: model.Query{
			Keywords: req.Keywords,
			Location: req.Location,
			MaxPages: maxPages,
		},
	}, nil
}

func (s *Service) run(ctx context.Context, req orchestrator.RunRequest) model.RunStats {
	stats := s.deps.Runner.Run(ctx, req)
	s.bus.Publish(ScrapeCompletedTopic, stats)
	return stats
}

type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Import copies postings not yet projected into the projection store.
func (s *Service) Import(ctx context.Context) (ImportResult, error) {
	imported, skipped, err := s.deps.Projections.ImportFrom(ctx, s.deps.Postings)
	if err != nil {
		return ImportResult{}, fmt.Errorf("importing projections: %w", err)
	}
	s.logger.Info("projection import finished", "imported", imported, "skipped", skipped)
	return ImportResult{Imported: imported, Skipped: skipped}, nil
}

// Sources describes every registered source, sorted by name.
func (s *Service) Sources() []adapter.SourceInfo {
	return s.deps.Sources.Describe()
}

// Wait blocks until background runs and their post-run handlers finish.
func (s *Service) Wait() {
	s.running.Wait()
	s.bus.WaitAsync()
}

func (s *Service) onScrapeCompleted(stats model.RunStats) {
	ctx := context.Background()
	logger := s.logger.With("run_id", stats.RunID)

	if s.autoImport {
		if _, err := s.Import(ctx); err != nil {
			logger.Error("post-run import failed", "error", err)
		}
	}
	if s.reporter != nil {
		if err := s.reporter.Report(ctx, stats); err != nil {
			logger.Error("run report failed", "error", err)
		}
	}
}
