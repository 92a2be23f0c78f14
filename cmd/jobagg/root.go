package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobagg/internal/adapter"
	"github.com/amishk599/jobagg/internal/config"
	"github.com/amishk599/jobagg/internal/detail"
	"github.com/amishk599/jobagg/internal/filter"
	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/normalize"
	"github.com/amishk599/jobagg/internal/notifier"
	"github.com/amishk599/jobagg/internal/orchestrator"
	"github.com/amishk599/jobagg/internal/ratelimit"
	"github.com/amishk599/jobagg/internal/retry"
	"github.com/amishk599/jobagg/internal/service"
	"github.com/amishk599/jobagg/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobagg",
	Short: "Job posting aggregator",
	Long:  "jobagg pulls postings from public job boards, deduplicates them into SQLite and serves them over HTTP and a terminal browser.",
	// Default to `serve` so the bare binary runs the daemon.
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBAGG_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBAGG_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBAGG_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// mustLoad loads the config and builds the logger it describes. A
// configuration error is fatal.
func mustLoad(out io.Writer) (*config.Config, *slog.Logger) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		setupLogger(config.LogConfig{}, debug, os.Stderr).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg, setupLogger(cfg.Log, debug, out)
}

func setupLogger(lc config.LogConfig, dbg bool, out io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	if dbg {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

func setupReporter(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.RunReporter {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack reporter")
		return notifier.NewSlackReporter(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogReporter(logger)
	}
}

func buildFilter(fc config.FilterConfig) model.PostingFilter {
	filters := []model.PostingFilter{
		filter.NewTitleAndLocationFilter(fc.TitleKeywords, fc.Locations).
			WithExcludes(fc.TitleExcludeKeywords, fc.ExcludeLocations),
	}
	if fc.USOnly {
		filters = append(filters, filter.NewUSLocationFilter())
	}
	return filter.All(filters...)
}

func toBoards(boards []config.BoardConfig) []adapter.Board {
	return lo.Map(boards, func(b config.BoardConfig, _ int) adapter.Board {
		return adapter.Board{Token: b.Token, Company: b.Company}
	})
}

func toPolicy(p config.RateLimitPolicy) ratelimit.Policy {
	return ratelimit.Policy{MaxCalls: p.MaxCalls, Interval: p.Interval, MinDelay: p.MinDelay}
}

// createSources returns every source enabled in the config, undecorated.
func createSources(sc config.SourcesConfig, httpClient *http.Client) []model.Source {
	var sources []model.Source
	if sc.RemoteOK {
		sources = append(sources, adapter.NewRemoteOKSource(httpClient))
	}
	if sc.Remotive {
		sources = append(sources, adapter.NewRemotiveSource(httpClient))
	}
	if sc.AuthenticJobs {
		sources = append(sources, adapter.NewAuthenticJobsSource(httpClient))
	}
	if sc.Adzuna.Enabled {
		sources = append(sources, adapter.NewAdzunaSource(adapter.AdzunaConfig{
			AppID:   sc.Adzuna.AppID,
			AppKey:  sc.Adzuna.AppKey,
			Country: sc.Adzuna.Country,
		}, httpClient))
	}
	if sc.WeWorkRemotely.Enabled {
		sources = append(sources, adapter.NewWeWorkRemotelySource(sc.WeWorkRemotely.Categories, httpClient))
	}
	if sc.Greenhouse.Enabled {
		sources = append(sources, adapter.NewGreenhouseSource(toBoards(sc.Greenhouse.Boards), httpClient))
	}
	if sc.Lever.Enabled {
		sources = append(sources, adapter.NewLeverSource(toBoards(sc.Lever.Boards), httpClient))
	}
	if sc.Ashby.Enabled {
		sources = append(sources, adapter.NewAshbySource(toBoards(sc.Ashby.Boards), httpClient))
	}
	if sc.Gem.Enabled {
		sources = append(sources, adapter.NewGemSource(toBoards(sc.Gem.Boards), httpClient))
	}
	return sources
}

// buildRegistry wraps every enabled source with per-source rate limiting and
// retry, and registers it.
func buildRegistry(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (*adapter.Registry, error) {
	limiter := ratelimit.NewLimiter(
		toPolicy(cfg.RateLimit.Default),
		lo.MapValues(cfg.RateLimit.Sources, func(p config.RateLimitPolicy, _ string) ratelimit.Policy {
			return toPolicy(p)
		}),
	)

	registry := adapter.NewRegistry()
	for _, src := range createSources(cfg.Sources, httpClient) {
		name := src.Name()
		var wrapped model.Source = ratelimit.NewRateLimitedSource(src, limiter)
		wrapped = retry.NewRetrySource(wrapped, retry.Policy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		}, logger)
		if err := registry.Register(wrapped, adapter.Catalog[name]); err != nil {
			return nil, err
		}
		policy := limiter.PolicyFor(name)
		logger.Debug("registered source",
			"source", name,
			"max_calls", policy.MaxCalls,
			"interval", policy.Interval.String(),
			"min_delay", policy.MinDelay.String(),
		)
	}
	if len(registry.Names()) == 0 {
		return nil, &model.ConfigurationError{Field: "sources", Err: fmt.Errorf("no sources enabled")}
	}
	return registry, nil
}

func newOrchestrator(cfg *config.Config, registry *adapter.Registry, inserter model.PostingInserter, logger *slog.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(
		registry,
		normalize.New(),
		buildFilter(cfg.Filters),
		inserter,
		orchestrator.Config{
			Workers:       cfg.Scrape.Workers,
			MaxPages:      cfg.Scrape.MaxPages,
			SourceTimeout: cfg.Scrape.SourceTimeout,
		},
		logger,
	)
}

// app is everything a persistent command needs. close must be called once
// the command is done.
type app struct {
	cfg      *config.Config
	db       *store.DB
	registry *adapter.Registry
	svc      *service.Service
	logger   *slog.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger, opts ...service.Option) (*app, error) {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}

	registry, err := buildRegistry(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	cache := detail.NewCache(
		db.Projections(),
		detail.NewHTMLFetcher(httpClient, cfg.Detail.Rate, cfg.Detail.Burst, cfg.Detail.Timeout),
		cfg.Detail.FailureTTL,
		logger,
	)

	base := []service.Option{
		service.WithReporter(setupReporter(cfg, httpClient, logger)),
		service.WithAutoImport(cfg.Scrape.AutoImport),
		service.WithMaxPages(cfg.Scrape.MaxPages),
		service.WithLogger(logger),
	}
	svc, err := service.New(service.Deps{
		Postings:    db.Postings(),
		Projections: db.Projections(),
		Details:     cache,
		Runner:      newOrchestrator(cfg, registry, db.Postings(), logger),
		Sources:     registry,
	}, append(base, opts...)...)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{cfg: cfg, db: db, registry: registry, svc: svc, logger: logger}, nil
}

// close waits for background work started by the service, then closes the store.
func (a *app) close() {
	a.svc.Wait()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// mustApp is mustLoad plus newApp. Any failure is fatal.
func mustApp(out io.Writer, opts ...service.Option) *app {
	cfg, logger := mustLoad(out)
	a, err := newApp(cfg, logger, opts...)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	return a
}
