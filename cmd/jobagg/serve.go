package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobagg/internal/config"
	"github.com/amishk599/jobagg/internal/httpserver"
	"github.com/amishk599/jobagg/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

var noSchedule bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scrape scheduler",
	Long:  "Serves the query API and runs the configured searches on schedule; blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "serve the API only, never scrape on a schedule")
	rootCmd.AddCommand(serveCmd)
}

func toSearches(searches []config.SearchConfig) []scheduler.Search {
	return lo.Map(searches, func(s config.SearchConfig, _ int) scheduler.Search {
		return scheduler.Search{
			Name:     s.Name,
			Keywords: s.Keywords,
			Location: s.Location,
			Sources:  s.Sources,
			MaxPages: s.MaxPages,
		}
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	a := mustApp(os.Stdout)
	defer a.close()

	cfg := a.cfg
	logger := a.logger
	logger.Info("config loaded",
		"sources", a.registry.Names(),
		"db", cfg.Database.Path,
		"addr", cfg.Server.Addr,
		"schedule", cfg.Schedule.Spec,
		"searches", len(cfg.Schedule.Searches),
	)

	var sched *scheduler.Scheduler
	if !noSchedule {
		var err error
		sched, err = scheduler.NewScheduler(a.svc, a.db.Postings(), scheduler.Config{
			Spec:         cfg.Schedule.Spec,
			Searches:     toSearches(cfg.Schedule.Searches),
			CleanupAfter: cfg.Schedule.CleanupAfter,
			CleanupSpec:  cfg.Schedule.CleanupSpec,
		}, logger)
		if err != nil {
			logger.Error("invalid schedule", "error", err)
			os.Exit(1)
		}
	}

	srv := httpserver.NewServer(httpserver.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, a.svc, a.db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if sched != nil {
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("goodbye")
	return nil
}
