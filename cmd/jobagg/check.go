package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/orchestrator"
	"github.com/amishk599/jobagg/internal/store"
)

var checkFlags struct {
	sources  []string
	keywords string
	location string
	maxPages int
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Scrape once, print matches, exit",
	Long:  "One-shot scrape against an in-memory store: prints every posting that would be stored. Nothing is written to the database.",
	RunE:  runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.StringSliceVarP(&checkFlags.sources, "source", "s", nil, "source to check (repeatable; default: all enabled)")
	f.StringVarP(&checkFlags.keywords, "keywords", "k", "", "search keywords")
	f.StringVarP(&checkFlags.location, "location", "l", "", "search location")
	f.IntVar(&checkFlags.maxPages, "max-pages", 1, "pages per source")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad(os.Stdout)
	logger.Info("check mode: nothing will be stored")

	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	registry, err := buildRegistry(cfg, httpClient, logger)
	if err != nil {
		logger.Error("failed to build sources", "error", err)
		os.Exit(1)
	}
	for _, name := range checkFlags.sources {
		if _, ok := registry.Get(name); !ok {
			logger.Error("unknown or disabled source", "source", name)
			os.Exit(1)
		}
	}

	dry := store.NewDryRunStore()
	orch := newOrchestrator(cfg, registry, dry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := orch.Run(ctx, orchestrator.RunRequest{
		Sources: checkFlags.sources,
		Query: model.Query{
			Keywords: checkFlags.keywords,
			Location: checkFlags.location,
			MaxPages: checkFlags.maxPages,
		},
	})

	postings := dry.Postings()
	fmt.Printf("\n%d matching postings\n\n", len(postings))
	for _, p := range postings {
		fmt.Printf("[%s] %s @ %s (%s)\n    %s\n", p.Source, p.Title, p.Company, p.Location, p.URL)
	}
	fmt.Println()
	printRunStats(os.Stdout, stats)

	logger.Info("check complete")
	return nil
}
