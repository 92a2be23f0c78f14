package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobagg/internal/browse"
	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/service"
)

var scrapeFlags struct {
	sources     []string
	keywords    string
	location    string
	maxPages    int
	noImport    bool
	interactive bool
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape and print the per-source report",
	Long:  "Runs the given query against every enabled source (or the ones named with --source), stores new postings and prints a report.",
	RunE:  runScrape,
}

func init() {
	f := scrapeCmd.Flags()
	f.StringSliceVarP(&scrapeFlags.sources, "source", "s", nil, "source to scrape (repeatable; default: all enabled)")
	f.StringVarP(&scrapeFlags.keywords, "keywords", "k", "", "search keywords")
	f.StringVarP(&scrapeFlags.location, "location", "l", "", "search location")
	f.IntVar(&scrapeFlags.maxPages, "max-pages", 0, "pages per source (default: scrape.max_pages)")
	f.BoolVar(&scrapeFlags.noImport, "no-import", false, "do not import new postings into the projection store")
	f.BoolVarP(&scrapeFlags.interactive, "interactive", "i", false, "show a spinner instead of log output")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	out := io.Writer(os.Stdout)
	if scrapeFlags.interactive {
		out = io.Discard
	}
	var opts []service.Option
	if scrapeFlags.noImport {
		opts = append(opts, service.WithAutoImport(false))
	}
	a := mustApp(out, opts...)
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := service.ScrapeRequest{
		Sources:  scrapeFlags.sources,
		Keywords: scrapeFlags.keywords,
		Location: scrapeFlags.location,
		MaxPages: scrapeFlags.maxPages,
	}

	var (
		stats model.RunStats
		err   error
	)
	if scrapeFlags.interactive {
		stats, err = browse.RunLoader(ctx, "Scraping", func(ctx context.Context) (model.RunStats, error) {
			return a.svc.RunScrape(ctx, req)
		})
	} else {
		stats, err = a.svc.RunScrape(ctx, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scrape failed: %v\n", err)
		return err
	}

	printRunStats(os.Stdout, stats)
	if len(stats.FailedSources()) > 0 {
		return fmt.Errorf("%d source(s) failed", len(stats.FailedSources()))
	}
	return nil
}

func printRunStats(w io.Writer, stats model.RunStats) {
	fmt.Fprintf(w, "Run %s\n\n", stats.RunID)
	fmt.Fprintf(w, "%-16s %6s %6s %8s %8s %9s %10s  %s\n",
		"Source", "Pages", "Raw", "Dropped", "Filtered", "Inserted", "Duplicates", "Status")
	fmt.Fprintln(w, strings.Repeat("─", 88))

	for _, s := range stats.Sources {
		status := "ok"
		if s.Failed() {
			status = "error: " + s.Err
		}
		fmt.Fprintf(w, "%-16s %6d %6d %8d %8d %9d %10d  %s\n",
			s.Source, s.Pages, s.Raw, s.Dropped, s.Filtered, s.Inserted, s.Duplicates, status)
	}

	t := stats.Totals()
	fmt.Fprintln(w, strings.Repeat("─", 88))
	fmt.Fprintf(w, "%-16s %6d %6d %8d %8d %9d %10d  %s\n",
		"Total", t.Pages, t.Raw, t.Dropped, t.Filtered, t.Inserted, t.Duplicates, t.Duration.Round(time.Millisecond))
}
