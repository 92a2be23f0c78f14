package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobagg/internal/adapter"
	"github.com/amishk599/jobagg/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import stored postings into the projection store",
	Long:  "Copies every posting not yet projected into the browse store. Safe to run repeatedly.",
	RunE:  runImport,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print posting store statistics",
	RunE:  runStats,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List every known source and whether it is enabled",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(importCmd, statsCmd, sourcesCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	a := mustApp(os.Stdout)
	defer a.close()

	res, err := a.svc.Import(context.Background())
	if err != nil {
		a.logger.Error("import failed", "error", err)
		return err
	}
	fmt.Printf("Imported %d postings (%d already present)\n", res.Imported, res.Skipped)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a := mustApp(os.Stdout)
	defer a.close()

	st, err := a.svc.GetStats(context.Background())
	if err != nil {
		a.logger.Error("stats failed", "error", err)
		return err
	}

	printStats(os.Stdout, st)
	return nil
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad(os.Stderr)
	registry, err := buildRegistry(cfg, &http.Client{Timeout: cfg.HTTP.Timeout}, logger)
	if err != nil {
		logger.Error("failed to build sources", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%-16s %-6s %-9s %s\n", "Source", "Format", "Status", "Description")
	fmt.Println(strings.Repeat("─", 72))

	names := lo.Keys(adapter.Catalog)
	sort.Strings(names)
	enabled := 0
	for _, name := range names {
		info := adapter.Catalog[name]
		status := "disabled"
		if _, ok := registry.Get(name); ok {
			status = "enabled"
			enabled++
		}
		fmt.Printf("%-16s %-6s %-9s %s\n", name, info.Format, status, info.Description)
	}

	fmt.Printf("\nTotal: %d sources (%d enabled, %d disabled)\n", len(names), enabled, len(names)-enabled)
	return nil
}

func printStats(w io.Writer, st model.Stats) {
	fmt.Fprintf(w, "%-22s %d\n", "Total postings", st.TotalJobs)
	fmt.Fprintf(w, "%-22s %d\n", "Remote", st.RemoteJobs)
	fmt.Fprintf(w, "%-22s %d (%.1f%%)\n", "With salary", st.WithSalary, st.SalaryPercentage)
	fmt.Fprintf(w, "%-22s %d\n", "Added in last 24h", st.RecentJobs24h)
	fmt.Fprintf(w, "%-22s %d\n", "Projected", st.ProjectedJobs)
	fmt.Fprintf(w, "%-22s %d\n", "Cached details", st.CachedDetails)

	if len(st.BySource) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-16s %s\n", "Source", "Postings")
	fmt.Fprintln(w, strings.Repeat("─", 26))
	names := lo.Keys(st.BySource)
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-16s %d\n", name, st.BySource[name])
	}
}
