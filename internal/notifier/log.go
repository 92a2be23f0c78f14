package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

// Ensure LogReporter implements model.RunReporter.
var _ model.RunReporter = (*LogReporter)(nil)

// LogReporter writes run outcomes to the given logger as structured messages.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a reporter that logs each run via slog.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs one line per source and a summary line.
// Returns nil (stdout logging does not fail).
func (r *LogReporter) Report(_ context.Context, stats model.RunStats) error {
	for _, s := range stats.Sources {
		args := []any{
			"run_id", stats.RunID,
			"source", s.Source,
			"pages", s.Pages,
			"raw", s.Raw,
			"inserted", s.Inserted,
			"duplicates", s.Duplicates,
			"dropped", s.Dropped,
			"filtered", s.Filtered,
		}
		if s.Failed() {
			r.logger.Warn("source report", append(args, "error", s.Err)...)
			continue
		}
		r.logger.Info("source report", args...)
	}

	t := stats.Totals()
	r.logger.Info("run report",
		"run_id", stats.RunID,
		"sources", len(stats.Sources),
		"failed", len(stats.FailedSources()),
		"inserted", t.Inserted,
		"duplicates", t.Duplicates,
		"duration", t.Duration.Round(time.Millisecond).String(),
	)
	return nil
}
