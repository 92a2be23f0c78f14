package model

import "time"

// SourceStats is the per-source breakdown of one run.
type SourceStats struct {
	Source     string        `json:"source"`
	Pages      int           `json:"pages"`
	Raw        int           `json:"raw"`
	Normalized int           `json:"normalized"`
	Dropped    int           `json:"dropped"`  // failed normalization
	Filtered   int           `json:"filtered"` // rejected by the posting filter
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Failed reports whether the source ended with an error. Partial counts are
// still valid when it did.
func (s SourceStats) Failed() bool {
	return s.Err != ""
}

// RunStats is the structured outcome of one aggregation run.
type RunStats struct {
	RunID      string        `json:"run_id"`
	Query      Query         `json:"-"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Sources    []SourceStats `json:"sources"`
}

// Totals sums every per-source counter. Source and Err are left empty.
func (r RunStats) Totals() SourceStats {
	var t SourceStats
	for _, s := range r.Sources {
		t.Pages += s.Pages
		t.Raw += s.Raw
		t.Normalized += s.Normalized
		t.Dropped += s.Dropped
		t.Filtered += s.Filtered
		t.Inserted += s.Inserted
		t.Duplicates += s.Duplicates
	}
	t.Duration = r.FinishedAt.Sub(r.StartedAt)
	return t
}

// FailedSources returns the names of sources that ended with an error.
func (r RunStats) FailedSources() []string {
	var out []string
	for _, s := range r.Sources {
		if s.Failed() {
			out = append(out, s.Source)
		}
	}
	return out
}

// Source looks up the stats for one source.
func (r RunStats) Source(name string) (SourceStats, bool) {
	for _, s := range r.Sources {
		if s.Source == name {
			return s, true
		}
	}
	return SourceStats{}, false
}
