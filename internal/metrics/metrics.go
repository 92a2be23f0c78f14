package metrics

import (
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PostingsRaw = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobagg_postings_raw_total",
			Help: "Total number of raw postings received from sources.",
		},
		[]string{"source"},
	)
	PostingsInserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobagg_postings_inserted_total",
			Help: "Total number of new postings stored.",
		},
		[]string{"source"},
	)
	PostingsDuplicate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobagg_postings_duplicate_total",
			Help: "Total number of postings rejected as duplicates.",
		},
		[]string{"source"},
	)
	PostingsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobagg_postings_dropped_total",
			Help: "Total number of postings dropped because they failed normalization.",
		},
		[]string{"source"},
	)
	PostingsFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobagg_postings_filtered_total",
			Help: "Total number of normalized postings rejected by the posting filter.",
		},
		[]string{"source"},
	)
	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobagg_source_errors_total",
			Help: "Total number of failed source runs.",
		},
		[]string{"source"},
	)
	SourceRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobagg_source_retries_total",
			Help: "Total number of page fetches retried after a transient error.",
		},
		[]string{"source"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobagg_run_duration_seconds",
			Help:    "Duration of each aggregation run in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	DetailFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobagg_detail_fetch_total",
			Help: "Detail lookups by result (cache_hit, fetched, unavailable).",
		},
		[]string{"result"},
	)
)

var collectors = []prometheus.Collector{
	PostingsRaw,
	PostingsInserted,
	PostingsDuplicate,
	PostingsDropped,
	PostingsFiltered,
	SourceErrors,
	SourceRetries,
	RunDuration,
	DetailFetches,
}

var registerOnce sync.Once

// Register adds every collector to reg. Collectors already registered with reg
// are skipped so Register can be called from more than one entry point.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler registers the collectors with the default registry on first use and
// returns the promhttp handler serving it.
func Handler() http.Handler {
	registerOnce.Do(func() {
		_ = Register(prometheus.DefaultRegisterer)
	})
	return promhttp.Handler()
}
