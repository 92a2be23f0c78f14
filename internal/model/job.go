package model

import (
	"context"
	"time"
)

// RawPosting is what a source adapter hands to the normalizer. Fields are
// copied as the source emits them; nothing is validated yet.
type RawPosting struct {
	Title       string
	Company     string
	Location    string
	Description string
	URL         string
	PostedDate  string // any representation: epoch, ISO-8601, RFC-822, "3 days ago"
	JobType     string
	Salary      string
	Tags        []string
	RemoteHint  *bool // nil when the source says nothing about remote
}

// Posting is the canonical, deduplicated record owned by the posting store.
type Posting struct {
	Fingerprint       string    `json:"fingerprint"`
	Title             string    `json:"title"`
	Company           string    `json:"company"`
	Location          string    `json:"location"`
	Description       string    `json:"description"`
	URL               string    `json:"url"`
	Source            string    `json:"source"`
	PostedAt          time.Time `json:"posted_at"`
	PostedAtEstimated bool      `json:"posted_at_estimated"` // true when PostedAt fell back to ingestion time
	JobType           string    `json:"job_type"`
	Salary            string    `json:"salary"`
	Tags              []string  `json:"tags"`
	Remote            bool      `json:"remote"`
	CreatedAt         time.Time `json:"created_at"`
}

// Projection is the browse-optimized copy of a Posting plus the detail cache
// bookkeeping attached to it.
type Projection struct {
	ID             int64      `json:"id"`
	Fingerprint    string     `json:"fingerprint"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Location       string     `json:"location"`
	Salary         string     `json:"salary"`
	Remote         bool       `json:"remote"`
	JobType        string     `json:"job_type"`
	Preview        string     `json:"preview"`
	PostedAt       time.Time  `json:"posted_at"`
	Source         string     `json:"source"`
	URL            string     `json:"url"`
	ViewCount      int        `json:"view_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CachedBody     string     `json:"-"`
	CachedAt       *time.Time `json:"cached_at,omitempty"`
}

// FullDetail is a projection with its full body resolved through the detail cache.
type FullDetail struct {
	Projection
	Description string `json:"description"`
	FromCache   bool   `json:"from_cache"`
	Unavailable bool   `json:"unavailable"` // the source URL could not be fetched
}

// Query is the search handed to every source in a run.
type Query struct {
	Keywords string
	Location string
	MaxPages int
}

// Page is one network call's worth of raw postings. Done is set when the
// source has nothing after this page.
type Page struct {
	Postings []RawPosting
	Done     bool
}

// Source is a single job board integration.
type Source interface {
	Name() string
	// FetchPage returns the given 1-indexed page of results for q.
	FetchPage(ctx context.Context, q Query, page int) (Page, error)
}

// PostingFilter decides whether a normalized posting is kept for storage.
type PostingFilter interface {
	Match(p Posting) bool
}

// InsertResult is the outcome of a posting store insert.
type InsertResult int

const (
	Inserted InsertResult = iota
	Duplicate
)

func (r InsertResult) String() string {
	if r == Duplicate {
		return "duplicate"
	}
	return "inserted"
}

// PostingInserter is the write side of the posting store used by runs.
type PostingInserter interface {
	Insert(ctx context.Context, p Posting) (InsertResult, error)
}

// PostingIterator streams every stored posting. Used by projection imports.
type PostingIterator interface {
	Each(ctx context.Context, fn func(Posting) error) error
}

// Filter narrows listings. Empty fields match everything.
type Filter struct {
	Keyword    string
	Location   string
	Source     string
	RemoteOnly bool
}

// Stats summarizes the posting store.
type Stats struct {
	TotalJobs        int            `json:"total_jobs"`
	RemoteJobs       int            `json:"remote_jobs"`
	WithSalary       int            `json:"with_salary"`
	SalaryPercentage float64        `json:"salary_percentage"`
	RecentJobs24h    int            `json:"recent_jobs_24h"`
	BySource         map[string]int `json:"by_source"`
	ProjectedJobs    int            `json:"projected_jobs"`
	CachedDetails    int            `json:"cached_details"`
}

// RunReporter receives the outcome of every aggregation run.
type RunReporter interface {
	Report(ctx context.Context, stats RunStats) error
}
