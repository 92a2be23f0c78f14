package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/service"
)

// --- Mock implementations ---

type recordingScraper struct {
	mu       sync.Mutex
	requests []service.ScrapeRequest
	failFor  string
}

func (s *recordingScraper) RunScrape(_ context.Context, req service.ScrapeRequest) (model.RunStats, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.failFor != "" && req.Keywords == s.failFor {
		return model.RunStats{}, errors.New("unknown source")
	}
	return model.RunStats{RunID: "r"}, nil
}

func (s *recordingScraper) calls() []service.ScrapeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]service.ScrapeRequest(nil), s.requests...)
}

type countingCleaner struct {
	calls  atomic.Int32
	cutoff atomic.Value
}

func (c *countingCleaner) Cleanup(_ context.Context, cutoff time.Time) (int64, error) {
	c.calls.Add(1)
	c.cutoff.Store(cutoff)
	return 3, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Tests ---

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	tests := []Config{
		{Spec: "every six hours"},
		{Spec: "@every 6h", CleanupSpec: "* *"},
		{Spec: ""},
	}
	for _, cfg := range tests {
		if _, err := NewScheduler(&recordingScraper{}, nil, cfg, discardLogger()); err == nil {
			t.Errorf("NewScheduler(%+v) = nil error, want error", cfg)
		}
	}
}

func TestRun_CancelReturnsPromptly(t *testing.T) {
	s, err := NewScheduler(&recordingScraper{}, nil, Config{Spec: "@every 1h"}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not return within 2s after cancel")
	}
}

func TestRun_ImmediateCycleRunsSearchesInOrder(t *testing.T) {
	scraper := &recordingScraper{failFor: "rust"}
	cfg := Config{
		Spec: "@every 1h",
		Searches: []Search{
			{Name: "go", Keywords: "golang", Sources: []string{"remotive"}, MaxPages: 2},
			{Name: "rust", Keywords: "rust"},
			{Name: "ts", Keywords: "typescript", Location: "US"},
		},
	}
	s, err := NewScheduler(scraper, nil, cfg, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	got := scraper.calls()
	if len(got) != 3 {
		t.Fatalf("RunScrape calls = %d, want 3 (a failing search must not stop the cycle)", len(got))
	}
	if got[0].Keywords != "golang" || got[0].MaxPages != 2 || got[0].Sources[0] != "remotive" {
		t.Errorf("first request = %+v", got[0])
	}
	if got[2].Keywords != "typescript" || got[2].Location != "US" {
		t.Errorf("third request = %+v", got[2])
	}
}

func TestRun_NoSearchesRunsDefault(t *testing.T) {
	scraper := &recordingScraper{}
	s, err := NewScheduler(scraper, nil, Config{Spec: "@every 1h"}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if got := scraper.calls(); len(got) != 1 || len(got[0].Sources) != 0 {
		t.Errorf("expected one all-source run, got %+v", got)
	}
}

func TestRun_CronTicksRepeatCycle(t *testing.T) {
	scraper := &recordingScraper{}
	s, err := NewScheduler(scraper, nil, Config{Spec: "@every 1s"}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Immediate cycle plus at least one tick.
	time.Sleep(1500 * time.Millisecond)
	cancel()
	<-done

	if got := len(scraper.calls()); got < 2 {
		t.Errorf("RunScrape calls = %d, want >= 2", got)
	}
}

func TestCleanup_UsesRetentionWindow(t *testing.T) {
	cleaner := &countingCleaner{}
	s, err := NewScheduler(&recordingScraper{}, cleaner, Config{Spec: "@every 1h", CleanupAfter: 30 * 24 * time.Hour}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.cleanup(context.Background())

	if c := cleaner.calls.Load(); c != 1 {
		t.Fatalf("cleanup calls = %d, want 1", c)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := cleaner.cutoff.Load().(time.Time); !got.Equal(want) {
		t.Errorf("cutoff = %v, want %v", got, want)
	}
}
