package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

func TestWait_SameSource_EnforcesMinDelay(t *testing.T) {
	limiter := NewLimiter(Policy{MinDelay: 100 * time.Millisecond}, nil)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, "remoteok"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "remoteok"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentSources_NoCrossBlocking(t *testing.T) {
	limiter := NewLimiter(Policy{MinDelay: 200 * time.Millisecond}, nil)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "remoteok"); err != nil {
		t.Fatalf("remoteok wait: %v", err)
	}

	// Immediately call for remotive, should NOT block.
	start := time.Now()
	if err := limiter.Wait(ctx, "remotive"); err != nil {
		t.Fatalf("remotive wait: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > 50*time.Millisecond {
		t.Errorf("expected remotive wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_PerSourceOverride(t *testing.T) {
	limiter := NewLimiter(
		Policy{MinDelay: 5 * time.Second},
		map[string]Policy{"remotive": {MinDelay: 10 * time.Millisecond}},
	)
	ctx := context.Background()

	if got := limiter.PolicyFor("remoteok").MinDelay; got != 5*time.Second {
		t.Errorf("expected fallback 5s for remoteok, got %v", got)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx, "remotive"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("override not applied, three waits took %v", elapsed)
	}
}

func TestWait_WindowCapsCallsPerInterval(t *testing.T) {
	limiter := NewLimiter(Policy{MaxCalls: 2, Interval: 150 * time.Millisecond}, nil)
	ctx := context.Background()

	start := time.Now()
	var dispatched []time.Duration
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx, "adzuna"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		dispatched = append(dispatched, time.Since(start))
	}

	// Calls 0,1 go immediately; 2,3 after one interval; 4 after two.
	if dispatched[1] > 50*time.Millisecond {
		t.Errorf("second call should not wait, got %v", dispatched[1])
	}
	if dispatched[2] < 130*time.Millisecond {
		t.Errorf("third call should wait one interval, got %v", dispatched[2])
	}
	if dispatched[4] < 280*time.Millisecond {
		t.Errorf("fifth call should wait two intervals, got %v", dispatched[4])
	}

	// No rolling window of 150ms may contain more than 2 dispatches.
	for i := 2; i < len(dispatched); i++ {
		if gap := dispatched[i] - dispatched[i-2]; gap < 130*time.Millisecond {
			t.Errorf("calls %d and %d only %v apart", i-2, i, gap)
		}
	}
}

func TestWait_ConcurrentCallersAreSpaced(t *testing.T) {
	limiter := NewLimiter(Policy{MinDelay: 40 * time.Millisecond}, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var times []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Wait(ctx, "remotive"); err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(times) != 4 {
		t.Fatalf("expected 4 dispatches, got %d", len(times))
	}
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	// Four callers need at least three gaps of 40ms (allow jitter).
	if spread := last.Sub(first); spread < 100*time.Millisecond {
		t.Errorf("expected concurrent callers spread >= 100ms, got %v", spread)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(Policy{MinDelay: 5 * time.Second}, nil) // long delay
	ctx := context.Background()

	// First call to seed the last-call time.
	if err := limiter.Wait(ctx, "remoteok"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	// Cancel the context before the wait completes.
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := limiter.Wait(ctx, "remoteok")
	if err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestWait_CancelledReservationIsReleased(t *testing.T) {
	limiter := NewLimiter(Policy{MaxCalls: 1, Interval: 200 * time.Millisecond}, nil)

	if err := limiter.Wait(context.Background(), "remoteok"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx, "remoteok"); err == nil {
		t.Fatal("expected cancelled wait to fail")
	}

	// The abandoned slot must not push the next caller out a second interval.
	start := time.Now()
	if err := limiter.Wait(context.Background(), "remoteok"); err != nil {
		t.Fatalf("third wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 350*time.Millisecond {
		t.Errorf("expected one interval of wait, got %v", elapsed)
	}
}

// --- Mock for RateLimitedSource test ---

type recordingSource struct {
	called bool
}

func (s *recordingSource) Name() string { return "remoteok" }

func (s *recordingSource) FetchPage(_ context.Context, _ model.Query, _ int) (model.Page, error) {
	s.called = true
	return model.Page{Done: true}, nil
}

func TestRateLimitedSource_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewLimiter(Policy{MinDelay: 100 * time.Millisecond}, nil)
	inner := &recordingSource{}
	src := NewRateLimitedSource(inner, limiter)
	ctx := context.Background()

	if src.Name() != "remoteok" {
		t.Errorf("expected decorator to keep inner name, got %s", src.Name())
	}

	// First call seeds limiter, then delegates.
	if _, err := src.FetchPage(ctx, model.Query{}, 1); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner source was not called on first fetch")
	}

	inner.called = false

	// Second call should wait for the rate limiter.
	start := time.Now()
	if _, err := src.FetchPage(ctx, model.Query{}, 2); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	elapsed := time.Since(start)

	if !inner.called {
		t.Fatal("inner source was not called on second fetch")
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second fetch, got %v", elapsed)
	}
}
