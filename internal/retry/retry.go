// Package retry decorates a Source so transient page failures are retried
// with exponential backoff before the page is given up on.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/amishk599/jobagg/internal/metrics"
	"github.com/amishk599/jobagg/internal/model"
)

const (
	defaultBaseDelay = 5 * time.Second
	defaultMaxDelay  = 2 * time.Minute
	jitterFraction   = 0.3
)

// Policy controls how often and how long RetrySource waits.
type Policy struct {
	MaxRetries int           // attempts after the first failure
	BaseDelay  time.Duration // wait before the first retry, doubled each time
	MaxDelay   time.Duration // cap on any single computed wait
}

// RetrySource retries FetchPage on 429, 5xx and transport errors.
type RetrySource struct {
	inner  model.Source
	policy Policy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrySource wraps inner. Zero BaseDelay and MaxDelay take defaults.
func NewRetrySource(inner model.Source, policy Policy, logger *slog.Logger) *RetrySource {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaultBaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = defaultMaxDelay
	}
	return &RetrySource{inner: inner, policy: policy, logger: logger, sleep: sleepCtx}
}

func (s *RetrySource) Name() string { return s.inner.Name() }

func (s *RetrySource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	name := s.inner.Name()
	for attempt := 0; ; attempt++ {
		p, err := s.inner.FetchPage(ctx, q, page)
		if err == nil {
			return p, nil
		}
		if attempt >= s.policy.MaxRetries || !isRetryable(err) {
			return model.Page{}, err
		}

		delay := s.delay(attempt+1, err)
		s.logger.Warn("retrying page",
			"source", name,
			"page", page,
			"attempt", attempt+1,
			"max_retries", s.policy.MaxRetries,
			"delay", delay,
			"error", err,
		)
		metrics.SourceRetries.WithLabelValues(name).Inc()

		if err := s.sleep(ctx, delay); err != nil {
			return model.Page{}, fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// delay is BaseDelay*2^(retry-1) with ±30% jitter, capped at MaxDelay. A
// Retry-After hint from the server replaces the computed value.
func (s *RetrySource) delay(retry int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	d := s.policy.BaseDelay << (retry - 1)
	if d <= 0 || d > s.policy.MaxDelay {
		d = s.policy.MaxDelay
	}
	jitter := (rand.Float64()*2 - 1) * jitterFraction
	return time.Duration(float64(d) * (1 + jitter))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isRetryable reports whether err is a transient failure. Context errors and
// 4xx other than 429 are final.
func isRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	// transport: DNS, reset, refused
	return true
}
