package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

// Policy bounds the call rate for one source. Zero values disable the
// corresponding check.
type Policy struct {
	MaxCalls int           // at most MaxCalls dispatches in any rolling Interval
	Interval time.Duration // window length for MaxCalls
	MinDelay time.Duration // minimum gap between consecutive dispatches
}

type sourceState struct {
	last  time.Time   // most recent reserved slot
	calls []time.Time // reserved slots inside the current window, ascending
}

// Limiter gates calls per source. Sources never throttle each other.
type Limiter struct {
	mu       sync.Mutex
	state    map[string]*sourceState // key: source name
	policies map[string]Policy
	fallback Policy
	now      func() time.Time
}

// NewLimiter creates a limiter that applies fallback to any source without an
// entry in overrides.
func NewLimiter(fallback Policy, overrides map[string]Policy) *Limiter {
	policies := make(map[string]Policy, len(overrides))
	for name, p := range overrides {
		policies[name] = p
	}
	return &Limiter{
		state:    make(map[string]*sourceState),
		policies: policies,
		fallback: fallback,
		now:      time.Now,
	}
}

// PolicyFor returns the policy applied to source.
func (l *Limiter) PolicyFor(source string) Policy {
	if p, ok := l.policies[source]; ok {
		return p
	}
	return l.fallback
}

// Wait blocks until source may dispatch another call. It never rejects; it only
// delays. Returns an error if ctx is cancelled first, in which case the slot
// it had reserved is handed back.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	slot, prev := l.reserve(source)

	delay := slot.Sub(l.now())
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		l.release(source, slot, prev)
		return fmt.Errorf("rate limiter wait for %s: %w", source, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// reserve picks the earliest instant that satisfies both the min delay and the
// window cap, and records it so concurrent callers queue behind it. prev is the
// slot reserved before this one.
func (l *Limiter) reserve(source string) (slot, prev time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.PolicyFor(source)
	now := l.now()

	st, ok := l.state[source]
	if !ok {
		st = &sourceState{}
		l.state[source] = st
	}

	prev = st.last
	slot = now
	if slot.Before(st.last) {
		slot = st.last
	}
	if !st.last.IsZero() && p.MinDelay > 0 {
		if next := st.last.Add(p.MinDelay); next.After(slot) {
			slot = next
		}
	}

	if p.MaxCalls > 0 && p.Interval > 0 {
		// Drop calls that can no longer affect any slot >= now.
		cutoff := now.Add(-p.Interval)
		i := 0
		for i < len(st.calls) && !st.calls[i].After(cutoff) {
			i++
		}
		st.calls = st.calls[i:]

		// The window (slot-Interval, slot] must hold fewer than MaxCalls. The
		// call MaxCalls places back from the end has to have aged out.
		if len(st.calls) >= p.MaxCalls {
			oldest := st.calls[len(st.calls)-p.MaxCalls]
			if next := oldest.Add(p.Interval); next.After(slot) {
				slot = next
			}
		}
		st.calls = append(st.calls, slot)
	}

	st.last = slot
	return slot, prev
}

// release forgets a reservation that was never used.
func (l *Limiter) release(source string, slot, prev time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.state[source]
	if !ok {
		return
	}
	for i := len(st.calls) - 1; i >= 0; i-- {
		if st.calls[i].Equal(slot) {
			st.calls = append(st.calls[:i], st.calls[i+1:]...)
			break
		}
	}
	// Only rewind when nobody has queued behind this slot.
	if st.last.Equal(slot) {
		st.last = prev
	}
}

// RateLimitedSource is a decorator that acquires the source's slot before
// every page request.
type RateLimitedSource struct {
	inner   model.Source
	limiter *Limiter
}

// NewRateLimitedSource wraps a Source with per-source rate limiting.
// Every source should share the same limiter instance.
func NewRateLimitedSource(inner model.Source, limiter *Limiter) *RateLimitedSource {
	return &RateLimitedSource{
		inner:   inner,
		limiter: limiter,
	}
}

func (s *RateLimitedSource) Name() string { return s.inner.Name() }

// FetchPage waits for the limiter to allow a request, then delegates to the
// wrapped source.
func (s *RateLimitedSource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	if err := s.limiter.Wait(ctx, s.inner.Name()); err != nil {
		return model.Page{}, err
	}
	return s.inner.FetchPage(ctx, q, page)
}
