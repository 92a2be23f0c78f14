// Package detail resolves full posting bodies through a fetch-through cache
// stored on the projection rows.
package detail

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/amishk599/jobagg/internal/metrics"
	"github.com/amishk599/jobagg/internal/model"
)

const defaultFailureTTL = 10 * time.Minute

// Fetcher retrieves the full body of a posting from its source URL.
type Fetcher interface {
	FetchBody(ctx context.Context, url, source string) (string, error)
}

// ProjectionRepo is the slice of the projection store the cache needs.
type ProjectionRepo interface {
	Get(ctx context.Context, id int64) (model.Projection, error)
	RecordView(ctx context.Context, id int64, at time.Time) error
	SaveBody(ctx context.Context, id int64, body string, at time.Time) error
}

// Cache serves FullDetails. A stored body is valid until overwritten; there
// is no expiry. Failed fetches are remembered for failureTTL so a dead link
// is not hammered on every view.
type Cache struct {
	repo     ProjectionRepo
	fetcher  Fetcher
	failures *gocache.Cache
	group    singleflight.Group
	now      func() time.Time
	logger   *slog.Logger
}

func NewCache(repo ProjectionRepo, fetcher Fetcher, failureTTL time.Duration, logger *slog.Logger) *Cache {
	if failureTTL <= 0 {
		failureTTL = defaultFailureTTL
	}
	return &Cache{
		repo:     repo,
		fetcher:  fetcher,
		failures: gocache.New(failureTTL, 2*failureTTL),
		now:      time.Now,
		logger:   logger,
	}
}

// GetDetail returns the projection with its full body. An unknown id returns
// model.ErrNotFound. A body that cannot be fetched is not an error: the
// result carries the projection fields, an empty Description and
// Unavailable set. Every call counts as a view.
func (c *Cache) GetDetail(ctx context.Context, id int64, useCache bool) (model.FullDetail, error) {
	p, err := c.repo.Get(ctx, id)
	if err != nil {
		return model.FullDetail{}, err
	}

	now := c.now().UTC()
	if err := c.repo.RecordView(ctx, id, now); err != nil {
		return model.FullDetail{}, fmt.Errorf("recording view: %w", err)
	}
	p.ViewCount++
	p.LastAccessedAt = &now

	if useCache && p.CachedAt != nil {
		metrics.DetailFetches.WithLabelValues("cache_hit").Inc()
		return model.FullDetail{Projection: p, Description: p.CachedBody, FromCache: true}, nil
	}

	key := strconv.FormatInt(id, 10)
	if useCache {
		if _, failed := c.failures.Get(key); failed {
			metrics.DetailFetches.WithLabelValues("unavailable").Inc()
			c.logger.Debug("detail served from failure memo", "id", id, "source", p.Source)
			return model.FullDetail{Projection: p, Unavailable: true}, nil
		}
	}

	// The shared fetch outlives any single caller; the fetcher applies its
	// own timeout.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		body, err := c.fetcher.FetchBody(fetchCtx, p.URL, p.Source)
		if err != nil {
			return "", err
		}
		if body == "" {
			return "", model.ErrDetailUnavailable
		}
		if err := c.repo.SaveBody(fetchCtx, id, body, now); err != nil {
			c.logger.Warn("failed to cache detail body", "id", id, "error", err)
		}
		return body, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		metrics.DetailFetches.WithLabelValues("unavailable").Inc()
		c.logger.Debug("detail request abandoned", "id", id, "error", ctx.Err())
		return model.FullDetail{Projection: p, Unavailable: true}, nil
	}

	if err := res.Err; err != nil {
		c.failures.SetDefault(key, err.Error())
		metrics.DetailFetches.WithLabelValues("unavailable").Inc()
		c.logger.Warn("detail unavailable",
			"id", id,
			"source", p.Source,
			"url", p.URL,
			"error", err,
		)
		return model.FullDetail{Projection: p, Unavailable: true}, nil
	}

	c.failures.Delete(key)
	body := res.Val.(string)
	p.CachedBody = body
	p.CachedAt = &now
	metrics.DetailFetches.WithLabelValues("fetched").Inc()
	return model.FullDetail{Projection: p, Description: body}, nil
}
