package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobagg/internal/adapter"
	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/service"
)

type fakeFacade struct {
	listReq   service.ListRequest
	scrapeReq service.ScrapeRequest
	started   bool
	detailErr error
	statsErr  error
}

func (f *fakeFacade) ListJobs(ctx context.Context, req service.ListRequest) (service.ListResult, error) {
	f.listReq = req
	if req.Page < 0 {
		return service.ListResult{}, fmt.Errorf("%w: page", service.ErrInvalidRequest)
	}
	return service.ListResult{
		Jobs:       []model.Projection{{ID: 1, Title: "Backend Engineer"}},
		Total:      1,
		Page:       1,
		PageSize:   20,
		TotalPages: 1,
	}, nil
}

func (f *fakeFacade) GetJobDetail(ctx context.Context, id int64, useCache bool) (model.FullDetail, error) {
	if f.detailErr != nil {
		return model.FullDetail{}, f.detailErr
	}
	if id != 7 {
		return model.FullDetail{}, model.ErrNotFound
	}
	return model.FullDetail{
		Projection:  model.Projection{ID: 7, Title: "Backend Engineer"},
		Description: "body",
		FromCache:   useCache,
	}, nil
}

func (f *fakeFacade) GetStats(ctx context.Context) (model.Stats, error) {
	if f.statsErr != nil {
		return model.Stats{}, f.statsErr
	}
	return model.Stats{TotalJobs: 3, BySource: map[string]int{"remotive": 3}}, nil
}

func (f *fakeFacade) RunScrape(ctx context.Context, req service.ScrapeRequest) (model.RunStats, error) {
	f.scrapeReq = req
	if len(req.Sources) > 0 && req.Sources[0] == "monster" {
		return model.RunStats{}, fmt.Errorf("%w: unknown source", service.ErrInvalidRequest)
	}
	return model.RunStats{RunID: "run-1", Sources: []model.SourceStats{{Source: "remotive", Inserted: 2}}}, nil
}

func (f *fakeFacade) StartScrape(ctx context.Context, req service.ScrapeRequest) (string, error) {
	f.scrapeReq = req
	f.started = true
	return "run-2", nil
}

func (f *fakeFacade) Import(ctx context.Context) (service.ImportResult, error) {
	return service.ImportResult{Imported: 4}, nil
}

func (f *fakeFacade) Sources() []adapter.SourceInfo {
	return []adapter.SourceInfo{{Name: "remotive", Format: "json"}}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(f *fakeFacade, pingErr error) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(Config{Addr: ":0"}, f, fakePinger{err: pingErr}, logger).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestIndexAndHealth(t *testing.T) {
	h := newTestServer(&fakeFacade{}, nil)

	rec, body := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jobagg", body["service"])

	rec, body = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := newTestServer(&fakeFacade{}, errors.New("database is locked"))
	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestListJobs_ParsesQuery(t *testing.T) {
	f := &fakeFacade{}
	h := newTestServer(f, nil)

	rec, body := do(t, h, http.MethodGet, "/jobs?page=2&page_size=10&keyword=go&remote=true&location=US&source=remotive", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ListRequest{
		Page:     2,
		PageSize: 10,
		Filter:   model.Filter{Keyword: "go", Location: "US", Source: "remotive", RemoteOnly: true},
	}, f.listReq)
	assert.EqualValues(t, 1, body["total_pages"])
	assert.Len(t, body["jobs"], 1)
}

func TestListJobs_BadParams(t *testing.T) {
	h := newTestServer(&fakeFacade{}, nil)
	for _, target := range []string{
		"/jobs?page=abc",
		"/jobs?page=-1",
		"/jobs?page_size=x",
		"/jobs?remote=maybe",
	} {
		t.Run(target, func(t *testing.T) {
			rec, body := do(t, h, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "InvalidRequest", body["error"])
		})
	}
}

func TestJobDetail(t *testing.T) {
	h := newTestServer(&fakeFacade{}, nil)

	rec, body := do(t, h, http.MethodGet, "/jobs/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body", body["description"])
	assert.Equal(t, true, body["from_cache"])

	_, body = do(t, h, http.MethodGet, "/jobs/7?use_cache=false", "")
	assert.Equal(t, false, body["from_cache"])

	rec, _ = do(t, h, http.MethodGet, "/jobs/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/jobs/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/jobs/7?use_cache=perhaps", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	h := newTestServer(&fakeFacade{}, nil)
	rec, body := do(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["total_jobs"])

	h = newTestServer(&fakeFacade{statsErr: errors.New("disk I/O error")}, nil)
	rec, body = do(t, h, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "InternalError", body["error"])
}

func TestSourcesAndImport(t *testing.T) {
	h := newTestServer(&fakeFacade{}, nil)

	rec, body := do(t, h, http.MethodGet, "/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["sources"], 1)

	rec, body = do(t, h, http.MethodPost, "/import", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["imported"])

	rec, _ = do(t, h, http.MethodGet, "/import", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScrape(t *testing.T) {
	t.Run("synchronous", func(t *testing.T) {
		f := &fakeFacade{}
		h := newTestServer(f, nil)
		rec, body := do(t, h, http.MethodPost, "/scrape",
			`{"sources":["remotive"],"keywords":"go","location":"US","max_pages":2,"wait":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "run-1", body["run_id"])
		assert.Equal(t, service.ScrapeRequest{
			Sources: []string{"remotive"}, Keywords: "go", Location: "US", MaxPages: 2,
		}, f.scrapeReq)
		assert.False(t, f.started)
	})

	t.Run("background", func(t *testing.T) {
		f := &fakeFacade{}
		h := newTestServer(f, nil)
		rec, body := do(t, h, http.MethodPost, "/scrape", "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "run-2", body["run_id"])
		assert.True(t, f.started)
	})

	t.Run("unknown source", func(t *testing.T) {
		h := newTestServer(&fakeFacade{}, nil)
		rec, _ := do(t, h, http.MethodPost, "/scrape", `{"sources":["monster"],"wait":true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newTestServer(&fakeFacade{}, nil)
		rec, _ := do(t, h, http.MethodPost, "/scrape", `{"sources":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&fakeFacade{}, nil)
	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jobagg_")
}
