package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/amishk599/jobagg/internal/adapter"
	"github.com/amishk599/jobagg/internal/metrics"
	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/service"
)

// Facade is the part of service.Service the server exposes.
type Facade interface {
	ListJobs(ctx context.Context, req service.ListRequest) (service.ListResult, error)
	GetJobDetail(ctx context.Context, id int64, useCache bool) (model.FullDetail, error)
	GetStats(ctx context.Context) (model.Stats, error)
	RunScrape(ctx context.Context, req service.ScrapeRequest) (model.RunStats, error)
	StartScrape(ctx context.Context, req service.ScrapeRequest) (string, error)
	Import(ctx context.Context) (service.ImportResult, error)
	Sources() []adapter.SourceInfo
}

// Pinger checks the backing store for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP front of the query facade.
type Server struct {
	svc        Facade
	pinger     Pinger
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server over svc.
func NewServer(cfg Config, svc Facade, pinger Pinger, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		pinger: pinger,
		logger: logger,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      withLogging(logger, s.routes()),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleJobDetail)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /sources", s.handleSources)
	mux.HandleFunc("POST /scrape", s.handleScrape)
	mux.HandleFunc("POST /import", s.handleImport)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "jobagg",
		"endpoints": []string{
			"GET /health",
			"GET /jobs",
			"GET /jobs/{id}",
			"GET /stats",
			"GET /sources",
			"POST /scrape",
			"POST /import",
			"GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"))
	if err != nil || page < 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "page must be a positive integer")
		return
	}
	size, err := intParam(q.Get("page_size"))
	if err != nil || size < 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "page_size must be a positive integer")
		return
	}
	remote := false
	if v := q.Get("remote"); v != "" {
		remote, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "remote must be a boolean")
			return
		}
	}

	res, err := s.svc.ListJobs(r.Context(), service.ListRequest{
		Page:     page,
		PageSize: size,
		Filter: model.Filter{
			Keyword:    q.Get("keyword"),
			Location:   q.Get("location"),
			Source:     q.Get("source"),
			RemoteOnly: remote,
		},
	})
	if err != nil {
		s.failure(w, "list jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "id must be a positive integer")
		return
	}
	useCache := true
	if v := r.URL.Query().Get("use_cache"); v != "" {
		useCache, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "use_cache must be a boolean")
			return
		}
	}

	d, err := s.svc.GetJobDetail(r.Context(), id, useCache)
	if err != nil {
		s.failure(w, "get job detail", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetStats(r.Context())
	if err != nil {
		s.failure(w, "get stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.svc.Sources()})
}

type scrapeBody struct {
	service.ScrapeRequest
	Wait bool `json:"wait"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body scrapeBody
	// An empty body scrapes every source with the default budget.
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be a JSON object")
		return
	}

	if body.Wait {
		stats, err := s.svc.RunScrape(r.Context(), body.ScrapeRequest)
		if err != nil {
			s.failure(w, "run scrape", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"run_id": stats.RunID,
			"stats":  stats,
			"totals": stats.Totals(),
		})
		return
	}

	runID, err := s.svc.StartScrape(r.Context(), body.ScrapeRequest)
	if err != nil {
		s.failure(w, "start scrape", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "started"})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Import(r.Context())
	if err != nil {
		s.failure(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// failure maps a facade error onto a status code.
func (s *Server) failure(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	default:
		s.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to "+op)
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
