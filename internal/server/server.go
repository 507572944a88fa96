// Package server exposes the importer over HTTP: health, Prometheus metrics,
// and a trigger that imports every pending export.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/ffiload/internal/importer"
	"github.com/koustreak/ffiload/internal/logger"
	"github.com/koustreak/ffiload/internal/metrics"
	"github.com/koustreak/ffiload/internal/source"
	"go.yaml.in/yaml/v3"
)

// Runner imports every pending file of a source.
type Runner interface {
	Run(ctx context.Context, src *source.Source) ([]*importer.Report, error)
}

// Pinger is anything whose reachability /healthz reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Server.
type Deps struct {
	Runner  Runner
	Source  *source.Source
	Checks  map[string]Pinger
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Server is the HTTP surface of the importer.
type Server struct {
	deps   Deps
	router *chi.Mux
	server *http.Server
	log    *logger.Logger

	// running serialises imports; last holds the reports of the latest run.
	running sync.Mutex
	mu      sync.Mutex
	last    []*importer.Report
	lastAt  time.Time
}

// New creates a Server with its routes mounted.
func New(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		log:    logger.OrNop(deps.Logger).Component("server"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.deps.Metrics.Handler())

	s.router.Route("/imports", func(r chi.Router) {
		r.Post("/", s.handleRunImports)
		r.Get("/last", s.handleLastImports)
	})
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins listening for HTTP requests. It blocks until Shutdown.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.log.Infof("listening on %s", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK
	for name, p := range s.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	respondJSON(w, code, resp)
}

type runResponse struct {
	Started  time.Time          `yaml:"started"`
	Reports  []*importer.Report `yaml:"reports"`
	Error    string             `yaml:"error,omitempty"`
	Imported int                `yaml:"imported"`
}

func (s *Server) handleRunImports(w http.ResponseWriter, r *http.Request) {
	if !s.running.TryLock() {
		respondJSON(w, http.StatusConflict, map[string]string{"error": "an import is already running"})
		return
	}
	defer s.running.Unlock()

	// the run outlives a client that hangs up
	ctx := context.WithoutCancel(r.Context())
	started := time.Now()
	reports, err := s.deps.Runner.Run(ctx, s.deps.Source)

	s.mu.Lock()
	s.last = reports
	s.lastAt = started
	s.mu.Unlock()

	resp := runResponse{Started: started, Reports: reports, Imported: len(reports)}
	code := http.StatusOK
	if err != nil {
		s.log.ErrorWith("import run failed", err, map[string]any{"request_id": middleware.GetReqID(r.Context())})
		resp.Error = err.Error()
		code = http.StatusInternalServerError
	}
	respondYAML(w, code, resp)
}

func (s *Server) handleLastImports(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := runResponse{Started: s.lastAt, Reports: slices.Clone(s.last), Imported: len(s.last)}
	s.mu.Unlock()

	if resp.Started.IsZero() {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "no import has run yet"})
		return
	}
	respondYAML(w, http.StatusOK, resp)
}

// requestLogger logs one line per request through the component logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Logger().
			Debugf("served in %s", time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func respondYAML(w http.ResponseWriter, code int, v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(code)
	w.Write(data)
}
