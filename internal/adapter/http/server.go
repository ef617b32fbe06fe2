package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/demand-siting/internal/pipeline"
	"github.com/couchcryptid/demand-siting/internal/render"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultSource provides the most recent successful siting run.
type ResultSource interface {
	Latest() (*pipeline.Result, bool)
}

// Server exposes health, readiness, metrics and the latest siting result.
type Server struct {
	httpServer *http.Server
	results    ResultSource
	mapOpts    render.MapOptions
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// result routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, results ResultSource, mapOpts render.MapOptions, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		mapOpts: mapOpts,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/run", s.withResult(s.handleRun))
	mux.HandleFunc("GET /api/facilities", s.withResult(s.handleFacilities))
	mux.HandleFunc("GET /api/demand", s.withResult(s.handleDemand))
	mux.HandleFunc("GET /api/geojson", s.withResult(s.handleGeoJSON))
	mux.HandleFunc("GET /map", s.withResult(s.handleMap))
	mux.HandleFunc("GET /chart", s.withResult(s.handleChart))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type resultHandler func(w http.ResponseWriter, r *http.Request, res *pipeline.Result)

// withResult answers 503 until the first run has completed.
func (s *Server) withResult(h resultHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := s.results.Latest()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no siting result yet"})
			return
		}
		h(w, r, res)
	}
}

type facilitiesResponse struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Region      string    `json:"region"`
	Facilities  any       `json:"facilities"`
}

type demandResponse struct {
	RunID   string `json:"run_id"`
	Region  string `json:"region"`
	Demand  any    `json:"demand"`
	Warning any    `json:"warning,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, _ *http.Request, res *pipeline.Result) {
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleFacilities(w http.ResponseWriter, _ *http.Request, res *pipeline.Result) {
	sharedobs.WriteJSON(w, http.StatusOK, facilitiesResponse{
		RunID:       res.RunID,
		GeneratedAt: res.GeneratedAt,
		Region:      res.Region,
		Facilities:  res.Facilities,
	})
}

func (s *Server) handleDemand(w http.ResponseWriter, _ *http.Request, res *pipeline.Result) {
	body := demandResponse{
		RunID:  res.RunID,
		Region: res.Region,
		Demand: render.ByValue(res.Demand),
	}
	if res.Warning != nil {
		body.Warning = res.Warning
	}
	sharedobs.WriteJSON(w, http.StatusOK, body)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, _ *http.Request, res *pipeline.Result) {
	s.writeRendered(w, "application/geo+json", func(buf io.Writer) error {
		return render.GeoJSON(buf, res.Demand, res.Facilities)
	})
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request, res *pipeline.Result) {
	s.writeRendered(w, "text/html; charset=utf-8", func(buf io.Writer) error {
		return render.Map(buf, res.Demand, res.Facilities, s.mapOpts)
	})
}

func (s *Server) handleChart(w http.ResponseWriter, _ *http.Request, res *pipeline.Result) {
	s.writeRendered(w, "text/html; charset=utf-8", func(buf io.Writer) error {
		return render.Chart(buf, res.Demand)
	})
}

// writeRendered buffers the page so a render error can still become a 500.
func (s *Server) writeRendered(w http.ResponseWriter, contentType string, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		s.logger.Error("render failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "render failed"})
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client went away
}
