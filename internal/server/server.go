package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fastcalorie/nutridb/internal/export"
	"github.com/fastcalorie/nutridb/internal/ingest"
	"github.com/fastcalorie/nutridb/internal/repository"
	"github.com/fastcalorie/nutridb/internal/review"
)

// Server bundles the admin HTTP surface. Routing uses the stdlib mux with
// method-qualified patterns; everything speaks JSON except the XLSX export.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type Deps struct {
	Intake *ingest.Service
	Review *review.Service
	Export *export.Service
	Jobs   repository.JobRepository
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{
		intake: deps.Intake,
		review: deps.Review,
		export: deps.Export,
		jobs:   deps.Jobs,
		health: deps.Health,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("POST /admin/ingestion/upload", h.upload)
	mux.HandleFunc("GET /admin/ingestion/jobs", h.listJobs)
	mux.HandleFunc("GET /admin/ingestion/jobs/{id}", h.getJob)
	mux.HandleFunc("POST /admin/ingestion/jobs/{id}/approve", h.approveItems)
	mux.HandleFunc("PUT /admin/ingestion/jobs/{id}/items/{index}", h.editItem)
	mux.HandleFunc("GET /admin/restaurants/{id}/export", h.exportMenu)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      requestLog(logger)(mux),
			ReadTimeout:  2 * time.Minute,
			WriteTimeout: 2 * time.Minute,
		},
		logger: logger,
	}
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLog emits one line per request with method, path, status and
// latency.
func requestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"elapsed_ms", time.Since(start).Milliseconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
