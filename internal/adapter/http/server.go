package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/adrian-cg/earthquakes/internal/adapter/memview"
	"github.com/adrian-cg/earthquakes/internal/coordinator"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Coordinator is the part of the coordinator the API drives.
type Coordinator interface {
	sharedobs.ReadinessChecker
	Dispatch(ctx context.Context, ev coordinator.Event) error
	State() coordinator.State
}

// ViewSource provides the rendered page state.
type ViewSource interface {
	Snapshot() memview.Snapshot
}

// Server exposes the map API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	app        Coordinator
	view       ViewSource
	validate   *validator.Validate
	trans      ut.Translator
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 map routes. Browser requests are accepted from allowedOrigins.
func NewServer(addr string, allowedOrigins []string, app Coordinator, view ViewSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})

	validate, trans := newValidator()
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      corsHandler.Handler(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		app:      app,
		view:     view,
		validate: validate,
		trans:    trans,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(app))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/view", s.handleView)
	mux.HandleFunc("POST /v1/places", s.handleSelectPlace)
	mux.HandleFunc("POST /v1/top-ten/show", s.handleShowTopTen)

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
