package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
)

// Deps are the collaborators served by the API. Only Service is required.
type Deps struct {
	Service    *engine.Service
	Repository domain.Repository
	EventBus   domain.EventBus

	// Gatherer backs the metrics endpoint; nil disables it.
	Gatherer    prometheus.Gatherer
	MetricsPath string

	Version      string
	MaxBatchSize int
}

// Server is the HTTP front end of the evaluation service.
type Server struct {
	cfg     domain.ServerConfig
	handler *Handler
	router  *chi.Mux
	httpSrv *http.Server
}

// NewServer builds the router for deps. Call Start to listen.
func NewServer(cfg domain.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		handler: NewHandler(deps.Service, deps.Repository, deps.EventBus, deps.Version, deps.MaxBatchSize),
	}
	s.router = s.routes(deps)
	return s
}

func (s *Server) routes(deps Deps) *chi.Mux {
	h := s.handler
	r := chi.NewRouter()

	// Order matters: recovery sits inside CORS so a panic still carries
	// CORS headers, and tracing wraps logging so log lines see the IDs.
	r.Use(
		CORS(s.cfg.AllowedOrigins),
		RecoverMiddleware,
		TracingMiddleware,
		LoggingMiddleware,
		middleware.RealIP,
		middleware.Compress(5),
	)

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	if deps.Gatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/evaluate", h.Evaluate)
	r.Post("/evaluate/batch", h.EvaluateBatch)
	r.Post("/submit", h.Submit)

	r.Get("/evaluations/{id}", h.GetEvaluation)
	r.Get("/evaluations/{id}/report", h.GetReport)
	r.Get("/suppliers/{id}/evaluations", h.SupplierHistory)

	r.Get("/schema", h.GetSchema)
	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.ListRules)
		r.Get("/{id}", h.GetRule)
	})
	r.Route("/definitions", func(r chi.Router) {
		r.Get("/", h.ListDefinitions)
		r.Post("/", h.CreateDefinition)
		r.Post("/reload", h.ReloadDefinitions)
		r.Delete("/{id}", h.DeleteDefinition)
	})

	return r
}

// Start listens on the configured address and blocks until the server
// stops. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the router for in-process tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Handler exposes the request handlers.
func (s *Server) Handler() *Handler { return s.handler }
