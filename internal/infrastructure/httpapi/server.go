package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alexisbeaulieu97/pipegate/internal/application/scheduler"
	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// Gate is the subset of the validation gate the API needs.
type Gate interface {
	ports.RunnableChecker
	Validators() []string
}

// Enqueuer accepts start requests for the worker.
type Enqueuer interface {
	Push(req scheduler.StartRequest, delay time.Duration) (scheduler.StartRequest, error)
}

// WorkerControl pauses and resumes the start worker.
type WorkerControl interface {
	Enabled() bool
	SetEnabled(enabled bool)
}

// Config configures the HTTP listener.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
}

// Server exposes the gate over HTTP.
type Server struct {
	config     Config
	gate       Gate
	pipelines  ports.PipelineRepository
	queue      Enqueuer
	executions ports.ExecutionStore
	locks      ports.LockStore
	worker     WorkerControl
	metrics    http.Handler
	logger     ports.Logger
	now        func() time.Time

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithPipelines enables the stored-pipeline endpoints.
func WithPipelines(repo ports.PipelineRepository) Option {
	return func(s *Server) { s.pipelines = repo }
}

// WithQueue enables the start endpoint.
func WithQueue(queue Enqueuer) Option {
	return func(s *Server) { s.queue = queue }
}

// WithExecutions enables the execution completion endpoint.
func WithExecutions(executions ports.ExecutionStore) Option {
	return func(s *Server) { s.executions = executions }
}

// WithLocks enables the lock endpoints.
func WithLocks(locks ports.LockStore) Option {
	return func(s *Server) { s.locks = locks }
}

// WithWorker enables the worker pause and resume endpoints.
func WithWorker(worker WorkerControl) Option {
	return func(s *Server) { s.worker = worker }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(logger ports.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "httpapi")
		}
	}
}

// NewServer builds a server around gate.
func NewServer(cfg Config, gate Gate, opts ...Option) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	s := &Server{config: cfg, gate: gate, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.correlationMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/validators", s.handleValidators)
		r.Post("/pipelines/check", s.handleCheckDefinition)
		r.Post("/pipelines/{id}/check", s.handleCheckStored)
		r.Post("/pipelines/{id}/start", s.handleStart)
		r.Post("/pipelines/{id}/executions/{executionID}/complete", s.handleCompleteExecution)
		r.Put("/locks", s.handleAcquireLock)
		r.Delete("/locks/{scope}/{target}", s.handleReleaseLock)
		r.Post("/worker/pause", s.handleWorkerToggle(false))
		r.Post("/worker/resume", s.handleWorkerToggle(true))
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.logger != nil {
		s.logger.Info(ctx, "http server listening", "address", listener.Addr().String())
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if s.logger != nil {
			s.logger.Info(ctx, "http server shutting down")
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id == "" {
			id = ports.GenerateCorrelationID()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ports.WithCorrelationID(r.Context(), id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.logger == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := s.now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", s.now().Sub(start).Milliseconds(),
		)
	})
}

func requestID(r *http.Request) string {
	return ports.GetCorrelationID(r.Context())
}

func isNotFound(err error) bool {
	var domainErr *pipeline.DomainError
	return errors.As(err, &domainErr) && domainErr.Code == pipeline.ErrCodeNotFound
}
