// Package server exposes job status, health and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/internal/config"
	"github.com/zsiec/avwrap/internal/health"
	"github.com/zsiec/avwrap/internal/logger"
	"github.com/zsiec/avwrap/internal/registry"
)

// Server is the status HTTP server.
type Server struct {
	config       *config.Config
	router       *mux.Router
	httpServer   *http.Server
	logger       logrus.FieldLogger
	jobs         registry.Registry
	healthMgr    *health.Manager
	errorHandler *ErrorHandler

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server over jobs. The checkers are run by the health
// endpoints and periodically once the server is started.
func New(cfg *config.Config, log logrus.FieldLogger, jobs registry.Registry, checkers ...health.Checker) *Server {
	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       logger.WithComponent(log, "server"),
		jobs:         jobs,
		healthMgr:    health.NewManager(log),
		errorHandler: NewErrorHandler(log),
	}

	for _, c := range checkers {
		s.healthMgr.Register(c)
	}
	s.setupRoutes()

	return s
}

// Start serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	httpServer := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
	s.mu.Lock()
	s.listener = ln
	s.httpServer = httpServer
	s.mu.Unlock()

	interval := s.config.Server.HealthInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go s.healthMgr.StartPeriodicChecks(ctx, interval)

	s.logger.WithField("addr", ln.Addr().String()).Info("Starting status server")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down status server")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("Status server shutdown complete")
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods(http.MethodGet)

	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	if s.config.Metrics.Enabled {
		path := s.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.router.Handle(path, promhttp.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/engines", s.handleEngines).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/jobs/{id}", s.handleDeleteJob).Methods(http.MethodDelete)

	if s.config.Server.DebugEndpoints {
		s.setupDebugEndpoints()
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

func (s *Server) setupDebugEndpoints() {
	s.logger.Info("Enabling debug endpoints")

	debug := s.router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)
}

// Router returns the router for tests and embedding.
func (s *Server) Router() *mux.Router {
	return s.router
}

// HealthManager returns the manager running the registered checkers.
func (s *Server) HealthManager() *health.Manager {
	return s.healthMgr
}
