// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/price-oracle/internal/logging"
	"github.com/price-oracle/internal/models"
	"github.com/price-oracle/internal/service"
	"github.com/price-oracle/internal/storage"
)

// Service interfaces for dependency injection and testing

// ResolverInterface defines the interface for price resolution
type ResolverInterface interface {
	Resolve(ctx context.Context, token string, network models.Network, ts int64) (*service.PriceResult, error)
}

// BackfillInterface defines the interface for backfill job operations
type BackfillInterface interface {
	Schedule(ctx context.Context, token string, network models.Network) (*models.BackfillJob, error)
	GetStatus(ctx context.Context, jobID string) (*service.JobStatusView, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	resolver   ResolverInterface
	backfill   BackfillInterface
	store      storage.Store
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, resolver ResolverInterface, backfill BackfillInterface, store storage.Store) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		resolver: resolver,
		backfill: backfill,
		store:    store,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	oracle := s.router.PathPrefix("/price-oracle").Subrouter()
	oracle.HandleFunc("/price", s.handleGetPrice).Methods("GET")
	oracle.HandleFunc("/schedule", s.handleSchedule).Methods("POST")
	oracle.HandleFunc("/jobs/{jobId}", s.handleGetJob).Methods("GET")
	oracle.HandleFunc("/stats", s.handleGetStats).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "price-oracle",
	})
}

// Router returns the underlying router, for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
