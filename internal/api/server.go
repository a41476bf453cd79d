package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/rollout/internal/api/handler"
	mw "github.com/edvin/rollout/internal/api/middleware"
	"github.com/edvin/rollout/internal/config"
	"github.com/edvin/rollout/internal/core"
	"github.com/edvin/rollout/internal/traffic"
)

// Server is the HTTP API server.
type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	pool           *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
}

// NewServer creates the API server with all routes and middleware configured.
func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, tc temporalclient.Client, cfg *config.Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       core.NewServices(pool, tc, traffic.NewSplitter(pool)),
		pool:           pool,
		temporalClient: tc,
		cfg:            cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.pool))

		rolloutHandler := handler.NewRollout(s.services.Rollout)
		r.Post("/rollouts", rolloutHandler.Create)
		r.Get("/rollouts/{id}", rolloutHandler.Get)
		r.Get("/rollouts/{id}/history", rolloutHandler.History)
		r.Post("/rollouts/{id}/abort", rolloutHandler.Abort)

		fleetHandler := handler.NewFleet(s.services.Fleet)
		r.Get("/services/{serviceName}/rollouts", rolloutHandler.ListByService)
		r.Get("/services/{serviceName}/weights", rolloutHandler.Weights)
		r.Get("/services/{serviceName}/groups", fleetHandler.ListByService)
		r.Post("/services/{serviceName}/groups", fleetHandler.Register)
		r.Get("/instance-groups/{id}", fleetHandler.Get)

		apiKeyHandler := handler.NewAPIKey(s.services.APIKey)
		r.Post("/api-keys", apiKeyHandler.Create)
		r.Delete("/api-keys/{id}", apiKeyHandler.Revoke)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReadyz verifies that the database and Temporal are reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		http.Error(w, "temporal unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
