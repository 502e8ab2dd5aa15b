package api

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/flotilla/internal/api/handler"
	mw "github.com/edvin/flotilla/internal/api/middleware"
	"github.com/edvin/flotilla/internal/api/response"
	"github.com/edvin/flotilla/internal/config"
	"github.com/edvin/flotilla/internal/core"
)

//go:embed docs/openapi.json
var openapiJSON []byte

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, services *core.Services, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		cfg:      cfg,
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

	s.router.Get("/docs/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(openapiJSON)
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		env := handler.NewEnvironment(s.services.Environment, s.cfg.RegistrationEnabled)
		r.Post("/environments", env.Create)
		r.Get("/environments", env.List)
		r.Get("/environments/{id}", env.Get)
		r.Delete("/environments/{id}", env.Delete)

		group := handler.NewGroup(s.services.Group)
		r.Get("/groups", group.List)
		r.Post("/groups", group.Create)
		r.Get("/groups/{id}", group.Get)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		response.WriteError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
