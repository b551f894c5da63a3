// Package server provides the HTTP server and routing for Conjure.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sorceryai/conjure/internal/database"
	"github.com/sorceryai/conjure/internal/events"
	"github.com/sorceryai/conjure/internal/market"
	"github.com/sorceryai/conjure/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log           zerolog.Logger
	Port          int
	DevMode       bool
	DataDir       string
	MarketService *market.Service
	RefreshJob    scheduler.Job
	Scheduler     *scheduler.Scheduler
	EventBus      *events.Bus
	ClientDataDB  *database.DB
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	marketHandlers *MarketHandlers
	systemHandlers *SystemHandlers
	streamHandler  *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		marketHandlers: NewMarketHandlers(cfg.MarketService, cfg.Log),
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.DataDir, cfg.ClientDataDB, cfg.RefreshJob, cfg.Scheduler),
		streamHandler:  NewEventsStreamHandler(cfg.EventBus, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/markets", s.marketHandlers.HandleMarkets)
		r.Get("/markets/{id}/sparkline", s.marketHandlers.HandleSparkline)

		r.Route("/system", func(r chi.Router) {
			r.Get("/health", s.systemHandlers.HandleHealth)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/refresh", s.systemHandlers.HandleTriggerRefresh)
		})

		r.Get("/stream", s.streamHandler.HandleStream)
	})
}

// Router returns the underlying router. Used by handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth is the liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
