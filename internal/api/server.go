package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cortex-community/cortex-engine/internal/challenge"
	"github.com/cortex-community/cortex-engine/internal/config"
	"github.com/cortex-community/cortex-engine/internal/dispatch"
	"github.com/cortex-community/cortex-engine/internal/points"
	"github.com/cortex-community/cortex-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	lifecycle  *challenge.Lifecycle
	points     *points.Service
	dispatcher *dispatch.Dispatcher
	repo       storage.Repository
	auth       *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	lifecycle *challenge.Lifecycle,
	pointsSvc *points.Service,
	dispatcher *dispatch.Dispatcher,
	repo storage.Repository,
	adminToken string,
) *Server {
	s := &Server{
		config:     cfg,
		lifecycle:  lifecycle,
		points:     pointsSvc,
		dispatcher: dispatcher,
		repo:       repo,
		auth:       NewAuthMiddleware(adminToken),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// Interaction webhook, used when the platform pushes over HTTP instead
	// of the socket
	r.Post("/interactions", s.handleInteraction)

	// Admin API (protected by the admin token)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", s.handleListChallenges)
			r.Post("/", s.handleActivateChallenge)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetChallenge)
				r.Post("/close", s.handleCloseChallenge)
				r.Post("/finish", s.handleFinishChallenge)
			})
		})

		r.Route("/members/{id}/points", func(r chi.Router) {
			r.Get("/", s.handleGetPoints)
			r.Put("/", s.handleSetPoints)
		})

		r.Get("/leaderboard", s.handleLeaderboard)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
