package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sitesmith-tech/sitesmith/internal/httpserver/handlers"
	"github.com/sitesmith-tech/sitesmith/internal/httpserver/middleware"
	"github.com/sitesmith-tech/sitesmith/internal/observability"
)

// setupRouter configures the Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger())
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))

	r.Use(s.corsMiddleware())

	// Health check and metrics (unauthenticated)
	r.Get("/health", handlers.Health)
	r.Get("/api/v1/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", observability.Global().Handler())

	// API routes (authenticated, rate limited)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(middleware.Auth(s.config.Auth.APIKeys))

		r.Post("/provision", handlers.Provision)

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", handlers.ListClients)
			r.Get("/{id}/status", handlers.GetClientStatus)
			r.Get("/{id}/deployments", handlers.ListClientDeployments)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/{id}", handlers.GetRun)
			r.Get("/{id}/state", handlers.GetRunState)
			r.Get("/{id}/ws", s.handleRunSocket)
		})
	})

	return r
}

// corsMiddleware returns configured CORS middleware.
func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	allowedOrigins := s.config.Server.CORSOrigins
	if len(allowedOrigins) == 0 {
		// Default: same-origin only (no CORS headers sent)
		allowedOrigins = []string{}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// handleRunSocket upgrades the request and streams the run's progress.
func (s *Server) handleRunSocket(w http.ResponseWriter, r *http.Request) {
	s.streamer.ServeRun(w, r, chi.URLParam(r, "id"))
}
