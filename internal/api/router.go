package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/feedhub/internal/api/handlers"
	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/metrics"
	"github.com/isdelr/feedhub/internal/services"
	"github.com/isdelr/feedhub/internal/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators the HTTP surfaces are built from.
type Dependencies struct {
	Feed      services.FeedServiceProvider
	Users     services.UserServiceProvider
	Tokens    *auth.TokenService
	Images    handlers.ImageStore
	ImagesDir string
	Hub       *websocket.Hub
	DB        handlers.Pinger
	GraphQL   http.Handler

	AllowedOrigins []string
	AuthRateLimit  float64
	AuthRateBurst  int
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(auth.Gate(deps.Tokens))

	// Initialize handlers
	feedHandler := handlers.NewFeedHandler(deps.Feed, deps.Images)
	authHandler := handlers.NewAuthHandler(deps.Users)
	imageHandler := handlers.NewImageHandler(deps.Feed, deps.Images)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Hub)

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", wsHandler.Serve)
	r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(deps.ImagesDir))))

	if deps.GraphQL != nil {
		r.Handle("/graphql", deps.GraphQL)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(NewRateLimiter(deps.AuthRateLimit, deps.AuthRateBurst).Handler)
		r.Post("/signup", authHandler.Signup)
		r.Put("/login", authHandler.Login)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Get("/status", authHandler.GetStatus)
			r.Patch("/status", authHandler.UpdateStatus)
		})
	})

	r.Route("/feed", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/posts", feedHandler.GetAll)
		r.Post("/post", feedHandler.Create)
		r.Route("/post/{postId}", func(r chi.Router) {
			r.Get("/", feedHandler.Get)
			r.Put("/", feedHandler.Update)
			r.Delete("/", feedHandler.Delete)
		})
	})

	r.With(auth.RequireAuth).Put("/post-image", imageHandler.Upload)

	return r
}
