package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/auditbench/auditbench/internal/api/handlers"
	"github.com/auditbench/auditbench/internal/api/middleware"
	"github.com/auditbench/auditbench/internal/auth"
	"github.com/auditbench/auditbench/internal/projects"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	TokenService   auth.TokenService
	AuthService    *auth.Service
	OAuthProviders map[string]*auth.OAuthProvider
	AsynqClient    *asynq.Client
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	Development    bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize services
	projectService := projects.NewService(cfg.DB, cfg.AsynqClient, cfg.Logger)
	respond := handlers.NewResponder(cfg.Logger, cfg.Development)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.OAuthProviders, respond)
	userHandler := handlers.NewUserHandler(cfg.AuthService, respond)
	toolHandler := handlers.NewToolHandler(cfg.DB, respond)
	projectHandler := handlers.NewProjectHandler(projectService, respond)
	adminHandler := handlers.NewAdminHandler(cfg.DB, projectService, respond)

	requireAuth := middleware.Auth(cfg.TokenService, cfg.AuthService, cfg.Logger)
	optionalAuth := middleware.OptionalAuth(cfg.TokenService, cfg.AuthService, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Registration and login carry their own tight limits on
			// top of the global one.
			r.With(middleware.RateLimit(3, 3600)).Post("/register", authHandler.Register)
			r.With(middleware.RateLimit(5, 900)).Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.With(requireAuth).Post("/logout", authHandler.Logout)
			r.With(middleware.RateLimit(3, 3600)).Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)

			r.Get("/{provider}", authHandler.OAuthRedirect)
			r.Get("/{provider}/callback", authHandler.OAuthCallback)

			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", userHandler.GetProfile)
			r.Put("/profile", userHandler.UpdateProfile)

			// Alias for clients that address projects through the user
			// resource.
			r.Get("/projects", projectHandler.List)
			r.With(middleware.RateLimitByUser(30, 3600)).Post("/projects", projectHandler.Create)
		})

		// Catalogue is browsable anonymously; authenticated callers see
		// configuration and documentation.
		r.Route("/tools", func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", toolHandler.List)
			r.Get("/featured", toolHandler.Featured)
			r.Get("/popular", toolHandler.Popular)
			r.Get("/categories", toolHandler.Categories)
			r.Get("/{id}", toolHandler.Get)
			r.With(requireAuth).Post("/{id}/launch", toolHandler.Launch)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", projectHandler.List)
			r.With(middleware.RateLimitByUser(30, 3600)).Post("/", projectHandler.Create)
			r.Get("/templates", projectHandler.Templates)
			r.Get("/{id}", projectHandler.Get)
			r.Put("/{id}", projectHandler.Update)
			r.Delete("/{id}", projectHandler.Delete)
			r.Post("/{id}/share", projectHandler.Share)
			r.Delete("/{id}/share/{userID}", projectHandler.Unshare)
			r.Post("/{id}/notes", projectHandler.AddNote)
			r.Post("/{id}/template", projectHandler.SaveAsTemplate)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireAdmin)
			r.Get("/stats", adminHandler.Stats)
			r.Get("/users", adminHandler.ListUsers)
			r.Put("/users/{id}", adminHandler.UpdateUser)
			r.Delete("/users/{id}", adminHandler.DeleteUser)
			r.Get("/tools", adminHandler.ListTools)
			r.Post("/tools", adminHandler.CreateTool)
			r.Put("/tools/{id}", adminHandler.UpdateTool)
		})
	})

	return &Router{r}
}
