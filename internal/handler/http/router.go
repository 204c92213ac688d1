package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Azaz-Gori07/ChatApp/internal/service"
	"github.com/Azaz-Gori07/ChatApp/internal/ws"
	"github.com/Azaz-Gori07/ChatApp/pkg/health"
	"github.com/Azaz-Gori07/ChatApp/pkg/middleware"
)

// RouterConfig holds the dependencies the router wires together.
type RouterConfig struct {
	AuthService         *service.AuthService
	UserService         *service.UserService
	ConversationService *service.ConversationService
	UploadService       *service.UploadService
	WSHandler           *ws.Handler
	Health              *health.Handler
	Logger              *slog.Logger
	Environment         string
	CORSAllowedOrigins  []string

	// Per-IP rate limit on the public auth endpoints, which trigger real
	// email sends. Zero values fall back to the defaults.
	AuthRateRPS   float64
	AuthRateBurst int
}

// NewRouter creates a chi router with all chat server routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("chat"))

	// Health check and metrics endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Token validator bridging the middleware to the auth service.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := cfg.AuthService.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: claims.UserID, Email: claims.Email}, nil
	}

	authRPS, authBurst := cfg.AuthRateRPS, cfg.AuthRateBurst
	if authRPS <= 0 {
		authRPS = 5
	}
	if authBurst <= 0 {
		authBurst = 10
	}

	// Auth endpoints (public, rate limited: signup and send-otp send email)
	authHandler := NewAuthHandler(cfg.AuthService, cfg.Environment, cfg.Logger)
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(authRPS, authBurst, cfg.Logger))

		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.Post("/send-otp", authHandler.SendOTP)
		r.Post("/verify-otp", authHandler.VerifyOTP)
	})

	userHandler := NewUserHandler(cfg.UserService, cfg.Logger)
	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/me", userHandler.GetMe)
		r.Put("/update", userHandler.Update)
		r.Get("/", userHandler.List)
		r.Get("/search", userHandler.Search)
	})

	convHandler := NewConversationHandler(cfg.ConversationService, cfg.Logger)
	r.Route("/api/conversations", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/", convHandler.List)
		r.Post("/", convHandler.CreateDirect)
		r.Post("/group", convHandler.CreateGroup)
		r.Post("/{id}/add-member", convHandler.AddMember)
		r.Post("/{id}/remove-member", convHandler.RemoveMember)
		r.Patch("/{id}/rename", convHandler.Rename)
	})

	msgHandler := NewMessageHandler(cfg.ConversationService, cfg.Logger)
	r.Route("/api/messages", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/{conversationId}", msgHandler.List)
		r.Post("/", msgHandler.Send)
		r.Post("/{id}/read", msgHandler.MarkAsRead)
	})

	uploadHandler := NewUploadHandler(cfg.UploadService, cfg.Logger)
	r.Route("/api/upload", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Post("/image", uploadHandler.Image)
		r.Post("/presign", uploadHandler.Presign)
	})

	// Realtime endpoint: the handshake authenticates itself (token in query or
	// header) before the upgrade, so it sits outside the bearer middleware.
	if cfg.WSHandler != nil {
		r.Get("/ws", cfg.WSHandler.ServeHTTP)
	}

	return r
}
