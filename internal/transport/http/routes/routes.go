package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/infra/config"
	"github.com/dabananda/secure-account-api/internal/infra/security"
	"github.com/dabananda/secure-account-api/internal/transport/http/handlers"
	"github.com/dabananda/secure-account-api/internal/transport/http/middleware"
	"github.com/dabananda/secure-account-api/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	PasswordReset *usecase.PasswordResetService
	Roles         *usecase.RoleService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	TokenIssuer *security.SessionTokenIssuer
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.NewHTTPMetrics(prometheus.DefaultRegisterer).Instrument())

	requireAuth := middleware.RequireAuth(deps.Services.Auth)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwksHandler := handlers.NewJWKSHandler(deps.TokenIssuer)
	r.GET("/.well-known/jwks.json", jwksHandler.Keys)

	api := r.Group("/api")
	{
		account := api.Group("/account")

		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration)
		account.POST("/register", withLimit(deps, "register_ip", deps.Config.RateLimit.RegisterMaxAttempts, registrationHandler.Register)...)
		account.GET("/confirm-email", registrationHandler.ConfirmEmail)
		account.POST("/confirm-email", registrationHandler.ConfirmEmail)

		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		account.POST("/login", withLimit(deps, "login_ip", deps.Config.RateLimit.LoginMaxAttempts, authHandler.Login)...)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset)
		account.POST("/forgot-password", withLimit(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts, passwordHandler.ForgotPassword)...)
		account.POST("/reset-password", withLimit(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts, passwordHandler.ResetPassword)...)

		admin := api.Group("/admin")
		admin.Use(requireAuth, middleware.RequireRole(domain.RoleAdmin))

		adminHandler := handlers.NewAdminHandler(deps.Services.Roles)
		admin.POST("/roles/assign", adminHandler.AssignRole)
		admin.GET("/accounts", adminHandler.ListAccounts)
	}

	return r
}

// withLimit prepends an IP rate limit rule to the handler when a limit
// is configured.
func withLimit(deps Dependencies, name string, limit int, handler gin.HandlerFunc) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return []gin.HandlerFunc{handler}
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier,
	}

	return []gin.HandlerFunc{deps.RateLimiter.Limit(rule), handler}
}
