package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/infra/config"
	"github.com/dreznev/authcore/internal/transport/http/handlers"
	"github.com/dreznev/authcore/internal/transport/http/middleware"
	"github.com/dreznev/authcore/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Login     *usecase.LoginService
	Passkeys  *usecase.PasskeyService
	Registrar *usecase.Registrar
	Sessions  *usecase.SessionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config       *config.AppConfig
	Logger       *zap.Logger
	Services     ServiceSet
	RelyingParty *webauthn.WebAuthn
	Challenges   port.ChallengeStore
	Metrics      *middleware.HTTPMetrics
	Database     DatabaseChecker
	Cache        CacheChecker
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
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

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

	api := r.Group("/api/v1")
	api.Use(middleware.Session(deps.Services.Sessions))
	{
		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(deps.Services.Login, deps.Services.Registrar, deps.Services.Sessions)
		authHandler.RegisterRoutes(authGroup)

		webauthnHandler := handlers.NewWebAuthnHandler(
			deps.RelyingParty,
			deps.Services.Passkeys,
			deps.Services.Registrar,
			deps.Services.Sessions,
			deps.Challenges,
			deps.Config.WebAuthn.ChallengeTTL,
		)
		webauthnHandler.RegisterRoutes(authGroup.Group("/webauthn"))
	}

	return r
}
