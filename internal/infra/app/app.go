package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/infra/config"
	"github.com/dreznev/authcore/internal/infra/database"
	kafkainfra "github.com/dreznev/authcore/internal/infra/kafka"
	"github.com/dreznev/authcore/internal/infra/logger"
	redisinfra "github.com/dreznev/authcore/internal/infra/redis"
	"github.com/dreznev/authcore/internal/infra/security"
	"github.com/dreznev/authcore/internal/infra/telemetry"
	webauthninfra "github.com/dreznev/authcore/internal/infra/webauthn"
	postgresrepo "github.com/dreznev/authcore/internal/repository/postgres"
	redisrepo "github.com/dreznev/authcore/internal/repository/redis"
	"github.com/dreznev/authcore/internal/transport/http/middleware"
	"github.com/dreznev/authcore/internal/transport/http/routes"
	"github.com/dreznev/authcore/internal/usecase"
)

// Application bundles the wired service and its long-lived resources.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	if cfg.Postgres.Migrate {
		if err := postgresrepo.Migrate(ctx, database.DSN(cfg.Postgres)); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	challenges := redisrepo.NewChallengeStore(redisClient.Client(), cfg.Redis.ChallengePrefix)

	var (
		eventPublisher port.EventPublisher
		kafkaProducer  *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			kafkaProducer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	metrics := telemetry.NewMetrics()

	relyingParty, err := webauthninfra.NewRelyingParty(cfg.WebAuthn)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init relying party: %w", err)
	}

	sessionService, err := usecase.NewSessionService([]byte(cfg.Session.Secret), cfg.App.Name, cfg.Session.TTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init session service: %w", err)
	}

	loginService := usecase.NewLoginService(repos.Users, repos.Attempts, log).
		WithPolicy(usecase.LockoutPolicy{
			Window:             cfg.Lockout.Window,
			MaxFailuresPerIP:   cfg.Lockout.MaxFailuresPerIP,
			MaxFailuresPerUser: cfg.Lockout.MaxFailuresPerUser,
		}).
		WithEventPublisher(eventPublisher).
		WithMetrics(metrics)

	passkeyService := usecase.NewPasskeyService(repos.Users, repos.Credentials, log).
		WithEventPublisher(eventPublisher).
		WithMetrics(metrics)

	registrar := usecase.NewRegistrar(repos.Users, repos, log).
		WithEventPublisher(eventPublisher).
		WithMetrics(metrics)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:       cfg,
		Logger:       log,
		RelyingParty: relyingParty,
		Challenges:   challenges,
		Metrics:      httpMetrics,
		Database:     pool,
		Cache:        redisClient,
		Services: routes.ServiceSet{
			Login:     loginService,
			Passkeys:  passkeyService,
			Registrar: registrar,
			Sessions:  sessionService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: kafkaProducer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	// Closed first so buffered events flush before the logger is gone.
	defer func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("close kafka producer", zap.Error(err))
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting authentication API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
