package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/infra/config"
	"github.com/dabananda/secure-account-api/internal/infra/database"
	kafkainfra "github.com/dabananda/secure-account-api/internal/infra/kafka"
	"github.com/dabananda/secure-account-api/internal/infra/logger"
	"github.com/dabananda/secure-account-api/internal/infra/notifier"
	redisinfra "github.com/dabananda/secure-account-api/internal/infra/redis"
	"github.com/dabananda/secure-account-api/internal/infra/security"
	"github.com/dabananda/secure-account-api/internal/infra/telemetry"
	postgresrepo "github.com/dabananda/secure-account-api/internal/repository/postgres"
	redisrepo "github.com/dabananda/secure-account-api/internal/repository/redis"
	"github.com/dabananda/secure-account-api/internal/transport/http/middleware"
	"github.com/dabananda/secure-account-api/internal/transport/http/routes"
	"github.com/dabananda/secure-account-api/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	reset    *usecase.PasswordResetService
	roles    *usecase.RoleService
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracer, err := telemetry.Attach(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, signingKID, err := buildKeyProvider(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	issuer, err := security.NewSessionTokenIssuer(keyProvider, signingKID, cfg.JWT.Issuer, cfg.JWT.SessionTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	attemptTTL := cfg.Redis.AttemptCacheTTL
	if attemptTTL <= 0 {
		attemptTTL = 2 * cfg.RateLimit.WindowDuration
	}
	if attemptTTL <= 0 {
		attemptTTL = 2 * time.Minute
	}
	attemptStore := redisrepo.NewAttemptStore(redisClient.Client(), redisrepo.AttemptStoreConfig{
		KeyPrefix: cfg.Redis.AttemptPrefix,
		TTL:       attemptTTL,
	})

	repos := postgresrepo.NewRepositories(pool)

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var mailer port.Notifier
	if cfg.SMTP.Enabled {
		mailer = notifier.NewSMTPNotifier(cfg.SMTP, log)
	} else {
		log.Info("smtp disabled, logging notifications instead")
		mailer = notifier.NewLoggingNotifier(log)
	}

	rateLimiter := middleware.NewRateLimiter(attemptStore, log)

	authService := usecase.NewAuthService(cfg, repos.Accounts, repos.Roles, attemptStore, issuer, hasher, log)
	registrationService := usecase.NewRegistrationService(cfg, repos.Accounts, repos.Tokens, repos.Roles, mailer, eventPublisher, attemptStore, hasher, log)
	passwordResetService := usecase.NewPasswordResetService(cfg, repos.Accounts, repos.Tokens, attemptStore, mailer, eventPublisher, hasher, log)
	roleService := usecase.NewRoleService(repos.Accounts, repos.Roles, eventPublisher, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		TokenIssuer: issuer,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			PasswordReset: passwordResetService,
			Roles:         roleService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		tracer:   tracer,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		reset:    passwordResetService,
		roles:    roleService,
	}, nil
}

// buildKeyProvider loads RSA keys from the configured directory, or
// generates an ephemeral pair for local development when none is set.
// Production requires a key directory; ephemeral keys invalidate every
// session on restart.
func buildKeyProvider(cfg *config.AppConfig, log *zap.Logger) (security.KeyProvider, string, error) {
	if cfg.JWT.KeyDirectory != "" {
		provider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
		if err != nil {
			return nil, "", err
		}
		return provider, provider.SigningKID(), nil
	}

	if cfg.App.Env == "production" {
		return nil, "", fmt.Errorf("jwt key directory is required in production")
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, "", fmt.Errorf("generate ephemeral key: %w", err)
	}
	log.Warn("no jwt key directory configured, using ephemeral signing key")
	return &security.StaticKeyProvider{KID: "ephemeral", Private: key}, "ephemeral", nil
}

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
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			_ = a.tracer.Shutdown(context.Background())
		}
	}()

	if err := a.roles.SeedRoles(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	sweepDone := a.startTokenSweeper(ctx)
	defer func() { <-sweepDone }()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account API",
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

// startTokenSweeper purges expired purpose tokens on the configured
// interval until the context is cancelled.
func (a *Application) startTokenSweeper(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	interval := a.cfg.Tokens.SweepInterval
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := a.reset.SweepExpiredTokens(ctx)
				if err != nil {
					a.logger.Warn("token sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					a.logger.Info("purged expired tokens", zap.Int("count", removed))
				}
			}
		}
	}()

	return done
}
