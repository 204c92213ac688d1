package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Azaz-Gori07/ChatApp/internal/auth"
	"github.com/Azaz-Gori07/ChatApp/internal/config"
	"github.com/Azaz-Gori07/ChatApp/internal/event"
	handler "github.com/Azaz-Gori07/ChatApp/internal/handler/http"
	"github.com/Azaz-Gori07/ChatApp/internal/mailer"
	"github.com/Azaz-Gori07/ChatApp/internal/repository/postgres"
	"github.com/Azaz-Gori07/ChatApp/internal/service"
	"github.com/Azaz-Gori07/ChatApp/internal/storage"
	"github.com/Azaz-Gori07/ChatApp/internal/storage/memory"
	s3storage "github.com/Azaz-Gori07/ChatApp/internal/storage/s3"
	"github.com/Azaz-Gori07/ChatApp/internal/ws"
	"github.com/Azaz-Gori07/ChatApp/migrations"
	"github.com/Azaz-Gori07/ChatApp/pkg/database"
	"github.com/Azaz-Gori07/ChatApp/pkg/health"
	pkgkafka "github.com/Azaz-Gori07/ChatApp/pkg/kafka"
	"github.com/Azaz-Gori07/ChatApp/pkg/tracing"
)

// App wires together all dependencies and runs the chat server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	bridge         *ws.RedisBridge
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "chat",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Parse JWT expiry durations.
	accessExpiry, err := time.ParseDuration(cfg.JWTAccessExpiry)
	if err != nil {
		return nil, fmt.Errorf("parse JWT access expiry %q: %w", cfg.JWTAccessExpiry, err)
	}
	refreshExpiry, err := time.ParseDuration(cfg.JWTRefreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("parse JWT refresh expiry %q: %w", cfg.JWTRefreshExpiry, err)
	}

	// Mail: real SMTP when configured, log-only otherwise.
	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		mail, err = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("init smtp mailer: %w", err)
		}
	} else {
		logger.Warn("SMTP not configured, OTP codes will only be logged")
		mail = mailer.NewLogMailer(logger)
	}

	// Object storage: S3-compatible when configured, in-memory otherwise.
	var store storage.Storage
	if cfg.S3AccessKey != "" || cfg.S3Endpoint != "" {
		store, err = s3storage.New(ctx, s3storage.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
	} else {
		logger.Warn("object storage not configured, uploads held in memory")
		store = memory.New(cfg.PublicBaseURL + "/uploads")
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, accessExpiry, refreshExpiry)
	userRepo := postgres.NewUserRepository(pool)
	convRepo := postgres.NewConversationRepository(pool)
	msgRepo := postgres.NewMessageRepository(pool)
	eventProducer := event.NewProducer(producer, logger)

	authService := service.NewAuthService(userRepo, jwtManager, mail, eventProducer, logger)
	userService := service.NewUserService(userRepo, logger)
	convService := service.NewConversationService(convRepo, msgRepo, userRepo, eventProducer, logger)
	uploadService := service.NewUploadService(store, logger)

	// Realtime gateway, optionally bridged over Redis for multi-instance fan-out.
	var bridge *ws.RedisBridge
	var hubBridge ws.Bridge
	if cfg.RedisEnabled {
		redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		bridge = ws.NewRedisBridge(redisClient, logger)
		hubBridge = bridge
		logger.Info("redis realtime bridge enabled")
	}

	hub := ws.NewHub(hubBridge, logger)
	if bridge != nil {
		if err := bridge.Start(ctx, hub); err != nil {
			pool.Close()
			return nil, fmt.Errorf("start redis bridge: %w", err)
		}
	}

	wsHandler := ws.NewHandler(hub, authService.ValidateAccessToken, convService, originChecker(cfg), logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	router := handler.NewRouter(handler.RouterConfig{
		AuthService:         authService,
		UserService:         userService,
		ConversationService: convService,
		UploadService:       uploadService,
		WSHandler:           wsHandler,
		Health:              healthHandler,
		Logger:              logger,
		Environment:         cfg.Environment,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		AuthRateRPS:         cfg.AuthRateLimitRPS,
		AuthRateBurst:       cfg.AuthRateLimitBurst,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		bridge:         bridge,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests; websocket connections drop here)
// 2. Tracer (flush pending spans from drained requests)
// 3. Redis bridge subscriber
// 4. Kafka producer
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.bridge != nil {
		a.bridge.Close()
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// originChecker restricts websocket handshakes to the configured CORS origins.
// Development allows everything, matching the CORS middleware.
func originChecker(cfg *config.Config) func(r *http.Request) bool {
	if cfg.Environment == "development" {
		return func(*http.Request) bool { return true }
	}

	allowed := make(map[string]struct{}, len(cfg.CORSAllowedOrigins))
	for _, o := range cfg.CORSAllowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients (the Go SDK) send no Origin.
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
