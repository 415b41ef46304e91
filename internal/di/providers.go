// Package di wires the canvas API together with google/wire.
package di

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"brain2-canvas/internal/broadcast"
	"brain2-canvas/internal/cache"
	"brain2-canvas/internal/config"
	"brain2-canvas/internal/handlers"
	"brain2-canvas/internal/middleware"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/repository"
	"brain2-canvas/internal/repository/dynamodb"
	"brain2-canvas/internal/repository/memory"
	"brain2-canvas/internal/repository/postgres"
	svc "brain2-canvas/internal/service/canvas"
	"brain2-canvas/pkg/auth"
	apperrors "brain2-canvas/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Container holds what the API binary runs.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	LogLevel zap.AtomicLevel
	Hub      *broadcast.Hub
	Server   *http.Server
}

// ParseLevel maps a configured level name onto zap, falling back to info.
func ParseLevel(name string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func provideLogLevel(cfg *config.Config) zap.AtomicLevel {
	return zap.NewAtomicLevelAt(ParseLevel(cfg.Logging.Level))
}

func provideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.With(zap.String("environment", string(cfg.Environment)))
	return logger, func() { _ = logger.Sync() }, nil
}

func provideErrorHandler(cfg *config.Config, logger *zap.Logger) *apperrors.ErrorHandler {
	return apperrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// provideMetrics returns nil when metrics are disabled; the collector's
// methods accept a nil receiver.
func provideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (trace.Tracer, func(), error) {
	if !cfg.Tracing.Enabled {
		return observability.NoopTracer(), func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, cfg.Tracing.ServiceName, string(cfg.Environment), cfg.Tracing.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp.Tracer(), cleanup, nil
}

// provideRepository opens the configured store of record, seeds it from the
// fixtures file when one is set and wraps it with spans and metrics.
func provideRepository(
	ctx context.Context,
	cfg *config.Config,
	tracer trace.Tracer,
	metrics *observability.Collector,
	logger *zap.Logger,
) (repository.Repository, func(), error) {
	var (
		base    repository.Repository
		cleanup = func() {}
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		base = memory.NewStore()

	case config.DriverPostgres:
		store, err := postgres.New(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		base = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Closing postgres store failed", zap.Error(err))
			}
		}

	case config.DriverDynamoDB:
		client, err := newDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		base = dynamodb.NewStore(client, cfg.Storage.DynamoTable, logger)

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	logger.Info("Store of record ready", zap.String("driver", cfg.Storage.Driver))

	if cfg.Storage.Fixtures != "" {
		n, err := repository.LoadFixturesFile(ctx, base, cfg.Storage.Fixtures)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to load fixtures: %w", err)
		}
		logger.Info("Fixtures loaded", zap.String("path", cfg.Storage.Fixtures), zap.Int("elements", n))
	}

	return observability.InstrumentRepository(base, tracer, metrics), cleanup, nil
}

func newDynamoDBClient(ctx context.Context, cfg *config.Config) (*awsDynamodb.Client, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	awsCfg, err := awsConfig.LoadDefaultConfig(loadCtx, awsConfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsDynamodb.NewFromConfig(awsCfg, func(o *awsDynamodb.Options) {
		if cfg.Storage.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.DynamoEndpoint)
		}
		timeout := 15 * time.Second
		if cfg.IsDevelopment() {
			timeout = 30 * time.Second
		}
		o.HTTPClient = &http.Client{Timeout: timeout}
	}), nil
}

func provideCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, func(), error) {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Stats cache on redis", zap.String("addr", cfg.Redis.Addr))
		return rc, func() { _ = rc.Close() }, nil
	}

	mc := cache.NewMemoryCache(1024, logger)
	ctx, cancel := context.WithCancel(context.Background())
	mc.StartCleanup(ctx, time.Minute)
	return mc, cancel, nil
}

func provideHub(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) *broadcast.Hub {
	return broadcast.NewHub(broadcast.HubConfig{
		KeepAlive:             cfg.Broadcast.KeepAlive,
		MaxConnectionsPerUser: cfg.Broadcast.MaxConnectionsPerUser,
	}, metrics, logger)
}

// provideRelay connects to NATS when enabled and returns nil otherwise.
func provideRelay(cfg *config.Config, hub *broadcast.Hub, logger *zap.Logger) (*broadcast.NATSRelay, func(), error) {
	if !cfg.NATS.Enabled {
		return nil, func() {}, nil
	}
	relay, err := broadcast.NewNATSRelay(cfg.NATS.URL, cfg.NATS.Subject, hub, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := relay.Start(); err != nil {
		_ = relay.Close()
		return nil, nil, err
	}
	logger.Info("Broadcast relay connected", zap.String("url", cfg.NATS.URL))
	return relay, func() { _ = relay.Close() }, nil
}

// provideBroadcaster publishes through the relay when there is one, so every
// instance's hub delivers the event.
func provideBroadcaster(hub *broadcast.Hub, relay *broadcast.NATSRelay) broadcast.Broadcaster {
	if relay != nil {
		return relay
	}
	return hub
}

func provideService(
	cfg *config.Config,
	repo repository.Repository,
	events broadcast.Broadcaster,
	statsCache cache.Cache,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *svc.Service {
	settings := svc.Settings{
		Footprints:   cfg.Canvas.Footprints,
		Layout:       cfg.Canvas.Layout,
		CollisionGap: cfg.Canvas.CollisionGap,
		StatsTTL:     cfg.Redis.StatsTTL,
	}
	return svc.NewService(repo, events, settings, logger,
		svc.WithCache(statsCache),
		svc.WithMetrics(metrics),
		svc.WithTracer(tracer),
	)
}

func provideAuthConfig(cfg *config.Config) (middleware.AuthConfig, error) {
	if !cfg.Auth.Enabled {
		return middleware.AuthConfig{}, nil
	}
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
	})
	if err != nil {
		return middleware.AuthConfig{}, fmt.Errorf("failed to create JWT validator: %w", err)
	}
	return middleware.AuthConfig{Enabled: true, Validator: validator}, nil
}

func provideCanvasHandler(service *svc.Service, errs *apperrors.ErrorHandler, logger *zap.Logger) *handlers.CanvasHandler {
	return handlers.NewCanvasHandler(service, errs, logger)
}

func provideStreamHandler(cfg *config.Config, hub *broadcast.Hub, errs *apperrors.ErrorHandler, logger *zap.Logger) *handlers.StreamHandler {
	ws := broadcast.NewWSServer(hub, cfg.Broadcast.SendBuffer, originChecker(cfg.Server.AllowedOrigins), logger)
	sse := broadcast.NewSSEServer(hub, cfg.Broadcast.SendBuffer, logger)
	return handlers.NewStreamHandler(hub, ws, sse, errs)
}

// originChecker accepts the configured CORS origins. Requests without an
// Origin header come from non-browser clients and are accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func provideHealthHandler(repo repository.Repository, relay *broadcast.NATSRelay, logger *zap.Logger) *handlers.HealthHandler {
	checks := map[string]repository.Pinger{}
	if p, ok := repo.(repository.Pinger); ok {
		checks["store"] = p
	}
	if relay != nil {
		checks["nats"] = relay
	}
	return handlers.NewHealthHandler(checks, logger)
}

func provideHandler(
	cfg *config.Config,
	authCfg middleware.AuthConfig,
	canvasHandler *handlers.CanvasHandler,
	streamHandler *handlers.StreamHandler,
	healthHandler *handlers.HealthHandler,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
	errs *apperrors.ErrorHandler,
) http.Handler {
	router := handlers.NewRouter(
		handlers.RouterConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
			Auth:           authCfg,
		},
		canvasHandler,
		streamHandler,
		healthHandler,
		metrics,
		tracer,
		logger,
		errs,
	)
	return router.Setup()
}

// provideServer leaves WriteTimeout to the stream handlers: a deadline on
// the connection would cut long-lived push channels.
func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     handler,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}
}
