package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/congregate-api/config"
	"github.com/target/congregate-api/internal/adapters/devauth"
	"github.com/target/congregate-api/internal/adapters/memory"
	redisadapter "github.com/target/congregate-api/internal/adapters/redis"
	"github.com/target/congregate-api/internal/data"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/observability/statsd"
	"github.com/target/congregate-api/internal/ports"
	"github.com/target/congregate-api/internal/service"
)

// sessionKeyPrefix namespaces session records in Redis.
const sessionKeyPrefix = "session:"

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth         *service.AuthService
	LoginLimiter *service.RateLimiter
	APILimiter   *service.RateLimiter
	Sweeper      *service.SessionSweeper
	Normalizer   *apperrors.Normalizer
	Metrics      statsd.Sink

	metricsClient *statsd.Client
}

// Close releases resources owned by the container.
func (c ServiceContainer) Close() error {
	if c.metricsClient != nil {
		return c.metricsClient.Close()
	}
	return nil
}

// ServiceDeps groups the infrastructure NewServices wires together. DB and
// RedisClient may be nil when no configured backend needs them.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices builds the stores selected by config and the services over them.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metricsClient := buildMetrics(logger, cfg.Observability.Metrics)
	sink := metricsSink(metricsClient)

	users, err := buildUserDirectory(cfg.Auth, deps.DB)
	if err != nil {
		return ServiceContainer{}, err
	}
	sessions, err := buildSessionStore(cfg.Session, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}

	auth, err := service.NewAuthService(service.AuthServiceOptions{
		Sessions: sessions,
		Users:    users,
		Config:   cfg.Session,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("auth service: %w", err)
	}

	loginLimiter, err := buildRateLimiter(rateLimiterSpec{
		scope:  "login",
		max:    cfg.RateLimit.MaxAttempts,
		window: cfg.RateLimit.Window(),
	}, cfg.RateLimit, deps.RedisClient, logger, sink)
	if err != nil {
		return ServiceContainer{}, err
	}
	apiLimiter, err := buildRateLimiter(rateLimiterSpec{
		scope:  "api",
		max:    cfg.RateLimit.APIMaxAttempts,
		window: cfg.RateLimit.APIWindow(),
	}, cfg.RateLimit, deps.RedisClient, logger, sink)
	if err != nil {
		return ServiceContainer{}, err
	}

	sweeper, err := service.NewSessionSweeper(service.SessionSweeperOptions{
		Sessions: auth,
		Interval: cfg.Session.SweepInterval,
		Logger:   logger,
		Metrics:  sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("session sweeper: %w", err)
	}

	return ServiceContainer{
		Auth:          auth,
		LoginLimiter:  loginLimiter,
		APILimiter:    apiLimiter,
		Sweeper:       sweeper,
		Normalizer:    apperrors.NewNormalizer(apperrors.NormalizerOptions{Logger: logger, Metrics: sink}),
		Metrics:       sink,
		metricsClient: metricsClient,
	}, nil
}

func buildMetrics(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		// Metrics are best effort; the API keeps serving without them.
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// metricsSink avoids storing a typed nil *statsd.Client in the interface.
//
//nolint:ireturn // callers only need the Sink surface.
func metricsSink(c *statsd.Client) statsd.Sink {
	if c == nil {
		return nil
	}
	return c
}

//nolint:ireturn // the directory implementation is chosen by config.
func buildUserDirectory(cfg config.AuthConfig, db *sql.DB) (ports.UserDirectory, error) {
	switch cfg.UserDirectory {
	case config.UserDirectoryPostgres:
		if db == nil {
			return nil, errors.New("postgres user directory requires a database connection")
		}
		return data.NewUserRepo(db), nil
	default:
		dir, err := devauth.NewDirectory(devauth.Config{Entries: cfg.StaticUsers})
		if err != nil {
			return nil, err
		}
		return dir, nil
	}
}

//nolint:ireturn // the session backend is chosen by config.
func buildSessionStore(cfg config.SessionConfig, client redis.UniversalClient) (ports.SessionStore, error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		if client == nil {
			return nil, errors.New("redis session backend requires a redis client")
		}
		return redisadapter.NewSessionStoreWithPrefix(client, sessionKeyPrefix), nil
	default:
		return memory.NewSessionStore(), nil
	}
}

type rateLimiterSpec struct {
	scope  string
	max    int
	window time.Duration
}

func buildRateLimiter(
	spec rateLimiterSpec,
	cfg config.RateLimitConfig,
	client redis.UniversalClient,
	logger *slog.Logger,
	sink statsd.Sink,
) (*service.RateLimiter, error) {
	var store ports.RateLimitStore
	switch cfg.Backend {
	case config.RateLimitBackendShared:
		if client == nil {
			return nil, errors.New("shared rate limit backend requires a redis client")
		}
		store = redisadapter.NewRateLimitStore(client)
	default:
		store = memory.NewRateLimitStore(memory.RateLimitStoreOptions{
			MaxIdentifiers:  cfg.MaxIdentifiers,
			CleanupInterval: cfg.CleanupInterval,
		})
	}

	limiter, err := service.NewRateLimiter(service.RateLimiterOptions{
		Scope:             spec.scope,
		Store:             store,
		MaxAttempts:       spec.max,
		Window:            spec.window,
		BackendTimeout:    cfg.BackendTimeout,
		ReconnectInterval: cfg.ReconnectInterval,
		Logger:            logger,
		Metrics:           sink,
	})
	if err != nil {
		return nil, fmt.Errorf("%s rate limiter: %w", spec.scope, err)
	}
	return limiter, nil
}

// ServiceOrchestrationConfig contains dependencies for running services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts every enabled service and blocks until
// SIGINT/SIGTERM or until one of them fails, then stops the rest.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunServices(ctx, cfg)
}

// RunServices runs every enabled service until ctx is cancelled or one of
// them fails. A clean shutdown returns nil.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeHTTP] {
		handler, err := BuildHTTPHandler(HTTPHandlerConfig{Config: cfg.Config, Services: cfg.Services, Logger: logger})
		if err != nil {
			return fmt.Errorf("build http handler: %w", err)
		}
		g.Go(func() error {
			return ServeHTTP(gctx, HTTPServeConfig{
				Addr:            cfg.Config.HTTP.Addr,
				Handler:         handler,
				ShutdownTimeout: cfg.Config.HTTP.ShutdownTimeout,
				Logger:          logger,
			})
		})
	}

	if enabled[config.ServiceModeSessionSweeper] {
		if cfg.Services.Sweeper == nil {
			return errors.New("session sweeper enabled but not built")
		}
		g.Go(func() error {
			if err := cfg.Services.Sweeper.Run(gctx); err != nil {
				return fmt.Errorf("session sweeper failed: %w", err)
			}
			return nil
		})
	}

	logger.InfoContext(ctx, "services started", "services", GetEnabledServices(cfg.Config))
	err = g.Wait()
	if err != nil {
		logger.ErrorContext(ctx, "service error", "error", err)
		return err
	}
	logger.InfoContext(ctx, "services stopped")
	return nil
}
