package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/congregate-api/config"
	"github.com/target/congregate-api/internal/clock"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/observability/statsd"
)

// APIPrefix is the mount point of versioned routes.
const APIPrefix = "/api"

// ComposerOptions groups dependencies for Composer.
type ComposerOptions struct {
	Authenticator Authenticator           // Required when any route authenticates
	API           config.APIConfig        // Required: sanitized version settings
	Validation    config.ValidationConfig // Optional
	HTTP          config.HTTPConfig       // Optional: body limit and proxy trust
	Normalizer    *apperrors.Normalizer   // Optional: built from Logger/Metrics/Clock when nil
	Logger        *slog.Logger            // Optional
	Metrics       statsd.Sink             // Optional
	Clock         clock.Clock             // Optional
}

// Composer turns RouteConfigs into Chains with a fixed stage order:
// version, validation, rate limit, authentication, authorization, CSRF, then
// any route-specific stages.
type Composer struct {
	authn      Authenticator
	versions   *VersionResolver
	strict     bool
	maxBody    int64
	trustProxy bool
	normalizer *apperrors.Normalizer
	logger     *slog.Logger
	metrics    statsd.Sink
	clock      clock.Clock
}

// NewComposer constructs a Composer.
func NewComposer(opts ComposerOptions) (*Composer, error) {
	if len(opts.API.SupportedVersions) == 0 {
		return nil, errors.New("at least one supported API version is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := clock.OrReal(opts.Clock)
	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = apperrors.NewNormalizer(apperrors.NormalizerOptions{Logger: logger, Metrics: opts.Metrics, Clock: clk})
	}
	return &Composer{
		authn:      opts.Authenticator,
		versions:   NewVersionResolver(opts.API),
		strict:     opts.Validation.StrictSchema,
		maxBody:    opts.HTTP.MaxBodyBytes,
		trustProxy: opts.HTTP.TrustProxy,
		normalizer: normalizer,
		logger:     logger,
		metrics:    opts.Metrics,
		clock:      clk,
	}, nil
}

// Build composes the chain for route.
func (c *Composer) Build(route RouteConfig) (*Chain, error) {
	if route.Handler == nil {
		return nil, fmt.Errorf("route %s: handler is required", route.Name())
	}

	stages := []Stage{c.versions.Stage(route.Versions)}

	if route.Schema != nil {
		schema := *route.Schema
		if c.strict {
			schema.Strict = true
		}
		stages = append(stages, validationStage(schema, route.ValidateQuery, c.maxBody))
	}

	if route.RateLimit != nil {
		if route.RateLimit.Limiter == nil {
			return nil, fmt.Errorf("route %s: rate limit rule has no limiter", route.Name())
		}
		stages = append(stages, rateLimitStage(*route.RateLimit))
	}

	if !route.Auth.IsNone() {
		if c.authn == nil {
			return nil, fmt.Errorf("route %s: authentication %s requires an authenticator", route.Name(), route.Auth)
		}
		if route.Auth.kind == authCustom && route.Auth.predicate == nil {
			return nil, fmt.Errorf("route %s: custom requirement %q has no predicate", route.Name(), route.Auth.name)
		}
		stages = append(stages, authStage(route.Auth, c.authn, c.logger.With("component", "auth_stage")))
	}

	if route.Authorization != nil {
		if route.Auth.IsNone() || route.Auth.IsOptional() {
			return nil, fmt.Errorf("route %s: authorization needs a required authentication stage", route.Name())
		}
		stages = append(stages, authzStage(*route.Authorization, c.logger.With("component", "authz_stage")))
	}

	if !route.Auth.IsNone() && !route.SkipCSRF {
		stages = append(stages, csrfStage(route.Auth.IsOptional()))
	}

	stages = append(stages, route.Stages...)

	return Compose(ChainConfig{
		Name:       route.Name(),
		Normalizer: c.normalizer,
		Logger:     c.logger,
		Metrics:    c.metrics,
		Clock:      c.clock,
		TrustProxy: c.trustProxy,
	}, route.Handler, stages...), nil
}

// Register builds each route and mounts it on mux at both
// /api/{version}<pattern> and /api<pattern>.
func (c *Composer) Register(mux *http.ServeMux, routes ...RouteConfig) error {
	for _, route := range routes {
		chain, err := c.Build(route)
		if err != nil {
			return err
		}
		pattern := "/" + strings.TrimPrefix(route.Pattern, "/")
		method := strings.ToUpper(route.Method)
		mux.Handle(method+" "+APIPrefix+"/{version}"+pattern, chain)
		mux.Handle(method+" "+APIPrefix+pattern, chain)
	}
	return nil
}
