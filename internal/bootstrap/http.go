package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/congregate-api/config"
	httpx "github.com/target/congregate-api/internal/http"
)

// HTTPHandlerConfig contains what BuildHTTPHandler needs.
type HTTPHandlerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPHandler mounts the API router and wraps it with the transport
// middleware. Order, outermost first: Recover -> RequestID -> Logging -> Router.
func BuildHTTPHandler(cfg HTTPHandlerConfig) (http.Handler, error) {
	if cfg.Config == nil {
		return nil, errors.New("app config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router, err := httpx.NewRouter(httpx.RouterServices{
		Auth:         cfg.Services.Auth,
		LoginLimiter: cfg.Services.LoginLimiter,
		APILimiter:   cfg.Services.APILimiter,
		API:          cfg.Config.API,
		Validation:   cfg.Config.Validation,
		HTTP:         cfg.Config.HTTP,
		AdminPolicy:  cfg.Config.Auth.AdminPolicy,
		Normalizer:   cfg.Services.Normalizer,
		Logger:       logger,
		Metrics:      cfg.Services.Metrics,
	})
	if err != nil {
		return nil, err
	}

	h := httpx.Logging(logger)(router)
	h = httpx.RequestID()(h)
	h = httpx.Recover(logger)(h)
	return h, nil
}

// HTTPServeConfig controls ServeHTTP.
type HTTPServeConfig struct {
	Addr            string
	Handler         http.Handler
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	// Listener overrides Addr when set.
	Listener net.Listener
}

// ServeHTTP runs the server until ctx is cancelled, then drains in-flight
// requests within ShutdownTimeout.
func ServeHTTP(ctx context.Context, cfg HTTPServeConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := cfg.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           cfg.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Listener != nil {
			logger.InfoContext(ctx, "starting HTTP server", "addr", cfg.Listener.Addr().String())
			err = server.Serve(cfg.Listener)
		} else {
			logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
			err = server.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.InfoContext(ctx, "shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.InfoContext(ctx, "HTTP server stopped")
	return nil
}
