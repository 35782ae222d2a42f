package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/pesapal-auth-proxy/internal/gateway"
	"github.com/florianilch/pesapal-auth-proxy/internal/pesapal"
)

// Option configures an App.
type Option func(*App)

// WithStdout sets where the listening URL is announced. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(a *App) {
		a.stdout = w
	}
}

// App orchestrates the lifecycle of the token gateway.
type App struct {
	cfg     *Config
	gateway *gateway.Gateway
	stdout  io.Writer
}

// New creates a new App instance.
// No I/O is performed: the upstream is first contacted by an inbound request.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := pesapal.NewClient(cfg.BaseURL, cfg.Credentials(),
		pesapal.WithTimeout(cfg.Upstream.Timeout),
		pesapal.WithRetry(cfg.Upstream.MaxRetries, cfg.Upstream.RetryInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pesapal client: %w", err)
	}

	gw, err := gateway.New(client,
		gateway.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
		gateway.WithWriteTimeout(responseDeadline(client)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	a := &App{
		cfg:     cfg,
		gateway: gw,
		stdout:  os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// responseSlack covers the work around a token fetch: logging, encoding and
// writing the reply.
const responseSlack = 10 * time.Second

// responseDeadline lets a /auth request run for the full retry budget of the
// upstream client. Zero when the client itself is unbounded.
func responseDeadline(client *pesapal.Client) time.Duration {
	budget := client.MaxDuration()
	if budget == 0 {
		return 0
	}
	return budget + responseSlack
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := net.JoinHostPort(a.cfg.Server.Host, strconv.FormatUint(uint64(a.cfg.Server.Port), 10))
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting token gateway", "address", address, "upstream", a.cfg.BaseURL)
	gatewayErrCh, err := a.gateway.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("gateway startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.gateway.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-gatewayErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	listenURL := ListenURL(a.gateway.Addr())
	slog.InfoContext(gCtx, "application ready", "url", listenURL)
	if _, err := fmt.Fprintf(a.stdout, "Server running on %s\n", listenURL); err != nil {
		slog.WarnContext(gCtx, "failed to announce listening URL", "error", err)
	}

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// ListenURL renders a bound address as a URL a local client can open.
// Wildcard hosts are shown as localhost.
func ListenURL(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}

	return "http://" + net.JoinHostPort(host, port)
}
