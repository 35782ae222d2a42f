package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Option configures a Gateway.
type Option func(*config)

// DefaultWriteTimeout bounds a response when WithWriteTimeout is not given.
const DefaultWriteTimeout = 5 * time.Minute

type config struct {
	allowedOrigins []string
	logger         *slog.Logger
	writeTimeout   time.Duration
}

// WithAllowedOrigins restricts cross-origin access. Defaults to any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(c *config) {
		c.allowedOrigins = origins
	}
}

// WithLogger sets the logger used for request logs. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithWriteTimeout sets how long a request may take from the end of its
// headers until the response is written. It must cover the slowest token
// fetch, so derive it from the upstream client. Zero disables the limit.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) {
		c.writeTimeout = d
	}
}

// Gateway is the HTTP server relaying upstream tokens to callers.
type Gateway struct {
	handler      http.Handler
	writeTimeout time.Duration
	server       *http.Server
	listener     net.Listener
}

// Compile-time check that Gateway implements http.Handler
var _ http.Handler = (*Gateway)(nil)

// New creates a Gateway that fetches a token from fetcher on every GET /auth.
func New(fetcher TokenFetcher, opts ...Option) (*Gateway, error) {
	if fetcher == nil {
		return nil, errors.New("missing token fetcher")
	}

	cfg := &config{
		allowedOrigins: []string{"*"},
		logger:         slog.Default(),
		writeTimeout:   DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /auth", &TokenHandler{Fetcher: fetcher})
	mux.HandleFunc("GET /healthz", Health)

	// CORS wraps the whole mux so preflight requests never reach method routing
	handler := applyMiddlewares(mux,
		Logging(cfg.logger),
		RequestID,
		Recovery,
		CORS(cfg.allowedOrigins),
	)

	return &Gateway{handler: handler, writeTimeout: cfg.writeTimeout}, nil
}

// ServeHTTP implements http.Handler interface
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (g *Gateway) Start(ctx context.Context, address string) (<-chan error, error) {
	// Bind synchronously so port-in-use errors surface before reporting readiness
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	g.listener = listener

	g.server = &http.Server{
		Handler:           g,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      g.writeTimeout,
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := g.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// WriteTimeout reports the response deadline applied by Start.
func (g *Gateway) WriteTimeout() time.Duration {
	return g.writeTimeout
}

// Addr returns the bound listener address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	if err := g.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = g.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
