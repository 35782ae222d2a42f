package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/pesapal-auth-proxy/internal/app"
	"github.com/florianilch/pesapal-auth-proxy/internal/observability"
)

// logFlushTimeout bounds flushing buffered log records on exit.
const logFlushTimeout = 5 * time.Second

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand(os.Environ, os.Stdout).Run(ctx, args)
}

func newRootCommand(environFunc func() []string, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "pesapal-auth",
		Usage:  "Pesapal token gateway",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "path to dotenv file with PESAPAL_* variables (default ./.env if present)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otlp), defaults to text on a terminal and json otherwise",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serveAction(ctx, cmd, environFunc, stdout)
		},
	}
}

func serveAction(ctx context.Context, cmd *cli.Command, environFunc func() []string, stdout io.Writer) error {
	cfg, err := loadConfig(resolveSources(cmd), cmd, environFunc)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	flushLogs, err := observability.Instrument(ctx, observability.Options{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		Protocol: string(cfg.OTLP.Protocol),
	})
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), logFlushTimeout)
		defer cancel()
		_ = flushLogs(flushCtx)
	}()

	application, err := app.New(cfg, app.WithStdout(stdout))
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
