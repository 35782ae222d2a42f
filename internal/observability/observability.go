// Package observability configures the process-wide slog logger.
//
// Plain text and JSON output go to standard error. The otlp format routes
// records through the OpenTelemetry log SDK instead, so they can be shipped
// to a collector alongside other telemetry.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies this service's records in OpenTelemetry.
const instrumentationName = "github.com/florianilch/pesapal-auth-proxy"

// Log formats understood by Instrument.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTLP = "otlp"
)

// OTLP exporter protocols understood by Instrument.
const (
	ProtocolGRPC   = "grpc"
	ProtocolHTTP   = "http"
	ProtocolStdout = "stdout"
)

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

// Options configure Instrument.
type Options struct {
	Level  slog.Level
	Format string
	// Protocol is only used by the otlp format.
	Protocol string
	// Output receives text and JSON records. Defaults to os.Stderr.
	Output io.Writer
}

// Instrument installs the default slog logger for the given options and
// returns a function that flushes pending records.
func Instrument(ctx context.Context, opts Options) (ShutdownFunc, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	switch opts.Format {
	case FormatText, "":
		slog.SetDefault(slog.New(slog.NewTextHandler(out, handlerOpts)))
		return noopShutdown, nil
	case FormatJSON:
		slog.SetDefault(slog.New(slog.NewJSONHandler(out, handlerOpts)))
		return noopShutdown, nil
	case FormatOTLP:
		provider, err := newLoggerProvider(ctx, opts.Protocol, opts.Level)
		if err != nil {
			return nil, err
		}
		slog.SetDefault(slog.New(otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))))
		return provider.Shutdown, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}
}

// newLoggerProvider builds a batching log pipeline that drops records below level.
func newLoggerProvider(ctx context.Context, protocol string, level slog.Level) (*sdklog.LoggerProvider, error) {
	exporter, err := newExporter(ctx, protocol)
	if err != nil {
		return nil, fmt.Errorf("creating %s log exporter: %w", protocol, err)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))

	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

func newExporter(ctx context.Context, protocol string) (sdklog.Exporter, error) {
	switch protocol {
	case ProtocolGRPC:
		return otlploggrpc.New(ctx)
	case ProtocolHTTP, "":
		return otlploghttp.New(ctx)
	case ProtocolStdout:
		return stdoutlog.New()
	default:
		return nil, fmt.Errorf("unsupported otlp protocol: %s", protocol)
	}
}

// severity maps a slog level onto the OpenTelemetry severity scale.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}

func noopShutdown(context.Context) error { return nil }
