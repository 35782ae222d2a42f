package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/processors/minsev"
)

// restoreDefault resets the process-wide logger after a test replaces it.
func restoreDefault(t *testing.T) {
	t.Helper()
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
}

func TestInstrument_Text(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	shutdown, err := Instrument(context.Background(), Options{Level: slog.LevelWarn, Format: FormatText, Output: &buf})
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	slog.Info("dropped")
	slog.Warn("kept", "attempt", 2)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("record below level was written: %s", out)
	}
	if !strings.Contains(out, "msg=kept") || !strings.Contains(out, "attempt=2") {
		t.Errorf("expected text record, got: %s", out)
	}
}

func TestInstrument_JSON(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	if _, err := Instrument(context.Background(), Options{Level: slog.LevelDebug, Format: FormatJSON, Output: &buf}); err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	slog.Debug("hello", "component", "gateway")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("record is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "hello" || record["component"] != "gateway" {
		t.Errorf("record = %v", record)
	}
}

func TestInstrument_OTLPStdout(t *testing.T) {
	restoreDefault(t)

	shutdown, err := Instrument(context.Background(), Options{Level: slog.LevelInfo, Format: FormatOTLP, Protocol: ProtocolStdout})
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	slog.Info("exported")

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error = %v", err)
	}
}

func TestInstrument_Unsupported(t *testing.T) {
	restoreDefault(t)

	tests := []struct {
		name string
		opts Options
	}{
		{name: "format", opts: Options{Format: "xml"}},
		{name: "otlp protocol", opts: Options{Format: FormatOTLP, Protocol: "udp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Instrument(context.Background(), tt.opts); err == nil {
				t.Error("Instrument() error = nil, want error")
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{level: slog.LevelDebug, want: minsev.SeverityDebug},
		{level: slog.LevelInfo, want: minsev.SeverityInfo},
		{level: slog.LevelInfo + 2, want: minsev.SeverityInfo},
		{level: slog.LevelWarn, want: minsev.SeverityWarn},
		{level: slog.LevelError, want: minsev.SeverityError},
		{level: slog.LevelError + 4, want: minsev.SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := severity(tt.level); got != tt.want {
				t.Errorf("severity(%v) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}
