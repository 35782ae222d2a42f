package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TokenResponse carries a freshly issued Pesapal bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// HealthResponse answers GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// respondJSON sends body as application/json. The body is marshaled before
// any header goes out, so a value that cannot be encoded turns into a plain
// 500 error reply instead of a truncated document.
func respondJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		slog.ErrorContext(ctx, "encoding response body", "error", err)
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"Internal Server Error"}` + "\n")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.DebugContext(ctx, "writing response body", "error", err)
	}
}

// respondError sends {"error": message} with the given status.
func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, ErrorResponse{Error: message})
}
