package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/florianilch/pesapal-auth-proxy/internal/pesapal"
)

// tokenErrorMessage is returned to callers for every failed token request.
// The underlying cause is only logged.
const tokenErrorMessage = "Failed to retrieve access token from Pesapal"

// TokenFetcher requests a fresh bearer token from the upstream provider.
type TokenFetcher interface {
	RequestToken(ctx context.Context) (*oauth2.Token, error)
}

// Compile-time check that the Pesapal client satisfies TokenFetcher
var _ TokenFetcher = (*pesapal.Client)(nil)

// TokenHandler serves freshly fetched upstream tokens.
type TokenHandler struct {
	Fetcher TokenFetcher
}

// Compile-time check to ensure TokenHandler implements http.Handler
var _ http.Handler = (*TokenHandler)(nil)

// ServeHTTP fetches a token for this request only and relays it as JSON.
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tok, err := h.Fetcher.RequestToken(ctx)
	if err != nil {
		switch {
		case errors.Is(err, pesapal.ErrMissingToken):
			slog.WarnContext(ctx, "no access token in upstream response")
		case ctx.Err() != nil:
			slog.DebugContext(ctx, "client went away during token request", "error", err)
		default:
			slog.ErrorContext(ctx, "failed to get access token", "error", err)
		}
		respondError(ctx, w, http.StatusInternalServerError, tokenErrorMessage)
		return
	}

	// Guards against fetchers that return an empty token without an error
	if tok == nil || tok.AccessToken == "" {
		slog.WarnContext(ctx, "no access token in upstream response")
		respondError(ctx, w, http.StatusInternalServerError, tokenErrorMessage)
		return
	}

	slog.DebugContext(ctx, "access token received", "expiry", tok.Expiry)
	respondJSON(ctx, w, http.StatusOK, TokenResponse{Token: tok.AccessToken})
}

// Health reports liveness without contacting the upstream.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, HealthResponse{Status: "ok"})
}
