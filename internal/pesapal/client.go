package pesapal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
)

const (
	// TokenPath is appended to the base URL to form the auth endpoint.
	TokenPath = "/v3/api/Auth/RequestToken"

	DefaultTimeout       = 30 * time.Second
	DefaultRetryInterval = 500 * time.Millisecond

	// maxResponseBytes bounds how much of an upstream response is read.
	maxResponseBytes = 1 << 20

	// maxRetryInterval caps a single backoff wait unless the configured
	// initial interval is already longer.
	maxRetryInterval = 5 * time.Second
)

// tokenResponse is the body returned by the auth endpoint.
type tokenResponse struct {
	Token      string     `json:"token"`
	ExpiryDate string     `json:"expiryDate"`
	Error      *errorBody `json:"error"`
	Status     string     `json:"status"`
	Message    string     `json:"message"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream requests.
// If not provided, a client with http.DefaultTransport is used.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each upstream attempt, including reading the response.
// A zero timeout disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetry enables up to maxRetries additional attempts with exponential
// backoff starting at initialInterval.
func WithRetry(maxRetries uint, initialInterval time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryInterval = initialInterval
	}
}

// Client requests bearer tokens from the Pesapal auth endpoint.
// It is safe for concurrent use; no state is shared between calls.
type Client struct {
	tokenURL   string
	creds      Credentials
	httpClient *http.Client

	timeout       time.Duration
	maxRetries    uint
	retryInterval time.Duration
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	if creds.ConsumerKey == "" {
		return nil, errors.New("consumer key cannot be empty")
	}
	if creds.ConsumerSecret == "" {
		return nil, errors.New("consumer secret cannot be empty")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: absolute http(s) URL required", baseURL)
	}

	c := &Client{
		tokenURL:      strings.TrimSuffix(base.String(), "/") + TokenPath,
		creds:         creds,
		httpClient:    &http.Client{},
		timeout:       DefaultTimeout,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}

	return c, nil
}

// RequestToken performs a fresh token request and returns the token to the caller.
func (c *Client) RequestToken(ctx context.Context) (*oauth2.Token, error) {
	if c.maxRetries == 0 {
		return c.requestToken(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = c.maxWait()

	attempt := 0
	return backoff.Retry(ctx, func() (*oauth2.Token, error) {
		attempt++
		tok, err := c.requestToken(ctx)
		if err == nil {
			return tok, nil
		}
		if !retryable(ctx, err) {
			return nil, backoff.Permanent(err)
		}
		slog.WarnContext(ctx, "pesapal token request attempt failed", "attempt", attempt, "error", err)
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxRetries+1))
}

// MaxDuration is the longest RequestToken can take, retries and backoff
// waits included. Zero means unbounded because attempts have no timeout.
func (c *Client) MaxDuration() time.Duration {
	if c.timeout <= 0 {
		return 0
	}

	retries := time.Duration(c.maxRetries)
	// Each wait is jittered by at most half its length
	return (retries+1)*c.timeout + retries*c.maxWait()*3/2
}

func (c *Client) maxWait() time.Duration {
	return max(c.retryInterval, maxRetryInterval)
}

// requestToken performs a single upstream attempt.
func (c *Client) requestToken(ctx context.Context) (*oauth2.Token, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+BasicAuth(c.creds.ConsumerKey, c.creds.ConsumerSecret))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	slog.DebugContext(ctx, "requesting pesapal token", "url", c.tokenURL, "credentials", c.creds)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	var payload tokenResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error details are best effort, the body may not be JSON at all
		if decodeErr != nil {
			return nil, newAPIError(resp.StatusCode, nil)
		}
		return nil, newAPIError(resp.StatusCode, payload.Error)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, decodeErr)
	}
	if payload.Error != nil {
		return nil, newAPIError(resp.StatusCode, payload.Error)
	}
	if payload.Token == "" {
		return nil, ErrMissingToken
	}

	tok := &oauth2.Token{
		AccessToken: payload.Token,
		TokenType:   "Bearer",
	}
	if payload.ExpiryDate != "" {
		expiry, err := time.Parse(time.RFC3339Nano, payload.ExpiryDate)
		if err != nil {
			slog.DebugContext(ctx, "ignoring unparseable token expiry", "expiry_date", payload.ExpiryDate)
		} else {
			tok.Expiry = expiry
		}
	}

	slog.DebugContext(ctx, "received pesapal token", "status", resp.StatusCode, "expiry", tok.Expiry)

	return tok, nil
}

// retryable reports whether err is worth another attempt.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrMissingToken) || errors.Is(err, ErrMalformedResponse) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	// Transport failures (connection refused, reset, attempt timeout)
	return true
}
