package pesapal

import (
	"encoding/base64"
	"log/slog"
)

const redacted = "[REDACTED]"

// Credentials identify the merchant to the Pesapal auth endpoint.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
}

// Compile-time check to ensure Credentials never logs its values
var _ slog.LogValuer = Credentials{}

// LogValue implements slog.LogValuer. Both halves are always redacted.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("consumer_key", redacted),
		slog.String("consumer_secret", redacted),
	)
}

// BasicAuth returns the Basic-Auth credential for key and secret, i.e. the
// standard base64 encoding of "key:secret" without the "Basic " prefix.
func BasicAuth(key, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(key + ":" + secret))
}
