// Package pesapal requests bearer tokens from the Pesapal payment gateway.
//
// The gateway authenticates token requests with HTTP Basic-Auth built from a
// consumer key and secret, and answers with a JSON document carrying the
// token and its expiry:
//
//	client, err := pesapal.NewClient(baseURL, pesapal.Credentials{
//		ConsumerKey:    key,
//		ConsumerSecret: secret,
//	})
//	tok, err := client.RequestToken(ctx)
//	// tok.AccessToken holds the bearer token
//
// Every RequestToken call performs a fresh upstream request. Tokens are never
// cached and never shared between callers.
//
// # Retries
//
// Retries are disabled by default. WithRetry enables exponential backoff for
// transport failures, HTTP 429 and HTTP 5xx responses; every other failure is
// returned immediately.
package pesapal
