// Package gateway serves Pesapal bearer tokens over HTTP.
//
// GET /auth performs one upstream token request per inbound request and
// relays the token as {"token": "..."}. Every failure is reported to the
// caller with the same fixed message and HTTP 500; the cause is only logged.
// GET /healthz answers without contacting the upstream.
package gateway
