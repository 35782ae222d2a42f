package pesapal

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingToken is returned when the upstream answered without a token.
	ErrMissingToken = errors.New("pesapal: no token in response")

	// ErrMalformedResponse is returned when the response body is not valid JSON.
	ErrMalformedResponse = errors.New("pesapal: malformed token response")
)

// APIError describes a failed token request as reported by the upstream,
// either through a non-2xx status or an error object in the response body.
type APIError struct {
	// StatusCode is the HTTP status of the upstream response.
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("pesapal: token request failed with status %d", e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += " (" + e.Message + ")"
	}
	return msg
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// errorBody is the error object embedded in Pesapal responses.
type errorBody struct {
	Type    string `json:"error_type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newAPIError(statusCode int, body *errorBody) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if body != nil {
		apiErr.Type = body.Type
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	return apiErr
}
