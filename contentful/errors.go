package contentful

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrMissingSpace is returned by New when no space id is configured
	ErrMissingSpace = errors.New("contentful: space id is required")
	// ErrMissingToken is returned by New when a token is not configured
	ErrMissingToken = errors.New("contentful: delivery and management tokens are required")
)

// APIError is a non-2xx response from one of the CMS APIs
type APIError struct {
	StatusCode int    `json:"-"`
	URL        string `json:"-"`
	ID         string `json:"-"`
	RequestID  string `json:"requestId"`
	Message    string `json:"message"`

	retryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}

	if e.ID != "" {
		msg = fmt.Sprintf("%s: %s", e.ID, msg)
	}

	if e.RequestID != "" {
		return fmt.Sprintf("contentful: %d %s (request %s)", e.StatusCode, msg, e.RequestID)
	}
	return fmt.Sprintf("contentful: %d %s", e.StatusCode, msg)
}

// Temporary is true for rate limited and server side failures
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// newAPIError builds an APIError from a response body, tolerating bodies
// that are not the documented error shape
func newAPIError(statusCode int, url, requestID string, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		URL:        url,
		RequestID:  requestID,
	}

	var raw struct {
		Sys struct {
			ID string `json:"id"`
		} `json:"sys"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	}

	if err := json.Unmarshal(body, &raw); err == nil {
		apiErr.ID = raw.Sys.ID
		apiErr.Message = raw.Message
		if raw.RequestID != "" {
			apiErr.RequestID = raw.RequestID
		}
	}

	return apiErr
}

// isBreakerSuccess reports whether a call outcome should count as a success
// for the circuit breaker. Client errors such as 404 mean the API is healthy.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}
