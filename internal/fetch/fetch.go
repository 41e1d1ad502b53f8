// Package fetch provides the retry policy and error classification shared by
// the outbound API clients (rankings, metadata and text generation).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodySnippet caps how much of an error response body is kept on the error.
const maxBodySnippet = 200

// Error represents a non-2xx response from an upstream API.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// NewError builds an Error from a response status and body, keeping only a
// snippet of the body.
func NewError(statusCode int, body []byte) *Error {
	snippet := string(body)
	if len(snippet) > maxBodySnippet {
		snippet = snippet[:maxBodySnippet]
	}
	return &Error{StatusCode: statusCode, Body: snippet}
}

// IsRateLimited reports whether err is an upstream 429 response.
func IsRateLimited(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth another attempt: rate limits,
// server-side errors and transport failures are; other client errors and
// cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	// Anything that never produced a response is a transport failure.
	return true
}

// NewHTTPClient returns an http.Client with outbound OpenTelemetry
// instrumentation and the given per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
