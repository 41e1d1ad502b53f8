package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewError(http.StatusNotFound, []byte(`{"error":"app not found"}`))
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "app not found")
}

func TestNewErrorTruncatesBody(t *testing.T) {
	err := NewError(http.StatusInternalServerError, []byte(strings.Repeat("x", 5000)))
	assert.Len(t, err.Body, maxBodySnippet)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "rate limited", err: &Error{StatusCode: 429}, want: true},
		{name: "server error", err: &Error{StatusCode: 503}, want: true},
		{name: "not found", err: &Error{StatusCode: 404}, want: false},
		{name: "unauthorised", err: &Error{StatusCode: 401}, want: false},
		{name: "transport failure", err: errors.New("connection refused"), want: true},
		{name: "context cancelled", err: context.Canceled, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: false},
		{name: "wrapped API error", err: fmt.Errorf("lookup app: %w", &Error{StatusCode: 500}), want: true},
		{name: "wrapped cancellation", err: fmt.Errorf("request failed: %w", context.Canceled), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&Error{StatusCode: 429}))
	assert.True(t, IsRateLimited(fmt.Errorf("fetch rankings: %w", &Error{StatusCode: 429})))
	assert.False(t, IsRateLimited(&Error{StatusCode: 500}))
	assert.False(t, IsRateLimited(errors.New("connection reset")))
}

func TestPolicyDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	p := Policy{MaxAttempts: 3, Backoff: ExponentialBackoff(time.Millisecond)}

	err := p.Do(context.Background(), "test", func(context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicyDoRetriesTransientErrors(t *testing.T) {
	attempts := 0
	p := Policy{MaxAttempts: 5, Backoff: LinearBackoff(time.Millisecond, time.Millisecond)}

	err := p.Do(context.Background(), "test", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &Error{StatusCode: 502}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPolicyDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	p := Policy{MaxAttempts: 5, Backoff: LinearBackoff(time.Millisecond, time.Millisecond)}

	err := p.Do(context.Background(), "test", func(context.Context) error {
		attempts++
		return &Error{StatusCode: 404}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestPolicyDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	p := Policy{MaxAttempts: 3, Backoff: LinearBackoff(time.Millisecond, time.Millisecond)}

	err := p.Do(context.Background(), "test", func(context.Context) error {
		attempts++
		return &Error{StatusCode: 500}
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")

	// The final error still classifies as the underlying API error.
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestPolicyDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	p := Policy{MaxAttempts: 5, Backoff: LinearBackoff(time.Hour, time.Hour)}

	err := p.Do(ctx, "test", func(context.Context) error {
		attempts++
		return &Error{StatusCode: 500}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinearBackoff(t *testing.T) {
	backoff := LinearBackoff(3*time.Second, 10*time.Second)

	assert.Equal(t, 3*time.Second, backoff(1, &Error{StatusCode: 500}))
	assert.Equal(t, 6*time.Second, backoff(2, &Error{StatusCode: 500}))
	assert.Equal(t, 9*time.Second, backoff(3, errors.New("connection reset")))

	// Rate-limited responses wait on the longer schedule.
	assert.Equal(t, 10*time.Second, backoff(1, &Error{StatusCode: 429}))
	assert.Equal(t, 20*time.Second, backoff(2, &Error{StatusCode: 429}))
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(3 * time.Second)

	assert.Equal(t, 3*time.Second, backoff(1, nil))
	assert.Equal(t, 6*time.Second, backoff(2, nil))
	assert.Equal(t, 12*time.Second, backoff(3, nil))
}
