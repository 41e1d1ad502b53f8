package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech-news-daily/apptrack/internal/fetch"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(Config{APIKey: "test-key"})
	client.baseURL = server.URL
	client.retry = fetch.Policy{
		MaxAttempts: 3,
		Backoff:     fetch.ExponentialBackoff(time.Millisecond),
	}
	return client
}

func TestGenerateText(t *testing.T) {
	var gotBody generateContentRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Write([]byte(`{"candidates": [{"content": {"parts": [
			{"text": "[{\"index\": 1,"},
			{"text": "\"summary\": \"Two sentences.\"}]"}
		]}}]}`))
	})

	text, err := client.GenerateText(context.Background(), GenerateRequest{
		Prompt:            "Summarise these apps",
		SystemInstruction: "You are a reviewer",
		MaxOutputTokens:   4000,
		Temperature:       0.3,
		EnableSearch:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, `[{"index": 1, "summary": "Two sentences."}]`, text)

	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "Summarise these apps", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, "You are a reviewer", gotBody.SystemInstruction.Parts[0].Text)
	assert.Equal(t, 4000, gotBody.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 0.3, gotBody.GenerationConfig.Temperature)
	require.Len(t, gotBody.Tools, 1)
	assert.NotNil(t, gotBody.Tools[0].GoogleSearch)
}

func TestGenerateTextWithoutSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "tools")

		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`))
	})

	text, err := client.GenerateText(context.Background(), GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerateTextRetriesServerErrors(t *testing.T) {
	var requests atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "recovered"}]}}]}`))
	})

	text, err := client.GenerateText(context.Background(), GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(3), requests.Load())
}

func TestGenerateTextPermanentErrorFailsFast(t *testing.T) {
	var requests atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid request"}}`))
	})

	_, err := client.GenerateText(context.Background(), GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestGenerateTextNoCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	text, err := client.GenerateText(context.Background(), GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Empty(t, text)
}
