// Package gemini provides a minimal client for the Google Gemini
// generateContent API, used to rewrite app descriptions.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tech-news-daily/apptrack/internal/fetch"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 30 * time.Second
)

// Config holds Gemini client settings.
type Config struct {
	APIKey string
	Model  string // defaults to gemini-2.5-flash
}

// Client provides text generation via the Gemini API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	retry      fetch.Policy
}

// New creates a Gemini client with the given settings.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: fetch.NewHTTPClient(defaultTimeout),
		retry: fetch.Policy{
			MaxAttempts: 3,
			Backoff:     fetch.ExponentialBackoff(3 * time.Second),
		},
	}
}

// GenerateRequest holds one text-generation call.
type GenerateRequest struct {
	Prompt            string
	SystemInstruction string
	MaxOutputTokens   int
	Temperature       float64
	EnableSearch      bool // enable the web-search augmentation tool
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction content          `json:"systemInstruction"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	Tools             []tool           `json:"tools,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateText runs one generation call and returns the concatenated text of
// the first candidate. An empty string with a nil error means the model
// answered without usable content; callers treat that as "no result".
func (c *Client) GenerateText(ctx context.Context, req GenerateRequest) (string, error) {
	body := generateContentRequest{
		Contents:          []content{{Parts: []part{{Text: req.Prompt}}}},
		SystemInstruction: content{Parts: []part{{Text: req.SystemInstruction}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: req.MaxOutputTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.EnableSearch {
		body.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("gemini: failed to marshal request: %w", err)
	}

	requestURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	var text string
	err = c.retry.Do(ctx, "gemini.generate", func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("gemini: failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("gemini: request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("gemini: failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return fetch.NewError(resp.StatusCode, respBody)
		}

		var decoded generateContentResponse
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return fmt.Errorf("gemini: failed to decode response: %w", err)
		}

		text = extractText(decoded)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// extractText joins the text parts of the first candidate with spaces.
func extractText(resp generateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}

	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
