// Package sensortower provides a rate-limited client for the Sensor Tower
// unified app intelligence API. All calls share one pacing limiter so that
// concurrent metadata lookups never exceed the account's request spacing,
// and all calls retry transient failures through the shared fetch policy.
package sensortower

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tech-news-daily/apptrack/internal/fetch"
)

const (
	defaultBaseURL     = "https://api.sensortower.com"
	defaultTimeout     = 60 * time.Second
	defaultMinInterval = 300 * time.Millisecond

	dateFormat = "2006-01-02"
)

// RankingAttribute selects which comparison metric a ranking query sorts by.
type RankingAttribute string

const (
	AttributeAbsolute         RankingAttribute = "absolute"
	AttributeTransformedDelta RankingAttribute = "transformed_delta"
	AttributeDelta            RankingAttribute = "delta"
)

// Config holds Sensor Tower client settings.
type Config struct {
	AuthToken   string
	MinInterval time.Duration // minimum spacing between API calls, shared across callers
}

// Client provides methods to query rankings and app metadata.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      fetch.Policy
}

// New creates a Sensor Tower client with the given settings.
func New(cfg Config) *Client {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultMinInterval
	}

	return &Client{
		baseURL:    defaultBaseURL,
		authToken:  cfg.AuthToken,
		httpClient: fetch.NewHTTPClient(defaultTimeout),
		limiter:    rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		retry: fetch.Policy{
			MaxAttempts: 5,
			Backoff:     fetch.LinearBackoff(3*time.Second, 10*time.Second),
		},
	}
}

// FetchRankings returns the top apps for one ranking attribute over the
// 7-day window [start, end], in rank order (rank = position + 1).
func (c *Client) FetchRankings(ctx context.Context, attr RankingAttribute, start, end time.Time, limit int) ([]RankedItem, error) {
	params := url.Values{}
	params.Set("comparison_attribute", string(attr))
	params.Set("time_range", "day")
	params.Set("measure", "units")
	params.Set("category", "0")
	params.Set("date", start.Format(dateFormat))
	params.Set("end_date", end.Format(dateFormat))
	params.Set("device_type", "total")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("regions", "WW")

	var items []RankedItem
	if err := c.get(ctx, "/v1/unified/sales_report_estimates_comparison_attributes", params, &items); err != nil {
		return nil, fmt.Errorf("failed to fetch %s rankings: %w", attr, err)
	}
	return items, nil
}

// FetchTopAdvertisers returns the advertiser intel feed for the week ending
// at date. The feed is already ranked; callers cap it to their own limit.
func (c *Client) FetchTopAdvertisers(ctx context.Context, date time.Time, limit int) ([]AdvertiserApp, error) {
	params := url.Values{}
	params.Set("role", "advertisers")
	params.Set("date", date.Format(dateFormat))
	params.Set("period", "week")
	params.Set("category", "0")
	params.Set("country", "US")
	params.Set("network", "All Networks")
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Apps []AdvertiserApp `json:"apps"`
	}
	if err := c.get(ctx, "/v1/unified/ad_intel/top_apps", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch top advertisers: %w", err)
	}
	return resp.Apps, nil
}

// GetUnifiedApp returns the cross-platform metadata record for one app.
func (c *Client) GetUnifiedApp(ctx context.Context, id AppID) (*UnifiedApp, error) {
	var app UnifiedApp
	if err := c.get(ctx, "/v1/unified/apps/"+url.PathEscape(string(id)), nil, &app); err != nil {
		return nil, fmt.Errorf("failed to fetch unified app %s: %w", id, err)
	}
	return &app, nil
}

// GetPlatformApp returns the platform-specific detail record for one sub-app.
func (c *Client) GetPlatformApp(ctx context.Context, os string, id AppID) (*PlatformApp, error) {
	path := fmt.Sprintf("/v1/%s/apps/%s", url.PathEscape(os), url.PathEscape(string(id)))

	var app PlatformApp
	if err := c.get(ctx, path, nil, &app); err != nil {
		return nil, fmt.Errorf("failed to fetch %s app %s: %w", os, id, err)
	}
	return &app, nil
}

// get performs one retried GET against the API, decoding the response into
// out. The pacing limiter is awaited before every attempt, retries included.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("auth_token", c.authToken)

	requestURL := c.baseURL + path + "?" + params.Encode()

	return c.retry.Do(ctx, "sensortower"+path, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return fetch.NewError(resp.StatusCode, body)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
