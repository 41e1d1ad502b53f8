package pipeline

import (
	"time"

	"github.com/tech-news-daily/apptrack/internal/metadata"
)

// ListKind names one of the four ranking lists a run produces.
type ListKind string

const (
	ListDownloads   ListKind = "downloads"
	ListGrowth      ListKind = "download_growth"
	ListDelta       ListKind = "download_delta"
	ListAdvertisers ListKind = "advertisers"
)

// AggregatedMetric is one item's unified metric set. The integer fields are
// daily averages over the ranking window; PctChange stays a plain ratio
// until row assembly scales it for storage.
type AggregatedMetric struct {
	Downloads         int64
	PreviousDownloads int64
	Delta             int64
	PctChange         float64
}

// Row is one output row of a download ranking list.
type Row struct {
	Window
	Rank   int
	AppID  string
	Metric AggregatedMetric
	Meta   metadata.AppMetadata
}

// AdvertiserRow is one output row of the advertiser ranking list, which
// carries a share-of-voice estimate instead of download metrics.
type AdvertiserRow struct {
	Window
	Rank         int
	AppID        string
	ShareOfVoice float64
	Meta         metadata.AppMetadata
}

// ListResult records one list's outcome within a run.
type ListResult struct {
	Kind    ListKind
	Rows    int  // rows persisted
	Skipped bool // list unavailable, nothing persisted
	Err     error
}

// RunReport summarises one pipeline run for logging, metrics and
// notifications.
type RunReport struct {
	RunID    string
	Window   Window
	Started  time.Time
	Duration time.Duration
	Lists    []ListResult
}

// AllFailed reports whether no list produced any persisted rows.
func (r RunReport) AllFailed() bool {
	for _, list := range r.Lists {
		if !list.Skipped && list.Err == nil {
			return false
		}
	}
	return true
}

// Status classifies the run outcome: "ok" when every list persisted,
// "failed" when none did, "partial" otherwise.
func (r RunReport) Status() string {
	if r.AllFailed() {
		return "failed"
	}
	for _, list := range r.Lists {
		if list.Skipped || list.Err != nil {
			return "partial"
		}
	}
	return "ok"
}
