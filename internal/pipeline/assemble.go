package pipeline

import (
	"github.com/tech-news-daily/apptrack/internal/metadata"
	"github.com/tech-news-daily/apptrack/internal/sensortower"
)

// AssembleRows joins one ranking list with its resolved metadata into output
// rows, strictly in the list's rank order. An identifier missing from the
// mapping degrades to the sentinel record, so the row count always matches
// the (capped) input length.
func AssembleRows(items []sensortower.RankedItem, w Window, meta map[sensortower.AppID]metadata.AppMetadata, limit int) []Row {
	items = capItems(items, limit)

	rows := make([]Row, len(items))
	for i, item := range items {
		m, ok := meta[item.AppID]
		if !ok {
			m = metadata.Sentinel()
		}

		rows[i] = Row{
			Window: w,
			Rank:   i + 1,
			AppID:  string(item.AppID),
			Metric: Aggregate(item),
			Meta:   m,
		}
	}
	return rows
}

// AssembleAdvertiserRows joins the advertiser feed with resolved metadata.
// The feed carries its own name/publisher/icon, which fill in whenever the
// resolver came back unknown. Advertiser identifiers are often platform
// identifiers the unified endpoint cannot resolve.
func AssembleAdvertiserRows(apps []sensortower.AdvertiserApp, w Window, meta map[sensortower.AppID]metadata.AppMetadata, limit int) []AdvertiserRow {
	apps = capItems(apps, limit)

	rows := make([]AdvertiserRow, len(apps))
	for i, app := range apps {
		m, ok := meta[app.AppID]
		if !ok {
			m = metadata.Sentinel()
		}

		if m.Name == metadata.UnknownName && app.DisplayName() != "" {
			m.Name = app.DisplayName()
		}
		if m.Publisher == metadata.UnknownPublisher && app.PublisherName != "" {
			m.Publisher = app.PublisherName
		}
		if m.IconURL == "" {
			m.IconURL = app.IconURL
		}

		rows[i] = AdvertiserRow{
			Window:       w,
			Rank:         i + 1,
			AppID:        string(app.AppID),
			ShareOfVoice: app.ShareOfVoice,
			Meta:         m,
		}
	}
	return rows
}

func capItems[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
