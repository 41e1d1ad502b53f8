// Package pipeline orchestrates one ranking run: window computation, feed
// fetches, metadata fan-out, aggregation, summarization and persistence.
package pipeline

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tech-news-daily/apptrack/internal/metadata"
	"github.com/tech-news-daily/apptrack/internal/observability"
	"github.com/tech-news-daily/apptrack/internal/sensortower"
	"github.com/tech-news-daily/apptrack/internal/summarize"
)

const (
	// defaultListSize is how many ranked rows each list keeps.
	defaultListSize = 15

	// defaultAdvertiserFetchSize oversizes the advertiser feed request;
	// the feed is capped to the list size locally.
	defaultAdvertiserFetchSize = 25

	// maxConcurrentSummaries bounds concurrent text-generation calls, one
	// per ranking list.
	maxConcurrentSummaries = 4
)

// RankingSource supplies the ranking and advertiser feeds.
type RankingSource interface {
	FetchRankings(ctx context.Context, attr sensortower.RankingAttribute, start, end time.Time, limit int) ([]sensortower.RankedItem, error)
	FetchTopAdvertisers(ctx context.Context, date time.Time, limit int) ([]sensortower.AdvertiserApp, error)
}

// MetadataResolver resolves identifiers to display metadata, deduplicating
// and caching internally.
type MetadataResolver interface {
	ResolveAll(ctx context.Context, ids []sensortower.AppID) map[sensortower.AppID]metadata.AppMetadata
}

// DescriptionSummarizer rewrites a list's descriptions, returning one final
// description per item in order.
type DescriptionSummarizer interface {
	Summarize(ctx context.Context, items []summarize.Item) []string
}

// SnapshotStore replaces a table's contents with a fresh ranking snapshot.
type SnapshotStore interface {
	ReplaceDownloadList(ctx context.Context, kind ListKind, rows []Row) (int, error)
	ReplaceAdvertisers(ctx context.Context, rows []AdvertiserRow) (int, error)
}

// Config holds pipeline settings.
type Config struct {
	ListSize            int // ranked rows kept per list
	AdvertiserFetchSize int // advertiser feed request size
}

// Runner wires the feeds, resolver, summarizer and sink into one run.
type Runner struct {
	source     RankingSource
	resolver   MetadataResolver
	summarizer DescriptionSummarizer
	store      SnapshotStore
	cfg        Config
}

// NewRunner creates a runner over the given components.
func NewRunner(source RankingSource, resolver MetadataResolver, summarizer DescriptionSummarizer, store SnapshotStore, cfg Config) *Runner {
	if cfg.ListSize <= 0 {
		cfg.ListSize = defaultListSize
	}
	if cfg.AdvertiserFetchSize <= 0 {
		cfg.AdvertiserFetchSize = defaultAdvertiserFetchSize
	}

	return &Runner{
		source:     source,
		resolver:   resolver,
		summarizer: summarizer,
		store:      store,
		cfg:        cfg,
	}
}

// Run executes one full ranking run for the given wall-clock time and
// reports the per-list outcomes. A failed list is skipped; the remaining
// lists proceed independently, so Run itself never fails mid-way.
func (r *Runner) Run(ctx context.Context, now time.Time) RunReport {
	started := time.Now()
	w := NewWindow(now)
	runID := uuid.New().String()

	ctx, runSpan := observability.StartPhaseSpan(ctx, observability.PhaseSpanInfo{RunID: runID, Phase: "run"})
	defer runSpan.End()

	startStr, endStr := w.Dates()
	log.Info().
		Str("run_id", runID).
		Str("window_start", startStr).
		Str("window_end", endStr).
		Int("list_size", r.cfg.ListSize).
		Msg("Starting ranking run")

	// The feed fetches are cheap single-shot calls, issued sequentially
	// before any fan-out begins.
	downloads, downloadsErr := r.fetchRanking(ctx, ListDownloads, sensortower.AttributeAbsolute, w)
	growth, growthErr := r.fetchRanking(ctx, ListGrowth, sensortower.AttributeTransformedDelta, w)
	advertisers, advertisersErr := r.fetchAdvertisers(ctx, w)
	delta, deltaErr := r.fetchRanking(ctx, ListDelta, sensortower.AttributeDelta, w)

	resolveCtx, resolveSpan := observability.StartPhaseSpan(ctx, observability.PhaseSpanInfo{Phase: "resolve"})
	meta := r.resolver.ResolveAll(resolveCtx, unionIDs(downloads, growth, delta, advertisers))
	resolveSpan.End()

	downloadRows := AssembleRows(downloads, w, meta, r.cfg.ListSize)
	growthRows := AssembleRows(growth, w, meta, r.cfg.ListSize)
	deltaRows := AssembleRows(delta, w, meta, r.cfg.ListSize)
	advertiserRows := AssembleAdvertiserRows(advertisers, w, meta, r.cfg.ListSize)

	summarizeCtx, summarizeSpan := observability.StartPhaseSpan(ctx, observability.PhaseSpanInfo{Phase: "summarize"})
	var g errgroup.Group
	g.SetLimit(maxConcurrentSummaries)
	for _, rows := range [][]Row{downloadRows, growthRows, deltaRows} {
		g.Go(func() error {
			r.summarizeRows(summarizeCtx, rows)
			return nil
		})
	}
	g.Go(func() error {
		r.summarizeAdvertiserRows(summarizeCtx, advertiserRows)
		return nil
	})
	_ = g.Wait()
	summarizeSpan.End()

	report := RunReport{
		RunID:   runID,
		Window:  w,
		Started: started,
		Lists: []ListResult{
			r.persistList(ctx, ListDownloads, downloadRows, downloadsErr),
			r.persistList(ctx, ListGrowth, growthRows, growthErr),
			r.persistAdvertisers(ctx, advertiserRows, advertisersErr),
			r.persistList(ctx, ListDelta, deltaRows, deltaErr),
		},
	}
	report.Duration = time.Since(started)
	observability.RecordRun(ctx, observability.RunMetrics{Status: report.Status(), Duration: report.Duration})

	persisted := 0
	for _, list := range report.Lists {
		persisted += list.Rows
	}
	log.Info().
		Str("run_id", runID).
		Str("status", report.Status()).
		Dur("duration", report.Duration).
		Int("rows_persisted", persisted).
		Msg("Ranking run complete")

	return report
}

func (r *Runner) fetchRanking(ctx context.Context, kind ListKind, attr sensortower.RankingAttribute, w Window) ([]sensortower.RankedItem, error) {
	ctx, span := observability.StartPhaseSpan(ctx, observability.PhaseSpanInfo{Phase: "fetch", List: string(kind)})
	defer span.End()

	items, err := r.source.FetchRankings(ctx, attr, w.Start, w.End, r.cfg.ListSize)
	if err != nil {
		log.Error().
			Err(err).
			Str("list", string(kind)).
			Msg("Ranking list fetch failed, skipping list")
		sentry.CaptureException(err)
		return nil, err
	}

	log.Info().
		Str("list", string(kind)).
		Int("items", len(items)).
		Msg("Fetched ranking list")
	return capItems(items, r.cfg.ListSize), nil
}

func (r *Runner) fetchAdvertisers(ctx context.Context, w Window) ([]sensortower.AdvertiserApp, error) {
	ctx, span := observability.StartPhaseSpan(ctx, observability.PhaseSpanInfo{Phase: "fetch", List: string(ListAdvertisers)})
	defer span.End()

	apps, err := r.source.FetchTopAdvertisers(ctx, w.End, r.cfg.AdvertiserFetchSize)
	if err != nil {
		log.Error().
			Err(err).
			Str("list", string(ListAdvertisers)).
			Msg("Advertiser feed fetch failed, skipping list")
		sentry.CaptureException(err)
		return nil, err
	}

	log.Info().
		Str("list", string(ListAdvertisers)).
		Int("items", len(apps)).
		Msg("Fetched advertiser feed")
	return capItems(apps, r.cfg.ListSize), nil
}

// unionIDs collects the identifiers of every capped list. The resolver
// deduplicates, so one identifier appearing on several lists resolves once.
func unionIDs(downloads, growth, delta []sensortower.RankedItem, advertisers []sensortower.AdvertiserApp) []sensortower.AppID {
	ids := make([]sensortower.AppID, 0, len(downloads)+len(growth)+len(delta)+len(advertisers))
	for _, list := range [][]sensortower.RankedItem{downloads, growth, delta} {
		for _, item := range list {
			ids = append(ids, item.AppID)
		}
	}
	for _, app := range advertisers {
		ids = append(ids, app.AppID)
	}
	return ids
}

// summarizeRows rewrites one list's descriptions in place, by row index.
func (r *Runner) summarizeRows(ctx context.Context, rows []Row) {
	if len(rows) == 0 {
		return
	}

	items := make([]summarize.Item, len(rows))
	for i, row := range rows {
		items[i] = summarize.Item{Name: row.Meta.Name, Description: row.Meta.Description}
	}
	for i, description := range r.summarizer.Summarize(ctx, items) {
		rows[i].Meta.Description = description
	}
}

func (r *Runner) summarizeAdvertiserRows(ctx context.Context, rows []AdvertiserRow) {
	if len(rows) == 0 {
		return
	}

	items := make([]summarize.Item, len(rows))
	for i, row := range rows {
		items[i] = summarize.Item{Name: row.Meta.Name, Description: row.Meta.Description}
	}
	for i, description := range r.summarizer.Summarize(ctx, items) {
		rows[i].Meta.Description = description
	}
}

// persistList replaces one download list's table contents. An empty list is
// never persisted: existing rows are left in place rather than cleared.
func (r *Runner) persistList(ctx context.Context, kind ListKind, rows []Row, fetchErr error) ListResult {
	if fetchErr != nil {
		observability.RecordList(ctx, observability.ListMetrics{List: string(kind), Status: "failed"})
		return ListResult{Kind: kind, Skipped: true, Err: fetchErr}
	}
	if len(rows) == 0 {
		log.Warn().
			Str("list", string(kind)).
			Msg("Ranking list came back empty, keeping existing table contents")
		observability.RecordList(ctx, observability.ListMetrics{List: string(kind), Status: "skipped"})
		return ListResult{Kind: kind, Skipped: true}
	}

	ctx, span := observability.StartPhaseSpan(ctx, observability.PhaseSpanInfo{Phase: "persist", List: string(kind)})
	defer span.End()

	count, err := r.store.ReplaceDownloadList(ctx, kind, rows)
	if err != nil {
		log.Error().
			Err(err).
			Str("list", string(kind)).
			Int("rows_inserted", count).
			Msg("Failed to persist ranking list")
		sentry.CaptureException(err)
		observability.RecordList(ctx, observability.ListMetrics{List: string(kind), Status: "failed", Rows: count})
		return ListResult{Kind: kind, Rows: count, Err: err}
	}

	observability.RecordList(ctx, observability.ListMetrics{List: string(kind), Status: "ok", Rows: count})
	return ListResult{Kind: kind, Rows: count}
}

func (r *Runner) persistAdvertisers(ctx context.Context, rows []AdvertiserRow, fetchErr error) ListResult {
	if fetchErr != nil {
		observability.RecordList(ctx, observability.ListMetrics{List: string(ListAdvertisers), Status: "failed"})
		return ListResult{Kind: ListAdvertisers, Skipped: true, Err: fetchErr}
	}
	if len(rows) == 0 {
		log.Warn().
			Str("list", string(ListAdvertisers)).
			Msg("Advertiser list came back empty, keeping existing table contents")
		observability.RecordList(ctx, observability.ListMetrics{List: string(ListAdvertisers), Status: "skipped"})
		return ListResult{Kind: ListAdvertisers, Skipped: true}
	}

	ctx, span := observability.StartPhaseSpan(ctx, observability.PhaseSpanInfo{Phase: "persist", List: string(ListAdvertisers)})
	defer span.End()

	count, err := r.store.ReplaceAdvertisers(ctx, rows)
	if err != nil {
		log.Error().
			Err(err).
			Str("list", string(ListAdvertisers)).
			Int("rows_inserted", count).
			Msg("Failed to persist advertiser list")
		sentry.CaptureException(err)
		observability.RecordList(ctx, observability.ListMetrics{List: string(ListAdvertisers), Status: "failed", Rows: count})
		return ListResult{Kind: ListAdvertisers, Rows: count, Err: err}
	}

	observability.RecordList(ctx, observability.ListMetrics{List: string(ListAdvertisers), Status: "ok", Rows: count})
	return ListResult{Kind: ListAdvertisers, Rows: count}
}
