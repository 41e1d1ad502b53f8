package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/tech-news-daily/apptrack/internal/pipeline"
)

// tableForKind maps a download ranking list to its snapshot table.
func tableForKind(kind pipeline.ListKind) (string, error) {
	switch kind {
	case pipeline.ListDownloads:
		return tableDownloads, nil
	case pipeline.ListGrowth:
		return tableGrowth, nil
	case pipeline.ListDelta:
		return tableDelta, nil
	default:
		return "", fmt.Errorf("no snapshot table for list kind %q", kind)
	}
}

// storedPct converts a percent-change ratio to the stored percentage value,
// rounded to two decimal places.
func storedPct(ratio float64) float64 {
	return math.Round(ratio*10000) / 100
}

// ReplaceDownloadList replaces one download list's snapshot table. Returns
// the number of rows inserted; an error means some rows could not be
// written even row-by-row, so the count may be lower than len(rows).
func (s *Store) ReplaceDownloadList(ctx context.Context, kind pipeline.ListKind, rows []pipeline.Row) (int, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	s.clearTable(ctx, table)

	inserted := 0
	for start := 0; start < len(rows); start += batchSize {
		batch := rows[start:min(start+batchSize, len(rows))]

		if err := s.insertDownloadBatch(ctx, table, batch); err != nil {
			log.Warn().
				Err(err).
				Str("table", table).
				Int("batch_size", len(batch)).
				Msg("Batch insert failed, retrying row-by-row")
			inserted += s.insertDownloadRows(ctx, table, batch)
			continue
		}
		inserted += len(batch)
	}

	log.Info().
		Str("table", table).
		Int("rows_inserted", inserted).
		Int("rows_total", len(rows)).
		Msg("Replaced snapshot table")

	if inserted < len(rows) {
		return inserted, fmt.Errorf("inserted %d of %d rows into %s", inserted, len(rows), table)
	}
	return inserted, nil
}

// ReplaceAdvertisers replaces the advertiser snapshot table.
func (s *Store) ReplaceAdvertisers(ctx context.Context, rows []pipeline.AdvertiserRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.clearTable(ctx, tableAdvertisers)

	inserted := 0
	for start := 0; start < len(rows); start += batchSize {
		batch := rows[start:min(start+batchSize, len(rows))]

		if err := s.insertAdvertiserBatch(ctx, batch); err != nil {
			log.Warn().
				Err(err).
				Str("table", tableAdvertisers).
				Int("batch_size", len(batch)).
				Msg("Batch insert failed, retrying row-by-row")
			inserted += s.insertAdvertiserRows(ctx, batch)
			continue
		}
		inserted += len(batch)
	}

	log.Info().
		Str("table", tableAdvertisers).
		Int("rows_inserted", inserted).
		Int("rows_total", len(rows)).
		Msg("Replaced snapshot table")

	if inserted < len(rows) {
		return inserted, fmt.Errorf("inserted %d of %d rows into %s", inserted, len(rows), tableAdvertisers)
	}
	return inserted, nil
}

// clearTable deletes the previous snapshot. A failed delete is not fatal:
// the insert path still runs, so stale rows can coexist with fresh ones
// rather than the run losing the fresh snapshot entirely.
func (s *Store) clearTable(ctx context.Context, table string) {
	result, err := s.client.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		log.Warn().
			Err(err).
			Str("table", table).
			Msg("Failed to clear table before insert")
		return
	}

	deleted, _ := result.RowsAffected()
	log.Debug().
		Str("table", table).
		Int64("rows_deleted", deleted).
		Msg("Cleared previous snapshot")
}

// insertDownloadBatch inserts one batch with a single multi-row statement.
func (s *Store) insertDownloadBatch(ctx context.Context, table string, rows []pipeline.Row) error {
	n := len(rows)
	fetchDates := make([]time.Time, n)
	periodStarts := make([]time.Time, n)
	periodEnds := make([]time.Time, n)
	prevStarts := make([]time.Time, n)
	prevEnds := make([]time.Time, n)
	ranks := make([]int, n)
	appIDs := make([]string, n)
	appNames := make([]string, n)
	publishers := make([]string, n)
	iconURLs := make([]string, n)
	iosStoreURLs := make([]string, n)
	androidStoreURLs := make([]string, n)
	downloads := make([]int64, n)
	previousDownloads := make([]int64, n)
	deltas := make([]int64, n)
	pctChanges := make([]float64, n)
	descriptions := make([]string, n)

	for i, row := range rows {
		fetchDates[i] = row.FetchDate
		periodStarts[i] = row.Start
		periodEnds[i] = row.End
		prevStarts[i] = row.PrevStart
		prevEnds[i] = row.PrevEnd
		ranks[i] = row.Rank
		appIDs[i] = row.AppID
		appNames[i] = row.Meta.Name
		publishers[i] = row.Meta.Publisher
		iconURLs[i] = row.Meta.IconURL
		iosStoreURLs[i] = row.Meta.IOSStoreURL
		androidStoreURLs[i] = row.Meta.AndroidStoreURL
		downloads[i] = row.Metric.Downloads
		previousDownloads[i] = row.Metric.PreviousDownloads
		deltas[i] = row.Metric.Delta
		pctChanges[i] = storedPct(row.Metric.PctChange)
		descriptions[i] = row.Meta.Description
	}

	query := `
		INSERT INTO ` + table + ` (
			fetch_date, period_start, period_end, prev_period_start, prev_period_end,
			rank, app_id, app_name, publisher, icon_url, ios_store_url, android_store_url,
			downloads, previous_downloads, download_delta, download_pct_change, app_description
		)
		SELECT
			unnest($1::date[]),
			unnest($2::date[]),
			unnest($3::date[]),
			unnest($4::date[]),
			unnest($5::date[]),
			unnest($6::integer[]),
			unnest($7::text[]),
			unnest($8::text[]),
			unnest($9::text[]),
			unnest($10::text[]),
			unnest($11::text[]),
			unnest($12::text[]),
			unnest($13::bigint[]),
			unnest($14::bigint[]),
			unnest($15::bigint[]),
			unnest($16::numeric[]),
			unnest($17::text[])
	`

	_, err := s.client.ExecContext(ctx, query,
		pq.Array(fetchDates),
		pq.Array(periodStarts),
		pq.Array(periodEnds),
		pq.Array(prevStarts),
		pq.Array(prevEnds),
		pq.Array(ranks),
		pq.Array(appIDs),
		pq.Array(appNames),
		pq.Array(publishers),
		pq.Array(iconURLs),
		pq.Array(iosStoreURLs),
		pq.Array(androidStoreURLs),
		pq.Array(downloads),
		pq.Array(previousDownloads),
		pq.Array(deltas),
		pq.Array(pctChanges),
		pq.Array(descriptions),
	)
	return err
}

// insertDownloadRows inserts rows one at a time, isolating bad rows so the
// rest of the batch still lands. Returns the number inserted.
func (s *Store) insertDownloadRows(ctx context.Context, table string, rows []pipeline.Row) int {
	query := `
		INSERT INTO ` + table + ` (
			fetch_date, period_start, period_end, prev_period_start, prev_period_end,
			rank, app_id, app_name, publisher, icon_url, ios_store_url, android_store_url,
			downloads, previous_downloads, download_delta, download_pct_change, app_description
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	inserted := 0
	for _, row := range rows {
		_, err := s.client.ExecContext(ctx, query,
			row.FetchDate, row.Start, row.End, row.PrevStart, row.PrevEnd,
			row.Rank, row.AppID, row.Meta.Name, row.Meta.Publisher, row.Meta.IconURL,
			row.Meta.IOSStoreURL, row.Meta.AndroidStoreURL,
			row.Metric.Downloads, row.Metric.PreviousDownloads, row.Metric.Delta,
			storedPct(row.Metric.PctChange), row.Meta.Description,
		)
		if err != nil {
			log.Error().
				Err(err).
				Str("table", table).
				Str("app_id", row.AppID).
				Int("rank", row.Rank).
				Msg("Row insert failed, skipping row")
			sentry.CaptureException(fmt.Errorf("row insert for app %s into %s failed: %w", row.AppID, table, err))
			continue
		}
		inserted++
	}
	return inserted
}

func (s *Store) insertAdvertiserBatch(ctx context.Context, rows []pipeline.AdvertiserRow) error {
	n := len(rows)
	fetchDates := make([]time.Time, n)
	periodStarts := make([]time.Time, n)
	ranks := make([]int, n)
	appIDs := make([]string, n)
	appNames := make([]string, n)
	publishers := make([]string, n)
	iconURLs := make([]string, n)
	iosStoreURLs := make([]string, n)
	androidStoreURLs := make([]string, n)
	shares := make([]float64, n)
	descriptions := make([]string, n)

	for i, row := range rows {
		fetchDates[i] = row.FetchDate
		periodStarts[i] = row.Start
		ranks[i] = row.Rank
		appIDs[i] = row.AppID
		appNames[i] = row.Meta.Name
		publishers[i] = row.Meta.Publisher
		iconURLs[i] = row.Meta.IconURL
		iosStoreURLs[i] = row.Meta.IOSStoreURL
		androidStoreURLs[i] = row.Meta.AndroidStoreURL
		shares[i] = row.ShareOfVoice
		descriptions[i] = row.Meta.Description
	}

	query := `
		INSERT INTO ` + tableAdvertisers + ` (
			fetch_date, period_start, rank, app_id, app_name, publisher,
			icon_url, ios_store_url, android_store_url, sov, app_description
		)
		SELECT
			unnest($1::date[]),
			unnest($2::date[]),
			unnest($3::integer[]),
			unnest($4::text[]),
			unnest($5::text[]),
			unnest($6::text[]),
			unnest($7::text[]),
			unnest($8::text[]),
			unnest($9::text[]),
			unnest($10::numeric[]),
			unnest($11::text[])
	`

	_, err := s.client.ExecContext(ctx, query,
		pq.Array(fetchDates),
		pq.Array(periodStarts),
		pq.Array(ranks),
		pq.Array(appIDs),
		pq.Array(appNames),
		pq.Array(publishers),
		pq.Array(iconURLs),
		pq.Array(iosStoreURLs),
		pq.Array(androidStoreURLs),
		pq.Array(shares),
		pq.Array(descriptions),
	)
	return err
}

func (s *Store) insertAdvertiserRows(ctx context.Context, rows []pipeline.AdvertiserRow) int {
	query := `
		INSERT INTO ` + tableAdvertisers + ` (
			fetch_date, period_start, rank, app_id, app_name, publisher,
			icon_url, ios_store_url, android_store_url, sov, app_description
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	inserted := 0
	for _, row := range rows {
		_, err := s.client.ExecContext(ctx, query,
			row.FetchDate, row.Start, row.Rank, row.AppID,
			row.Meta.Name, row.Meta.Publisher, row.Meta.IconURL,
			row.Meta.IOSStoreURL, row.Meta.AndroidStoreURL,
			row.ShareOfVoice, row.Meta.Description,
		)
		if err != nil {
			log.Error().
				Err(err).
				Str("table", tableAdvertisers).
				Str("app_id", row.AppID).
				Int("rank", row.Rank).
				Msg("Row insert failed, skipping row")
			sentry.CaptureException(fmt.Errorf("row insert for app %s into %s failed: %w", row.AppID, tableAdvertisers, err))
			continue
		}
		inserted++
	}
	return inserted
}
