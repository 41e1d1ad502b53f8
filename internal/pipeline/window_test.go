package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewWindow(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

	w := NewWindow(now)

	assert.Equal(t, now, w.FetchDate)
	assert.Equal(t, "2025-03-12", w.End.Format("2006-01-02"))
	assert.Equal(t, "2025-03-06", w.Start.Format("2006-01-02"))
	assert.Equal(t, "2025-03-05", w.PrevEnd.Format("2006-01-02"))
	assert.Equal(t, "2025-02-27", w.PrevStart.Format("2006-01-02"))
}

func TestNewWindowSpansSevenDays(t *testing.T) {
	w := NewWindow(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 6*24*time.Hour, w.End.Sub(w.Start))
	assert.Equal(t, 6*24*time.Hour, w.PrevEnd.Sub(w.PrevStart))
	// The previous window ends the day before the current one starts.
	assert.Equal(t, 24*time.Hour, w.Start.Sub(w.PrevEnd))
}

func TestNewWindowNormalizesToUTC(t *testing.T) {
	sydney := time.FixedZone("AEST", 10*3600)
	now := time.Date(2025, 3, 15, 2, 0, 0, 0, sydney)

	w := NewWindow(now)

	assert.Equal(t, time.UTC, w.FetchDate.Location())
	// 2am on the 15th in Sydney is still the 14th in UTC.
	assert.Equal(t, "2025-03-11", w.End.Format("2006-01-02"))
}

func TestWindowDates(t *testing.T) {
	w := NewWindow(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))

	start, end := w.Dates()
	assert.Equal(t, "2025-03-06", start)
	assert.Equal(t, "2025-03-12", end)
}
