package pipeline

import (
	"math"

	"github.com/tech-news-daily/apptrack/internal/sensortower"
)

// Aggregate reduces an item's per-platform metric fragments into one unified
// daily-average metric set. Items without a fragment list carry their metrics
// at the top level and are treated as a single implicit fragment.
//
// Percent change is always computed from un-normalized totals: a ratio of
// pre-rounded averages would amplify rounding error, and dividing numerator
// and denominator by the window length cancels out anyway. When the previous
// total is empty the pre-computed relative change of the first fragment is
// used, or 0 if there is none.
func Aggregate(item sensortower.RankedItem) AggregatedMetric {
	if len(item.Entities) == 0 {
		return AggregatedMetric{
			Downloads:         dailyAverage(item.Absolute()),
			PreviousDownloads: dailyAverage(item.Comparison()),
			Delta:             dailyAverage(item.Delta()),
			PctChange:         item.TransformedDelta(),
		}
	}

	var totalDownloads, totalPrevious, totalDelta float64
	for _, entity := range item.Entities {
		totalDownloads += entity.Absolute()
		totalPrevious += entity.Comparison()
		totalDelta += entity.Delta()
	}

	var pctChange float64
	if totalPrevious > 0 {
		pctChange = totalDelta / totalPrevious
	} else {
		pctChange = item.Entities[0].TransformedDelta()
	}

	return AggregatedMetric{
		Downloads:         dailyAverage(totalDownloads),
		PreviousDownloads: dailyAverage(totalPrevious),
		Delta:             dailyAverage(totalDelta),
		PctChange:         pctChange,
	}
}

// dailyAverage converts a window total into a rounded per-day figure.
func dailyAverage(total float64) int64 {
	return int64(math.Round(total / windowDays))
}
