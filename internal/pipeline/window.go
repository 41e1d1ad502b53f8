package pipeline

import "time"

const (
	// windowDays is the length of the ranking window; metric totals are
	// normalized to daily averages over it.
	windowDays = 7

	// dataDelayDays is how far estimate data trails real time.
	dataDelayDays = 3

	dateFormat = "2006-01-02"
)

// Window bounds one run: the current 7-day estimate window and the 7 days
// preceding it. Because estimates trail real time, the window ends
// dataDelayDays before the run itself.
type Window struct {
	FetchDate time.Time
	Start     time.Time
	End       time.Time
	PrevStart time.Time
	PrevEnd   time.Time
}

// NewWindow computes the run window for the given wall-clock time.
func NewWindow(now time.Time) Window {
	now = now.UTC()
	end := now.AddDate(0, 0, -dataDelayDays)

	return Window{
		FetchDate: now,
		Start:     end.AddDate(0, 0, -(windowDays - 1)),
		End:       end,
		PrevStart: end.AddDate(0, 0, -(2*windowDays - 1)),
		PrevEnd:   end.AddDate(0, 0, -windowDays),
	}
}

// Dates returns the window bounds formatted for logging.
func (w Window) Dates() (start, end string) {
	return w.Start.Format(dateFormat), w.End.Format(dateFormat)
}
