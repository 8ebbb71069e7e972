package types

import "time"

// Period is a named time-window selector for report exports. Each period
// resolves to a lower time bound; the upper bound is always "now".
type Period string

const (
	PeriodToday    Period = "today"
	PeriodWeek     Period = "week"
	PeriodMonth    Period = "month"
	PeriodHalfYear Period = "half_year"
	PeriodYear     Period = "year"
	PeriodAllTime  Period = "all_time"
)

// Periods in keyboard order.
var Periods = []Period{
	PeriodToday, PeriodWeek,
	PeriodMonth, PeriodHalfYear,
	PeriodYear, PeriodAllTime,
}

var periodLabels = map[Period]string{
	PeriodToday:    "📅 Today",
	PeriodWeek:     "📅 Week",
	PeriodMonth:    "📅 Month",
	PeriodHalfYear: "📅 Half year",
	PeriodYear:     "📅 Year",
	PeriodAllTime:  "📅 All time",
}

// Label returns the keyboard label for the period.
func (p Period) Label() string {
	return periodLabels[p]
}

// PeriodFromLabel maps a keyboard label back to its period.
func PeriodFromLabel(label string) (Period, bool) {
	for p, l := range periodLabels {
		if l == label {
			return p, true
		}
	}
	return "", false
}

// Start returns the inclusive lower bound of the period ending at now.
// "today" starts at midnight in now's location; "all_time" starts at an
// epoch far enough in the past to cover every stored transaction.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, 0, -30)
	case PeriodHalfYear:
		return now.AddDate(0, 0, -180)
	case PeriodYear:
		return now.AddDate(0, 0, -365)
	default:
		return time.Date(2000, 1, 1, 0, 0, 0, 0, now.Location())
	}
}
