package core

import "time"

const DateLayout = "2006-01-02"

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDay drops the time of day, keeping the calendar day of t in its own location.
func TruncateDay(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, CleanString(s))
}

// AddMonths moves t by n calendar months, keeping its day of month.
// When the target month is shorter, the day is clamped to its last day (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	t = TruncateDay(t)
	first := Date(t.Year(), t.Month(), 1).AddDate(0, n, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return Date(first.Year(), first.Month(), day)
}
