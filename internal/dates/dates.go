// Package dates implements the calendar arithmetic the decision engine
// relies on. All dates are calendar dates: UTC midnight, no time-of-day.
package dates

import "time"

// Midnight truncates a timestamp to its calendar date in UTC.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween counts whole calendar months from start to end.
// Jan 15 to Mar 3 is one completed month, not two. Returns 0 when end
// precedes start.
func MonthsBetween(start, end time.Time) int {
	start, end = Midnight(start), Midnight(end)
	if end.Before(start) {
		return 0
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// AddMonths advances a date by n calendar months, clamping the day to
// the target month's last day (Jan 31 + 1 month = Feb 28, unlike
// time.AddDate which would overflow into March).
func AddMonths(t time.Time, n int) time.Time {
	t = Midnight(t)
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := t.Day()
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
