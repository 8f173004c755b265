package amortization

import "time"

// AddMonths adds n calendar months to t. When the day of month does not exist
// in the target month it is clamped to that month's last day, so Jan 31 plus
// one month is Feb 28 (or 29).
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first); day > last {
		day = last
	}
	hour, min, sec := t.Clock()
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
