// Package dates holds the calendar arithmetic shared by the schedule
// engines. All functions operate on civil dates; month-based stepping
// clamps the day to the target month's length instead of overflowing the
// way time.AddDate does (Jan 31 + 1 month is Feb 28/29, never Mar 2/3).
package dates

import (
	"time"

	"cloud.google.com/go/civil"
)

// LastDay returns the last day of the given month, leap years included.
func LastDay(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDate builds a date from year/month and a wanted day, clamping
// the day to the month's length. Days below 1 clamp to 1.
func ClampedDate(year int, month time.Month, day int) civil.Date {
	if last := LastDay(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

// AddMonths steps n months forward from year/month, normalizing overflow
// past December, and returns the resulting year and month.
func AddMonths(year int, month time.Month, n int) (int, time.Month) {
	m := int(month) - 1 + n
	year += m / 12
	m %= 12
	if m < 0 {
		m += 12
		year--
	}
	return year, time.Month(m + 1)
}

// Min returns the earlier of two dates.
func Min(a, b civil.Date) civil.Date {
	if b.Before(a) {
		return b
	}
	return a
}
