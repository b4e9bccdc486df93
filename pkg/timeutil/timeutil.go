// Package timeutil provides calendar-date helpers. Session dates are plain
// calendar days, so everything here is normalized to midnight UTC.
package timeutil

import (
	"fmt"
	"time"
)

// Common date formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04:05"
	// FormatFrenchDate is the day-first date format (DD/MM/YYYY).
	FormatFrenchDate = "02/01/2006"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// Date creates a calendar date at midnight UTC.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// StartOfDay truncates t to its calendar day, keeping the wall-clock date.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// YearBounds returns the half-open range [Jan 1 of year, Jan 1 of year+1).
func YearBounds(year int) (from, to time.Time) {
	return Date(year, 1, 1), Date(year+1, 1, 1)
}

// CurrentYear returns the calendar year of now.
func CurrentYear() int {
	return Now().Year()
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}

// ParseDate parses a date in YYYY-MM-DD or DD/MM/YYYY form.
func ParseDate(value string) (time.Time, error) {
	for _, layout := range []string{FormatDate, FormatFrenchDate, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return StartOfDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("timeutil: unrecognized date %q", value)
}
