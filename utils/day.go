// utils/day.go
package utils

import "time"

// DayUTC truncates a timestamp to its UTC calendar day (midnight UTC).
// All streak math compares days produced by this function — comparing raw
// timestamps would make "yesterday" depend on the time of day.
func DayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (both truncated
// to UTC days first). Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(DayUTC(b).Sub(DayUTC(a)).Hours() / 24)
}

// SameDayUTC reports whether two timestamps fall on the same UTC calendar day.
func SameDayUTC(a, b time.Time) bool {
	return DayUTC(a).Equal(DayUTC(b))
}
