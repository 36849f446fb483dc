// Package interval holds the time-range arithmetic shared by validation,
// the store guard and slot availability. Ranges are half-open: [start, end).
package interval

import "time"

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share an instant.
// Ranges that only touch (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func Duration(start, end time.Time) time.Duration {
	return end.Sub(start)
}

// MidnightOf returns 00:00 of t's calendar day in loc. A nil loc uses t's own location.
func MidnightOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
