/*
daynight.go - Day/night boundary splitting

PURPOSE:
  Cuts elementary intervals at day/night rate boundary crossings so that
  every interval handed to the allocator lies entirely on one side.

BOUNDARY RULE:
  A single cutoff hour per location. Within each calendar day:
    day   = [00:00, cutoff)
    night = [cutoff, 24:00)
  Crossings therefore occur at each day's cutoff instant (day -> night)
  and at each midnight (night -> day). A multi-day interval is split at
  every crossing it straddles.

GUARANTEES:
  - Total duration is preserved exactly (cuts, never trims)
  - Idempotent: re-splitting already-split intervals is a no-op, because
    a split interval contains no interior boundary

SEE ALSO:
  - timeline.go: Produces the input intervals
  - allocate.go: Consumes the split intervals
*/
package billing

import "time"

// =============================================================================
// DAY/NIGHT SPLITTER
// =============================================================================

// SplitDayNight cuts every interval at the day/night crossings it straddles
// and tags each resulting interval with its side. cutoffHour must be in
// [0, 23]; 0 means the whole day bills at the night rate.
func SplitDayNight(intervals []Interval, cutoffHour int) []Interval {
	var out []Interval
	for _, iv := range intervals {
		out = append(out, splitOne(iv, cutoffHour)...)
	}
	return out
}

func splitOne(iv Interval, cutoffHour int) []Interval {
	cuts := crossings(iv.Start, iv.End, cutoffHour)

	var parts []Interval
	start := iv.Start
	for _, cut := range append(cuts, iv.End) {
		part := iv
		part.Start = start
		part.End = cut
		part.IsDay = isDayAt(start, cutoffHour)
		part.Split = true
		parts = append(parts, part)
		start = cut
	}
	return parts
}

// crossings returns the boundary instants strictly inside (start, end),
// in chronological order.
func crossings(start, end time.Time, cutoffHour int) []time.Time {
	var cuts []time.Time
	day := startOfDay(start)
	for !day.After(end) {
		for _, b := range []time.Time{day, day.Add(time.Duration(cutoffHour) * time.Hour)} {
			// Midnight and cutoff coincide when cutoffHour is 0.
			if b.After(start) && b.Before(end) && (len(cuts) == 0 || b.After(cuts[len(cuts)-1])) {
				cuts = append(cuts, b)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return cuts
}

// isDayAt reports whether t falls on the day side of the cutoff.
func isDayAt(t time.Time, cutoffHour int) bool {
	cutoff := startOfDay(t).Add(time.Duration(cutoffHour) * time.Hour)
	return t.Before(cutoff)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
