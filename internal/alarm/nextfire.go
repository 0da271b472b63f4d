package alarm

import "time"

// scanBound caps the forward day-by-day search: two full weeks guarantees
// termination even if the weekday set is internally inconsistent.
const scanBound = 14

// NextFire resolves the next absolute fire instant for a wall-clock
// time-of-day, an optional weekday set and a reference instant, in loc.
//
// One-shot (empty repeat): today at the given time, or tomorrow if that
// moment has already passed. Recurring: the first day within the scan bound
// whose weekday is in the set and whose instant is strictly after now.
//
// Candidates are built per-day with time.Date so DST transitions shift the
// UTC offset but never the local wall-clock time; comparisons are done on
// absolute instants.
func NextFire(tod TimeOfDay, repeat Weekdays, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	at := func(dayOffset int) time.Time {
		return time.Date(local.Year(), local.Month(), local.Day()+dayOffset,
			tod.Hour, tod.Minute, 0, 0, loc)
	}

	if len(repeat) == 0 {
		candidate := at(0)
		if !candidate.After(now) {
			candidate = at(1)
		}
		return candidate, nil
	}

	for offset := 0; offset < scanBound; offset++ {
		candidate := at(offset)
		if !candidate.After(now) {
			continue
		}
		if repeat.Contains(indexOf(candidate.Weekday())) {
			return candidate, nil
		}
	}
	return time.Time{}, ErrNoOccurrence
}
