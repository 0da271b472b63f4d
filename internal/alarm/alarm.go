// Package alarm holds the domain model of the bot: wall-clock alarm
// definitions, user-input parsing, and next-fire resolution.
//
// Everything here is pure; scheduling/IO lives in internal/services/alarms.
package alarm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrBadTime reports a malformed HH:MM time-of-day.
	ErrBadTime = errors.New("invalid time, expected HH:MM")
	// ErrBadWeekdays reports a malformed or empty weekday set.
	ErrBadWeekdays = errors.New("invalid weekday list")
	// ErrInvalidTimezone reports an unrecognized IANA zone identifier.
	ErrInvalidTimezone = errors.New("unknown timezone")
	// ErrNoOccurrence means the bounded forward scan found no fire instant.
	// For a non-empty weekday set this is an invariant violation, not a
	// normal user error: callers log it and skip the alarm.
	ErrNoOccurrence = errors.New("no occurrence within scan bound")
)

// TimeOfDay is an hour/minute pair with no date and no seconds.
type TimeOfDay struct {
	Hour   int // 0..23
	Minute int // 0..59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Weekdays is a canonical set of weekday indices, 0=Monday .. 6=Sunday,
// stored ascending without duplicates. A nil/empty set means "one-shot".
type Weekdays []int

// Alarm is the persisted alarm definition.
type Alarm struct {
	Owner     int64
	Time      TimeOfDay
	Message   string
	Repeat    Weekdays // nil for one-shot
	CreatedAt time.Time
}

// Recurring reports whether the alarm re-fires on a weekday set.
func (a Alarm) Recurring() bool { return len(a.Repeat) > 0 }

func (w Weekdays) Contains(day int) bool {
	for _, d := range w {
		if d == day {
			return true
		}
	}
	return false
}

// canonical index for time.Weekday (Go counts 0=Sunday, we count 0=Monday).
func indexOf(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

var dayShort = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func (w Weekdays) String() string {
	if len(w) == 0 {
		return "once"
	}
	if len(w) == 7 {
		return "every day"
	}
	names := make([]string, 0, len(w))
	for _, d := range w {
		if d >= 0 && d < 7 {
			names = append(names, dayShort[d])
		}
	}
	return strings.Join(names, ",")
}

// normalize sorts, deduplicates and bounds-checks a weekday slice.
func normalize(days []int) (Weekdays, error) {
	if len(days) == 0 {
		return nil, ErrBadWeekdays
	}
	seen := [7]bool{}
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: index %d out of range", ErrBadWeekdays, d)
		}
		seen[d] = true
	}
	out := make(Weekdays, 0, len(days))
	for d := 0; d < 7; d++ {
		if seen[d] {
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out, nil
}
