package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeOfDay parses "HH:MM" (leading zero optional) into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: bad hour in %q", ErrBadTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: bad minute in %q", ErrBadTime, s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Weekday aliases accepted from commands. Canonical indices: 0=Monday.
var dayAliases = map[string]int{
	"mon": 0, "monday": 0, "пн": 0,
	"tue": 1, "tuesday": 1, "вт": 1,
	"wed": 2, "wednesday": 2, "ср": 2,
	"thu": 3, "thursday": 3, "чт": 3,
	"fri": 4, "friday": 4, "пт": 4,
	"sat": 5, "saturday": 5, "сб": 5,
	"sun": 6, "sunday": 6, "вс": 6,
}

var daySets = map[string][]int{
	"daily":    {0, 1, 2, 3, 4, 5, 6},
	"everyday": {0, 1, 2, 3, 4, 5, 6},
	"weekdays": {0, 1, 2, 3, 4},
	"weekends": {5, 6},
}

// ParseWeekdays parses a comma-separated weekday spec into a canonical set.
//
// Accepted tokens: english names/abbreviations ("mon", "friday"), russian
// two-letter abbreviations ("пн".."вс"), numeric indices 0..6 (0=Monday),
// and the shorthands "daily"/"everyday"/"weekdays"/"weekends".
func ParseWeekdays(s string) (Weekdays, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, ErrBadWeekdays
	}
	if set, ok := daySets[s]; ok {
		return normalize(set)
	}

	var days []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if d, ok := dayAliases[tok]; ok {
			days = append(days, d)
			continue
		}
		d, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadWeekdays, tok)
		}
		days = append(days, d)
	}
	return normalize(days)
}

// ValidateZone checks that zone is a recognized IANA identifier and returns
// its canonical location. An empty zone means UTC.
func ValidateZone(zone string) (*time.Location, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}
	return loc, nil
}

// FormatUntil renders a duration as a compact human string for
// confirmations and /status ("23h 59m", "5m", "under a minute").
func FormatUntil(d time.Duration) string {
	if d < time.Minute {
		return "under a minute"
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
