package alarm

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want TimeOfDay
		ok   bool
	}{
		{raw: "08:30", want: TimeOfDay{8, 30}, ok: true},
		{raw: "8:30", want: TimeOfDay{8, 30}, ok: true},
		{raw: " 23:59 ", want: TimeOfDay{23, 59}, ok: true},
		{raw: "00:00", want: TimeOfDay{0, 0}, ok: true},
		{raw: "24:00"},
		{raw: "12:60"},
		{raw: "12"},
		{raw: "12:5:0"},
		{raw: "ab:cd"},
		{raw: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimeOfDay(tt.raw)
			if !tt.ok {
				if !errors.Is(err, ErrBadTime) {
					t.Fatalf("err = %v, want ErrBadTime", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseWeekdays(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want Weekdays
		ok   bool
	}{
		{name: "abbrev", raw: "mon,wed,fri", want: Weekdays{0, 2, 4}, ok: true},
		{name: "full names", raw: "monday,sunday", want: Weekdays{0, 6}, ok: true},
		{name: "russian", raw: "пн,ср,пт", want: Weekdays{0, 2, 4}, ok: true},
		{name: "numeric", raw: "1,3,5", want: Weekdays{1, 3, 5}, ok: true},
		{name: "dedup and sort", raw: "fri,mon,fri", want: Weekdays{0, 4}, ok: true},
		{name: "daily", raw: "daily", want: Weekdays{0, 1, 2, 3, 4, 5, 6}, ok: true},
		{name: "weekdays", raw: "weekdays", want: Weekdays{0, 1, 2, 3, 4}, ok: true},
		{name: "weekends", raw: "weekends", want: Weekdays{5, 6}, ok: true},
		{name: "mixed case", raw: "Mon,SUN", want: Weekdays{0, 6}, ok: true},
		{name: "empty", raw: ""},
		{name: "junk token", raw: "mon,funday"},
		{name: "out of range", raw: "7"},
		{name: "only commas", raw: ",,,"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseWeekdays(tt.raw)
			if !tt.ok {
				if !errors.Is(err, ErrBadWeekdays) {
					t.Fatalf("err = %v, want ErrBadWeekdays", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWeekdays(%q) error: %v", tt.raw, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseWeekdays(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ParseWeekdays(%q) = %v, want %v", tt.raw, got, tt.want)
				}
			}
		})
	}
}

func TestValidateZone(t *testing.T) {
	t.Parallel()
	if loc, err := ValidateZone(""); err != nil || loc != time.UTC {
		t.Fatalf("empty zone: loc=%v err=%v, want UTC", loc, err)
	}
	if _, err := ValidateZone("Europe/Moscow"); err != nil {
		t.Fatalf("Europe/Moscow rejected: %v", err)
	}
	if _, err := ValidateZone("Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("err = %v, want ErrInvalidTimezone", err)
	}
}

func TestWeekdaysString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		days Weekdays
		want string
	}{
		{days: nil, want: "once"},
		{days: Weekdays{0, 2, 4}, want: "Mon,Wed,Fri"},
		{days: Weekdays{0, 1, 2, 3, 4, 5, 6}, want: "every day"},
	}
	for _, tt := range tests {
		if got := tt.days.String(); got != tt.want {
			t.Fatalf("String(%v) = %q, want %q", []int(tt.days), got, tt.want)
		}
	}
}

func TestFormatUntil(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: 30 * time.Second, want: "under a minute"},
		{d: 5 * time.Minute, want: "5m"},
		{d: 2 * time.Hour, want: "2h"},
		{d: 26*time.Hour + 14*time.Minute, want: "26h 14m"},
	}
	for _, tt := range tests {
		if got := FormatUntil(tt.d); got != tt.want {
			t.Fatalf("FormatUntil(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
