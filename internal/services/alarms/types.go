package alarms

import (
	"context"
	"time"

	"alarmbot/internal/alarm"
	kit "alarmbot/internal/transport"
)

type Config struct {
	// RingInterval is the pause between ring notifications while the
	// owner's ring flag stays set.
	RingInterval time.Duration
	// DefaultTimezone is used when an owner's zone cannot be read.
	DefaultTimezone string
}

func (c Config) withDefaults() Config {
	if c.RingInterval <= 0 {
		c.RingInterval = 2 * time.Second
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = "UTC"
	}
	return c
}

// Deliverer sends one text to one chat. Satisfied by notify.Service.
type Deliverer interface {
	Deliver(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error
}

// Entry is one scheduled alarm together with its resolved next fire instant.
type Entry struct {
	Alarm alarm.Alarm
	Next  time.Time
}

// OwnerStatus is the read-only view behind the status command.
type OwnerStatus struct {
	Zone    string
	Ringing bool
	Entries []Entry
}

// StopResult reports what a stop command actually affected.
type StopResult struct {
	Cancelled  int
	WasRinging bool
	Rearmed    int
}

// AlarmEvent is the payload for "alarm.*" and "ring.*" bus events.
type AlarmEvent struct {
	Owner     int64
	Time      string
	Recurring bool
	At        time.Time
}
