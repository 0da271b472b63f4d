package storage

import (
	"context"
	"time"

	"alarmbot/internal/alarm"
)

// Config configures storage.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Store is the persistence API consumed by the alarm service and router.
//
// All per-owner operations are point-in-time consistent for that owner;
// cross-owner atomicity is not required.
type Store interface {
	// LoadAll returns every persisted alarm; used once at startup to
	// rehydrate schedules.
	LoadAll(ctx context.Context) ([]alarm.Alarm, error)
	ListForOwner(ctx context.Context, owner int64) ([]alarm.Alarm, error)

	// UpsertOneShot atomically replaces all one-shot alarms for owner.
	UpsertOneShot(ctx context.Context, owner int64, tod alarm.TimeOfDay, message string) error
	// UpsertRecurring atomically replaces the recurring alarm for owner at
	// that exact time-of-day.
	UpsertRecurring(ctx context.Context, owner int64, tod alarm.TimeOfDay, repeat alarm.Weekdays, message string) error

	DeleteOneShot(ctx context.Context, owner int64) error
	DeleteAll(ctx context.Context, owner int64) error

	// Timezone returns the owner's zone identifier, "UTC" when absent.
	Timezone(ctx context.Context, owner int64) (string, error)
	// SetTimezone validates the identifier before any write and fails with
	// alarm.ErrInvalidTimezone on junk.
	SetTimezone(ctx context.Context, owner int64, zone string) error

	Close() error
}
