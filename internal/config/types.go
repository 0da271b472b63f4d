package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"alarmbot/internal/alarm"
)

type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	Notifier    NotifierConfig    `json:"notifier,omitempty"`
	Alarms      AlarmsConfig      `json:"alarms,omitempty"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// NotifierConfig controls the outgoing send pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
type NotifierConfig struct {
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

type AlarmsConfig struct {
	// RingInterval is the pause between ring notifications.
	RingInterval string `json:"ring_interval,omitempty"`
	// DefaultTimezone is an IANA zone used for owners without one.
	DefaultTimezone string `json:"default_timezone,omitempty"`
}

type MaintenanceConfig struct {
	Enabled bool `json:"enabled"`
	// ReconcileSpec is a cron spec or "@every" expression.
	ReconcileSpec string `json:"reconcile_spec,omitempty"`
	// HousekeepSpec schedules storage housekeeping.
	HousekeepSpec string `json:"housekeep_spec,omitempty"`
	JobTimeout    string `json:"job_timeout,omitempty"`
}

// Validate checks the static config invariants. It is also the watch
// validator, so a bad edit never reaches running services.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	durations := []struct {
		path string
		raw  string
	}{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"notifier.retry_base", c.Notifier.RetryBase},
		{"notifier.retry_max_delay", c.Notifier.RetryMaxDelay},
		{"notifier.send_timeout", c.Notifier.SendTimeout},
		{"alarms.ring_interval", c.Alarms.RingInterval},
		{"maintenance.job_timeout", c.Maintenance.JobTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if z := strings.TrimSpace(c.Alarms.DefaultTimezone); z != "" {
		if _, err := alarm.ValidateZone(z); err != nil {
			return fmt.Errorf("alarms.default_timezone: %w", err)
		}
	}
	return nil
}

// RingInterval returns the parsed ring cadence with its default.
func (c *Config) RingInterval() time.Duration {
	d, err := ParseDurationOrDefault("alarms.ring_interval", c.Alarms.RingInterval, 2*time.Second)
	if err != nil {
		return 2 * time.Second
	}
	return d
}
