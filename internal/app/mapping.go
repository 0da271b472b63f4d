package app

import (
	"time"

	"alarmbot/internal/config"
	"alarmbot/internal/services/maintenance"
	"alarmbot/internal/services/notify"
	"alarmbot/internal/storage"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notify.Config, error) {
	base, err := config.ParseDurationField("notifier.retry_base", cfg.Notifier.RetryBase)
	if err != nil {
		return notify.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("notifier.retry_max_delay", cfg.Notifier.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, err
	}
	sendTimeout, err := config.ParseDurationField("notifier.send_timeout", cfg.Notifier.SendTimeout)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		RatePerSec:    cfg.Notifier.RatePerSec,
		RetryMax:      cfg.Notifier.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
		SendTimeout:   sendTimeout,
	}, nil
}

func mapMaintenanceConfig(cfg *config.Config) (maintenance.Config, error) {
	jobTimeout, err := config.ParseDurationOrDefault("maintenance.job_timeout", cfg.Maintenance.JobTimeout, 30*time.Second)
	if err != nil {
		return maintenance.Config{}, err
	}
	return maintenance.Config{
		Enabled:       cfg.Maintenance.Enabled,
		ReconcileSpec: cfg.Maintenance.ReconcileSpec,
		HousekeepSpec: cfg.Maintenance.HousekeepSpec,
		JobTimeout:    jobTimeout,
	}, nil
}
