package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: "info"
  console: true
  file:
    enabled: false
    path: ""
storage:
  path: "./alarms.db"
alarms:
  ring_interval: "2s"
  default_timezone: "Europe/Moscow"
maintenance:
  enabled: true
  reconcile_spec: "@every 10m"
`

func TestLoadYAML(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if !cfg.Maintenance.Enabled {
		t.Error("maintenance.enabled lost")
	}
	if got := cfg.RingInterval(); got != 2*time.Second {
		t.Errorf("RingInterval() = %v", got)
	}
	if m.Get() != cfg {
		t.Error("Get() did not return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nbogus_section:\n  x: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseJSON(t *testing.T) {
	body := `{"telegram":{"token":"t"},"logging":{"level":"debug","console":true,"file":{"enabled":false,"path":""}},"storage":{"path":"a.db"}}`
	m := NewManager(writeConfig(t, "config.json", body))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = " " }, wantErr: "telegram.token"},
		{name: "missing storage path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: "storage.path"},
		{name: "bad duration", mutate: func(c *Config) { c.Alarms.RingInterval = "fast" }, wantErr: "ring_interval"},
		{name: "negative duration", mutate: func(c *Config) { c.Telegram.PollTimeout = "-1s" }, wantErr: "poll_timeout"},
		{name: "bad timezone", mutate: func(c *Config) { c.Alarms.DefaultTimezone = "Mars/Olympus" }, wantErr: "default_timezone"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Telegram: TelegramConfig{Token: "t"},
				Storage:  StorageConfig{Path: "a.db"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Error("expected error for junk duration")
	}
	if d, err := ParseDurationField("x", " 2s "); err != nil || d != 2*time.Second {
		t.Errorf("got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "", 5*time.Second); err != nil || d != 5*time.Second {
		t.Errorf("default not applied: %v, %v", d, err)
	}
}
