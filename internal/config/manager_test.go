package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
		"logging": {"level": "debug", "console": true},
		"http": {"addr": "127.0.0.1:0", "auth_token": "s3cret"},
		"detector": {"poll_interval": "10s"},
		"scheduler": {"workers": 2, "timezone": "UTC"},
		"storage": {"driver": "sqlite", "path": "./data.db", "busy_timeout": "5s"},
		"push": {"enabled": true, "telegram_token": "tok", "workers": 1},
		"reminders": {"snooze_minutes": 10, "retention_days": 14}
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.HTTP.AuthToken != "s3cret" {
		t.Fatalf("http = %+v", cfg.HTTP)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Push == nil || !cfg.Push.Enabled || cfg.Push.TelegramToken != "tok" {
		t.Fatalf("push = %+v", cfg.Push)
	}
	if cfg.Reminders.SnoozeMinutes != 10 {
		t.Fatalf("reminders = %+v", cfg.Reminders)
	}
	if cfg.Reminders.RetentionDays == nil || *cfg.Reminders.RetentionDays != 14 {
		t.Fatalf("retention_days = %v, want 14", cfg.Reminders.RetentionDays)
	}

	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
logging:
  level: info
  console: true
http:
  addr: "127.0.0.1:0"
detector:
  poll_interval: 10s
scheduler:
  workers: 1
reminders:
  snooze_minutes: 5
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Logging.Level != "info" || cfg.Detector.PollInterval != "10s" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Storage != nil || cfg.Push != nil {
		t.Fatal("absent optional sections should stay nil")
	}
	if cfg.Reminders.RetentionDays != nil {
		t.Fatal("absent retention_days should stay nil, not 0")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging": {"level": "info"}, "surprise": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging": {"level": "info"}}{"again": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("no config delivered")
	}

	// A slow subscriber gets the newest config, not the stale one.
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	select {
	case got := <-ch:
		if got != second {
			t.Fatal("expected the latest config")
		}
	default:
		t.Fatal("no config delivered")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after Unsubscribe")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "  ", want: 0},
		{raw: "250ms", want: 250 * time.Millisecond},
		{raw: "1m30s", want: 90 * time.Second},
		{raw: "-5s", wantErr: true},
		{raw: "fast", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("test.field", tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDurationField(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, %v", tt.raw, got, err)
		}
	}

	if d, err := ParseDurationOrDefault("test.field", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("ParseDurationOrDefault = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("test.field", "3s", 7*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("ParseDurationOrDefault = %v, %v", d, err)
	}
}

func TestHashConfigStable(t *testing.T) {
	t.Parallel()
	a := &Config{Logging: LoggingConfig{Level: "info"}}
	b := &Config{Logging: LoggingConfig{Level: "info"}}
	c := &Config{Logging: LoggingConfig{Level: "debug"}}
	if hashConfig(a) != hashConfig(b) {
		t.Fatal("equal configs hash differently")
	}
	if hashConfig(a) == hashConfig(c) {
		t.Fatal("different configs hash equal")
	}
	if hashConfig(nil) != 0 {
		t.Fatal("nil config hash should be 0")
	}
}
