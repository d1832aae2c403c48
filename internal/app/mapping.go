package app

import (
	"fmt"
	"strings"
	"time"

	"medassist/internal/config"
	"medassist/internal/dispatch"
	"medassist/internal/httpapi"
	"medassist/internal/schedule"
	"medassist/internal/store"
)

func mapStorageConfig(sc *config.StorageConfig) (store.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: busy,
	}, nil
}

func mapPushConfig(pc *config.PushConfig) (dispatch.PushConfig, error) {
	retryBase, err := config.ParseDurationField("push.retry_base", pc.RetryBase)
	if err != nil {
		return dispatch.PushConfig{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("push.retry_max_delay", pc.RetryMaxDelay)
	if err != nil {
		return dispatch.PushConfig{}, err
	}
	return dispatch.PushConfig{
		Enabled:       pc.Enabled,
		Workers:       pc.Workers,
		QueueSize:     pc.QueueSize,
		RatePerSec:    pc.RatePerSec,
		RetryMax:      pc.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}, nil
}

const defaultRetentionDays = 30

// retentionDays resolves the confirmation retention window: unset
// falls back to the default, an explicit 0 disables pruning.
func retentionDays(rc config.RemindersConfig) int {
	if rc.RetentionDays == nil {
		return defaultRetentionDays
	}
	return *rc.RetentionDays
}

func mapHTTPConfig(hc *config.HTTPConfig) (httpapi.Config, error) {
	read, err := config.ParseDurationField("http.read_timeout", hc.ReadTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	write, err := config.ParseDurationField("http.write_timeout", hc.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	idle, err := config.ParseDurationField("http.idle_timeout", hc.IdleTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:         hc.Addr,
		AuthToken:    hc.AuthToken,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}

// validate rejects configs that would break a hot reload or the next
// start. Applied before commit so the previous config stays live.
func validate(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := config.ParseDurationField("detector.poll_interval", cfg.Detector.PollInterval); err != nil {
		return err
	}
	if cfg.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler.workers must be >= 0")
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Storage != nil {
		if _, err := mapStorageConfig(cfg.Storage); err != nil {
			return err
		}
	}
	if cfg.Push != nil {
		if _, err := mapPushConfig(cfg.Push); err != nil {
			return err
		}
		if _, err := config.ParseDurationField("push.poll_timeout", cfg.Push.PollTimeout); err != nil {
			return err
		}
		if cfg.Push.Enabled && strings.TrimSpace(cfg.Push.TelegramToken) == "" {
			return fmt.Errorf("push.telegram_token is required when push is enabled")
		}
	}
	if _, err := mapHTTPConfig(&cfg.HTTP); err != nil {
		return err
	}
	if cfg.Reminders.SnoozeMinutes < 0 {
		return fmt.Errorf("reminders.snooze_minutes must be >= 0")
	}
	if d := cfg.Reminders.RetentionDays; d != nil && *d < 0 {
		return fmt.Errorf("reminders.retention_days must be >= 0")
	}
	if p := cfg.Reminders.Periods; p != nil {
		for key, v := range map[string]string{
			"reminders.periods.morning":   p.Morning,
			"reminders.periods.afternoon": p.Afternoon,
			"reminders.periods.night":     p.Night,
		} {
			if strings.TrimSpace(v) == "" {
				continue
			}
			if _, _, err := schedule.ParseHHMM(v); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}
