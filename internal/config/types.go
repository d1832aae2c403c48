package config

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	HTTP     HTTPConfig     `json:"http"`
	Detector DetectorConfig `json:"detector,omitempty"`

	// Scheduler controls the shared trigger/timer service.
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`

	// Storage is optional; nil means no persistence (reminders still
	// fire, nothing survives a restart).
	Storage *StorageConfig `json:"storage,omitempty"`

	// Push is optional; nil means no closed-app delivery channel.
	Push *PushConfig `json:"push,omitempty"`

	Reminders RemindersConfig `json:"reminders,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	UI      LoggingUI   `json:"ui"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingUI mirrors warnings and errors into the in-app chat log so the
// user sees degraded-mode hints without opening a log file.
type LoggingUI struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// HTTPConfig controls the local API server.
//
// Security note: prefer binding to localhost. If you bind to a
// non-loopback address, set an auth token.
type HTTPConfig struct {
	Addr      string `json:"addr,omitempty"`       // default: "127.0.0.1:8787"
	AuthToken string `json:"auth_token,omitempty"` // optional bearer token (do not log)

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0
	// so the event stream endpoint can run long.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// DetectorConfig controls due-dose polling.
type DetectorConfig struct {
	// PollInterval is a Go duration string (e.g. "10s"). Default "10s".
	PollInterval string `json:"poll_interval,omitempty"`
}

type SchedulerConfig struct {
	Workers  int    `json:"workers,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./medassist.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// PushConfig controls closed-app delivery via Telegram.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
type PushConfig struct {
	Enabled       bool   `json:"enabled"`
	TelegramToken string `json:"telegram_token"`
	PollTimeout   string `json:"poll_timeout,omitempty"`
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

// RemindersConfig tunes reminder behavior.
type RemindersConfig struct {
	// SnoozeMinutes is the default snooze window. Default 5.
	SnoozeMinutes int `json:"snooze_minutes,omitempty"`

	// RetentionDays prunes confirmation records older than this.
	// Unset means 30; an explicit 0 disables pruning.
	RetentionDays *int `json:"retention_days,omitempty"`

	// OSNotifyCommand is the desktop notifier binary invoked for the
	// OS channel. Unset means "notify-send"; "none" disables the
	// channel. A binary missing from PATH downgrades silently.
	OSNotifyCommand string `json:"os_notify_command,omitempty"`

	// Periods overrides the default times for the morning/afternoon/
	// night shortcuts ("HH:MM").
	Periods *PeriodsConfig `json:"periods,omitempty"`
}

type PeriodsConfig struct {
	Morning   string `json:"morning,omitempty"`
	Afternoon string `json:"afternoon,omitempty"`
	Night     string `json:"night,omitempty"`
}
