package config

// Config is the on-disk configuration, JSON or YAML.
//
// All durations are Go duration strings (e.g. "100ms", "4s", "1m").
type Config struct {
	Tracker TrackerConfig `json:"tracker"`
	Logging LoggingConfig `json:"logging"`

	// Notifier controls the toast pipeline. If the section is omitted the
	// notifier runs with its defaults.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	// Storage is optional; nil means no persistence.
	Storage *StorageConfig `json:"storage,omitempty"`
	// Inspect is the optional HTTP inspect server; nil means disabled.
	Inspect *InspectConfig `json:"inspect,omitempty"`
}

// TrackerConfig controls the breakpoint tracker.
//
// Defaults (when fields are omitted/zero):
//   - breakpoints: breakpoint.Defaults() (240 through 4096)
//   - debounce: "100ms"
//   - frame_interval: "16ms"
//   - announce: "" (disabled)
//   - severity: "info"
//   - cell_width: 8
type TrackerConfig struct {
	Breakpoints []int `json:"breakpoints,omitempty"`

	Debounce      string `json:"debounce,omitempty"`
	FrameInterval string `json:"frame_interval,omitempty"`

	// Announce is a cron spec (5 or 6 fields, or a descriptor such as "@every 1m").
	// Each tick re-emits the current state.
	Announce string `json:"announce,omitempty"`

	// Severity of the toast shown for a breakpoint change.
	Severity string `json:"severity,omitempty"`

	// CellWidth converts terminal columns to pixels.
	CellWidth int `json:"cell_width,omitempty"`
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

type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
	DismissAfter    string `json:"dismiss_after,omitempty"`
	HistorySize     int    `json:"history_size,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./state/mediatrack.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// InspectConfig controls the inspect HTTP server.
//
// Example:
//
//	"inspect": { "enabled": true, "addr": "127.0.0.1:6061", "pprof": true }
type InspectConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info", Console: true},
		Notifier: &NotifierConfig{Enabled: true},
	}
}

// NotifierOrDefault returns the notifier section, substituting an enabled
// default when it is omitted.
func (c *Config) NotifierOrDefault() NotifierConfig {
	if c == nil || c.Notifier == nil {
		return NotifierConfig{Enabled: true}
	}
	return *c.Notifier
}
