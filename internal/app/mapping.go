package app

import (
	"strings"
	"time"

	"mediatrack/internal/config"
	"mediatrack/internal/notifier"
	"mediatrack/internal/observability/inspect"
	"mediatrack/internal/storage"
	"mediatrack/internal/terminal"
	"mediatrack/pkg/breakpoint"
	logx "mediatrack/pkg/logx"
)

// trackerSettings is the parsed tracker section.
type trackerSettings struct {
	widths        []int
	debounce      time.Duration
	frameInterval time.Duration
	announce      string
	severity      notifier.Severity
	cellWidth     int
}

func mapTrackerConfig(cfg *config.Config) (trackerSettings, error) {
	t := cfg.Tracker
	out := trackerSettings{
		widths:    t.Breakpoints,
		announce:  strings.TrimSpace(t.Announce),
		cellWidth: t.CellWidth,
	}
	if out.widths == nil {
		out.widths = breakpoint.Defaults()
	}
	if out.cellWidth <= 0 {
		out.cellWidth = terminal.DefaultCellWidth
	}
	var err error
	if out.debounce, err = config.ParseDurationOrDefault("tracker.debounce", t.Debounce, breakpoint.DefaultDebounce); err != nil {
		return trackerSettings{}, err
	}
	if out.frameInterval, err = config.ParseDurationOrDefault("tracker.frame_interval", t.FrameInterval, breakpoint.DefaultFrameInterval); err != nil {
		return trackerSettings{}, err
	}
	if out.severity, err = notifier.ParseSeverity(t.Severity); err != nil {
		return trackerSettings{}, err
	}
	return out, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.NotifierOrDefault()
	out := notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		DedupMaxEntries: n.DedupMaxEntries,
		PersistDedup:    n.PersistDedup,
		HistorySize:     n.HistorySize,
	}
	var err error
	if out.RetryBase, err = config.ParseDurationField("notifier.retry_base", n.RetryBase); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = config.ParseDurationField("notifier.dedup_window", n.DedupWindow); err != nil {
		return notifier.Config{}, err
	}
	if out.DismissAfter, err = config.ParseDurationOrDefault("notifier.dismiss_after", n.DismissAfter, notifier.DefaultDismissAfter); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}

func mapInspectConfig(cfg *config.Config) inspect.Config {
	if cfg.Inspect == nil {
		return inspect.Config{}
	}
	in := cfg.Inspect
	return inspect.Config{
		Enabled:       in.Enabled,
		Addr:          strings.TrimSpace(in.Addr),
		Token:         strings.TrimSpace(in.Token),
		AllowInsecure: in.AllowInsecure,
		Pprof:         in.Pprof,
	}
}
