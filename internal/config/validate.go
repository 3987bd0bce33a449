package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"mediatrack/pkg/breakpoint"
)

var ErrInvalid = errors.New("invalid config")

// CronParser parses tracker.announce. Seconds are optional and descriptors
// such as "@every 30s" are accepted.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks every field that can be checked without side effects.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	t := cfg.Tracker
	if t.Breakpoints != nil {
		if _, err := breakpoint.Normalize(t.Breakpoints); err != nil {
			add(&FieldError{Path: "tracker.breakpoints", Err: err})
		}
	}
	_, err := ParseDurationField("tracker.debounce", t.Debounce)
	add(err)
	_, err = ParseDurationField("tracker.frame_interval", t.FrameInterval)
	add(err)
	if spec := strings.TrimSpace(t.Announce); spec != "" {
		if _, err := CronParser.Parse(spec); err != nil {
			add(&FieldError{Path: "tracker.announce", Err: err})
		}
	}
	if t.CellWidth < 0 {
		add(fieldErr("tracker.cell_width", "must be >= 0 (got %d)", t.CellWidth))
	}
	switch strings.ToLower(strings.TrimSpace(t.Severity)) {
	case "", "info", "success", "warning", "error":
	default:
		add(fieldErr("tracker.severity", "unknown severity %q", t.Severity))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		add(fieldErr("logging.level", "unknown level %q", cfg.Logging.Level))
	}

	if n := cfg.Notifier; n != nil {
		for _, f := range []struct{ path, raw string }{
			{"notifier.retry_base", n.RetryBase},
			{"notifier.retry_max_delay", n.RetryMaxDelay},
			{"notifier.dedup_window", n.DedupWindow},
			{"notifier.dismiss_after", n.DismissAfter},
		} {
			_, err := ParseDurationField(f.path, f.raw)
			add(err)
		}
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 || n.HistorySize < 0 {
			add(fieldErr("notifier", "counts must be >= 0"))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite":
			if strings.TrimSpace(s.Path) == "" {
				add(fieldErr("storage.path", "required for driver %q", s.Driver))
			}
		default:
			add(fieldErr("storage.driver", "unknown driver %q", s.Driver))
		}
		_, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
		add(err)
	}

	if in := cfg.Inspect; in != nil && strings.TrimSpace(in.Addr) != "" {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(in.Addr)); err != nil {
			add(&FieldError{Path: "inspect.addr", Err: err})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
