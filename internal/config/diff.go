package config

import (
	"reflect"
	"slices"
	"strings"

	logx "mediatrack/pkg/logx"
)

// SummarizeConfigChange returns the sorted names of changed sections and
// structured fields describing their new values, for logging.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Tracker, newCfg.Tracker
	if !slices.Equal(ot.Breakpoints, nt.Breakpoints) ||
		strings.TrimSpace(ot.Debounce) != strings.TrimSpace(nt.Debounce) ||
		strings.TrimSpace(ot.FrameInterval) != strings.TrimSpace(nt.FrameInterval) ||
		strings.TrimSpace(ot.Announce) != strings.TrimSpace(nt.Announce) ||
		strings.TrimSpace(ot.Severity) != strings.TrimSpace(nt.Severity) ||
		ot.CellWidth != nt.CellWidth {
		changed = append(changed, "tracker")
		attrs = append(attrs,
			logx.Ints("tracker.breakpoints", nt.Breakpoints),
			logx.String("tracker.debounce", strings.TrimSpace(nt.Debounce)),
			logx.String("tracker.frame_interval", strings.TrimSpace(nt.FrameInterval)),
			logx.String("tracker.announce", strings.TrimSpace(nt.Announce)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// An omitted notifier section means an enabled notifier with defaults.
	oldN, newN := oldCfg.NotifierOrDefault(), newCfg.NotifierOrDefault()
	if !reflect.DeepEqual(oldN, newN) {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.String("notifier.dedup_window", strings.TrimSpace(newN.DedupWindow)),
			logx.String("notifier.dismiss_after", strings.TrimSpace(newN.DismissAfter)),
			logx.Bool("notifier.persist_dedup", newN.PersistDedup),
		)
	}

	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if strings.TrimSpace(oS.Driver) != strings.TrimSpace(nS.Driver) ||
		strings.TrimSpace(oS.Path) != strings.TrimSpace(nS.Path) ||
		strings.TrimSpace(oS.BusyTimeout) != strings.TrimSpace(nS.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.String("storage.path", strings.TrimSpace(nS.Path)),
		)
	}

	var oI, nI InspectConfig
	if oldCfg.Inspect != nil {
		oI = *oldCfg.Inspect
	}
	if newCfg.Inspect != nil {
		nI = *newCfg.Inspect
	}
	if oI != nI {
		changed = append(changed, "inspect")
		attrs = append(attrs,
			logx.Bool("inspect.enabled", nI.Enabled),
			logx.String("inspect.addr", strings.TrimSpace(nI.Addr)),
			logx.Bool("inspect.pprof", nI.Pprof),
			logx.Bool("inspect.token_set", nI.Token != ""),
		)
	}

	slices.Sort(changed)
	return changed, attrs
}
