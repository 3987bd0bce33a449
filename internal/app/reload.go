package app

import (
	"context"
	"slices"
	"strings"

	"mediatrack/internal/config"
	"mediatrack/pkg/breakpoint"
	logx "mediatrack/pkg/logx"
)

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest pending config is applied.
			for drained := false; !drained; {
				select {
				case newer, ok := <-sub:
					if !ok {
						return
					}
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(ctx, next)
		}
	}
}

// applyConfig applies a validated config live. Sections that cannot change
// at runtime are logged as requiring a restart.
func (a *App) applyConfig(ctx context.Context, next *config.Config) {
	if next == nil {
		return
	}
	a.mu.Lock()
	prev := a.cfg
	a.mu.Unlock()

	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config change", fields...)

	if err := a.logs.Apply(mapLoggingConfig(next)); err != nil {
		a.log.Warn("logging sinks partially applied", logx.Err(err))
	}

	if slices.Contains(sections, "tracker") {
		a.applyTracker(next)
	}
	if slices.Contains(sections, "notifier") {
		a.applyNotifier(ctx, next)
	}
	if slices.Contains(sections, "inspect") {
		a.insp.Reconfigure(ctx, mapInspectConfig(next))
	}
	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	a.mu.Lock()
	a.cfg = next
	a.mu.Unlock()
}

func (a *App) applyTracker(cfg *config.Config) {
	ts, err := mapTrackerConfig(cfg)
	if err != nil {
		a.log.Warn("invalid tracker config; keeping previous", logx.Err(err))
		return
	}
	set, err := breakpoint.Normalize(ts.widths)
	if err != nil {
		a.log.Warn("breakpoints rejected; keeping previous", logx.Err(err))
	} else if !slices.Equal(set, a.tracker.Widths()) {
		if err := a.tracker.SetWidths(ts.widths); err != nil {
			a.log.Warn("breakpoints rejected; keeping previous", logx.Err(err))
		} else {
			a.log.Info("breakpoints updated", logx.Ints("breakpoints", set))
			// The active range may differ under the new set.
			a.tracker.Refresh()
		}
	}
	a.media.SetSeverity(ts.severity)
	if a.term != nil {
		a.term.SetCellWidth(ts.cellWidth)
	}
	if err := a.ann.Schedule(ts.announce); err != nil {
		a.log.Warn("announce schedule rejected", logx.Err(err))
	}
	if ts.debounce != a.timing.debounce || ts.frameInterval != a.timing.frameInterval {
		a.log.Warn("tracker timing changed; restart required for changes to take effect",
			logx.Duration("debounce", ts.debounce), logx.Duration("frame_interval", ts.frameInterval))
	}
}

func (a *App) applyNotifier(ctx context.Context, cfg *config.Config) {
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		return
	}
	wasRunning := a.notif.Running()
	a.notif.Apply(ncfg)
	switch {
	case ncfg.Enabled && !wasRunning:
		a.notif.Start(ctx)
	case !ncfg.Enabled && wasRunning:
		a.notif.Stop(ctx)
	}
}
