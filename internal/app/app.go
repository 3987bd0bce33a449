// Package app wires configuration, logging, storage, the toast notifier, the
// breakpoint tracker and the terminal width source into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"mediatrack/internal/config"
	"mediatrack/internal/eventbus"
	"mediatrack/internal/media"
	"mediatrack/internal/notifier"
	"mediatrack/internal/observability/inspect"
	"mediatrack/internal/runtime/supervisor"
	"mediatrack/internal/storage"
	"mediatrack/internal/terminal"
	"mediatrack/pkg/breakpoint"
	logx "mediatrack/pkg/logx"
)

// Options selects how the app is built. The zero value reads no config file
// and follows the terminal on stdout.
type Options struct {
	// ConfigPath is a JSON or YAML file. Empty means built-in defaults and no
	// hot reload.
	ConfigPath string
	// Width pins the viewport to a fixed pixel width and disables the
	// terminal source.
	Width int
	// Output receives rendered toasts. Defaults to stdout.
	Output io.Writer
	// Presenter overrides the console presenter.
	Presenter notifier.Presenter
}

type App struct {
	cfgm *config.ConfigManager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service

	store storage.Store
	bus   *eventbus.Emitter
	notif *notifier.Service
	media *media.Handler

	vp      *breakpoint.Viewport
	tracker *breakpoint.Tracker
	term    *terminal.Source
	ann     *announcer
	insp    *inspect.Service

	// debounce and frame interval are fixed at construction.
	timing trackerSettings

	mu   sync.Mutex
	sup  *supervisor.Supervisor
	subs []*eventbus.Subscription
}

func New(opts Options) (*App, error) {
	var (
		cfgm *config.ConfigManager
		cfg  *config.Config
		err  error
	)
	if strings.TrimSpace(opts.ConfigPath) != "" {
		cfgm = config.NewConfigManager(opts.ConfigPath)
		if cfg, err = cfgm.Load(); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.Default()
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}

	ts, err := mapTrackerConfig(cfg)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	scfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))

	store, err := storage.Open(scfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", scfg.Driver))
	}

	bus := eventbus.New(log.With(logx.String("comp", "eventbus")))

	presenter := opts.Presenter
	if presenter == nil {
		out := opts.Output
		if out == nil {
			out = os.Stdout
		}
		presenter = notifier.NewConsolePresenter(out)
	}
	notif := notifier.New(ncfg, presenter, log.With(logx.String("comp", "notifier")), bus, store)

	mh := media.NewHandler(notif, log.With(logx.String("comp", "media")))
	mh.SetSeverity(ts.severity)

	vp := breakpoint.NewViewport(opts.Width)
	a := &App{
		cfgm:   cfgm,
		cfg:    cfg,
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		store:  store,
		bus:    bus,
		notif:  notif,
		media:  mh,
		vp:     vp,
		timing: ts,
	}

	tracker, err := breakpoint.New(ts.widths,
		breakpoint.WithSource(vp),
		breakpoint.WithDebounce(ts.debounce),
		breakpoint.WithFrameScheduler(breakpoint.NewFrameClock(ts.frameInterval)),
		breakpoint.WithLogger(log.With(logx.String("comp", "tracker"))),
		breakpoint.WithErrorHandler(a.onTrackerError),
	)
	if err != nil {
		_ = a.closeStore()
		_ = logSvc.Close()
		return nil, err
	}
	tracker.SetHandler(media.Publisher(bus))
	a.tracker = tracker

	if opts.Width <= 0 {
		a.term = terminal.New(vp,
			terminal.WithCellWidth(ts.cellWidth),
			terminal.WithLogger(log.With(logx.String("comp", "terminal"))),
		)
	}
	a.ann = newAnnouncer(tracker.Refresh, log.With(logx.String("comp", "announce")))

	a.insp = inspect.New(mapInspectConfig(cfg), log.With(logx.String("comp", "inspect")))
	a.insp.Handle("state", a.inspectState)
	a.insp.Handle("toasts", a.inspectToasts)
	a.insp.Handle("tasks", a.inspectTasks)
	return a, nil
}

func (a *App) Tracker() *breakpoint.Tracker   { return a.tracker }
func (a *App) Inspect() *inspect.Service      { return a.insp }
func (a *App) Notifier() *notifier.Service    { return a.notif }
func (a *App) Viewport() *breakpoint.Viewport { return a.vp }
func (a *App) Events() *eventbus.Emitter      { return a.bus }

// Config returns the last applied config.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Err()
}

// Done is closed when the app context ends, either by the parent context or
// by a fatal error.
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sup == nil {
		return nil
	}
	return a.sup.Context().Done()
}

func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.sup != nil {
		a.mu.Unlock()
		return errors.New("app already started")
	}
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	a.sup = sup
	a.mu.Unlock()

	a.subscribeEventLog()

	if err := a.media.Attach(a.bus); err != nil {
		return err
	}
	a.notif.Start(sup.Context())

	if a.term != nil {
		// Seed the real width so the first state is not the zero viewport.
		a.term.Sample()
		sup.GoRestart("terminal", a.term.Run)
	}

	if err := a.tracker.Track(); err != nil {
		return err
	}
	a.log.Info("tracking",
		logx.Ints("breakpoints", a.tracker.Widths()),
		logx.Int("width", a.vp.Width()),
		logx.Duration("debounce", a.tracker.Debounce()),
	)

	if err := a.ann.Schedule(a.timing.announce); err != nil {
		return fmt.Errorf("tracker.announce: %w", err)
	}
	a.ann.Start()
	a.insp.Start(sup.Context())

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
			if _, err := mapTrackerConfig(cfg); err != nil {
				return err
			}
			if _, err := mapNotifierConfig(cfg); err != nil {
				return err
			}
			_, err := mapStorageConfig(cfg)
			return err
		})
		sub := a.cfgm.Subscribe(8)
		sup.Go("config.watch", a.cfgm.Watch)
		sup.Go("config.reload", func(c context.Context) error {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
			return nil
		})
	}
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	sup := a.sup
	subs := a.subs
	a.subs = nil
	a.mu.Unlock()

	deadline, hasDeadline := ctx.Deadline()
	step := func(name string, max time.Duration, fn func(c context.Context) error) {
		if hasDeadline {
			max = min(max, time.Until(deadline))
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		c, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		if err := fn(c); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("inspect", 2*time.Second, func(c context.Context) error { a.insp.Stop(c); return nil })
	step("announce", time.Second, func(context.Context) error { a.ann.Stop(); return nil })
	step("tracker", time.Second, func(context.Context) error { a.tracker.Stop(); return nil })
	step("media", time.Second, func(context.Context) error { a.media.Detach(); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	if sup != nil {
		step("supervisor", 2*time.Second, sup.Stop)
	}
	for _, s := range subs {
		s.Unsubscribe()
	}
	step("storage", time.Second, func(context.Context) error { return a.closeStore() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *App) onTrackerError(err error) {
	var he *breakpoint.HandlerError
	if errors.As(err, &he) {
		a.bus.Publish(TopicTrackerError, he)
	}
}

func (a *App) inspectState() any {
	return map[string]any{
		"width":       a.vp.Width(),
		"state":       a.tracker.NearestWidths(),
		"breakpoints": a.tracker.Widths(),
		"tracking":    a.tracker.Tracking(),
		"failures":    a.tracker.Failures(),
	}
}

func (a *App) inspectToasts() any {
	return map[string]any{
		"session": a.notif.Session(),
		"enabled": a.notif.Enabled(),
		"active":  a.notif.Active(),
		"history": a.notif.History(),
	}
}

func (a *App) inspectTasks() any {
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	return sup.Counters()
}

// TopicTrackerError carries a *breakpoint.HandlerError.
const TopicTrackerError = "tracker:error"

// subscribeEventLog logs every toast lifecycle event at debug level.
func (a *App) subscribeEventLog() {
	log := a.log.With(logx.String("comp", "events"))
	var subs []*eventbus.Subscription
	for _, topic := range []string{
		notifier.TopicQueued, notifier.TopicShown, notifier.TopicDismissed,
		notifier.TopicDeduped, notifier.TopicDropped, notifier.TopicFailed,
	} {
		sub, err := a.bus.Subscribe(topic, func(data ...any) {
			if len(data) == 0 {
				return
			}
			if ev, ok := data[0].(notifier.ToastEvent); ok {
				log.Debug("event", logx.String("topic", topic), logx.Uint64("id", ev.ID), logx.String("text", ev.Text), logx.String("reason", ev.Reason))
			}
		})
		if err == nil {
			subs = append(subs, sub)
		}
	}
	a.mu.Lock()
	a.subs = append(a.subs, subs...)
	a.mu.Unlock()
}
