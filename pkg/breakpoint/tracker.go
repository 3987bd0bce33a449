package breakpoint

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "mediatrack/pkg/logx"
)

// ErrHandlerFailure matches every *HandlerError via errors.Is.
var ErrHandlerFailure = errors.New("breakpoint handler failed")

// Handler receives the active range state.
type Handler func(State)

// HandlerError records a panic recovered from a Handler.
type HandlerError struct {
	State  State
	Reason string
	Value  any
	Stack  string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("breakpoint handler panicked on %s (%s): %v", e.State, e.Reason, e.Value)
}

func (e *HandlerError) Unwrap() error { return ErrHandlerFailure }

type options struct {
	debounce    time.Duration
	debounceSet bool
	src         Source
	log         logx.Logger
	sched       Scheduler
	frame       Scheduler
	onError     func(error)
}

type Option func(*options)

// WithDebounce sets the resize quiet window. Negative values are rejected by New.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce, o.debounceSet = d, true }
}

// WithSource sets the width signal source. Defaults to a fresh Viewport.
func WithSource(src Source) Option { return func(o *options) { o.src = src } }

func WithLogger(log logx.Logger) Option { return func(o *options) { o.log = log } }

// WithScheduler replaces the fixed-delay clock of the resize path.
func WithScheduler(s Scheduler) Option { return func(o *options) { o.sched = s } }

// WithFrameScheduler replaces the next-frame clock of the boundary path.
func WithFrameScheduler(s Scheduler) Option { return func(o *options) { o.frame = s } }

// WithErrorHandler receives every *HandlerError after it has been logged.
func WithErrorHandler(fn func(error)) Option { return func(o *options) { o.onError = fn } }

type lifecycle uint8

const (
	idle lifecycle = iota
	tracking
)

// Tracker resolves the Source width against a breakpoint set and notifies a
// single Handler when the active range may have changed.
type Tracker struct {
	mu       sync.Mutex
	widths   []int
	handler  Handler
	state    lifecycle
	watchers []func()
	unresize func()

	debounce time.Duration
	src      Source
	log      logx.Logger
	onError  func(error)

	resize *Coalescer
	frame  *Coalescer

	// dispatchMu keeps handler invocations from overlapping.
	dispatchMu sync.Mutex
	failures   atomic.Uint64
}

func New(widths []int, opts ...Option) (*Tracker, error) {
	o := options{debounce: DefaultDebounce}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.debounceSet && o.debounce < 0 {
		return nil, fmt.Errorf("%w: debounce must be >= 0, got %s", ErrInvalidConfiguration, o.debounce)
	}
	set, err := Normalize(widths)
	if err != nil {
		return nil, err
	}
	if o.src == nil {
		o.src = NewViewport(0)
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	if o.sched == nil {
		o.sched = Delay(o.debounce)
	}
	if o.frame == nil {
		o.frame = NewFrameClock(DefaultFrameInterval)
	}

	return &Tracker{
		widths:   set,
		handler:  func(State) {},
		debounce: o.debounce,
		src:      o.src,
		log:      o.log,
		onError:  o.onError,
		resize:   NewCoalescer(o.sched),
		frame:    NewCoalescer(o.frame),
	}, nil
}

// Create builds a tracker, installs handler and starts tracking.
func Create(widths []int, handler Handler, opts ...Option) (*Tracker, error) {
	t, err := New(widths, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.SetHandler(handler).Track(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) Source() Source          { return t.src }
func (t *Tracker) Debounce() time.Duration { return t.debounce }

// Failures returns how many handler invocations have panicked.
func (t *Tracker) Failures() uint64 { return t.failures.Load() }

func (t *Tracker) Tracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == tracking
}

// Widths returns a copy of the normalized set, sentinels included.
func (t *Tracker) Widths() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.widths...)
}

// SetWidths replaces the breakpoint set. On error the previous set is kept.
// While tracking, the query watchers are rebuilt for the new set.
func (t *Tracker) SetWidths(widths []int) error {
	set, err := Normalize(widths)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.widths = set
	if t.state == tracking {
		t.unwatchLocked()
		t.watchLocked()
	}
	t.mu.Unlock()

	t.log.Debug("breakpoints replaced", logx.Ints("widths", boundaries(set)))
	return nil
}

// SetHandler replaces the handler. A nil handler is ignored and the
// previous one stays active.
func (t *Tracker) SetHandler(fn Handler) *Tracker {
	if fn == nil {
		return t
	}
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
	return t
}

// NearestWidths resolves the current source width.
func (t *Tracker) NearestWidths() State {
	t.mu.Lock()
	set := t.widths
	t.mu.Unlock()
	return Resolve(set, t.src.Width())
}

// Track registers the query watchers and the resize listener, then invokes
// the handler once with the current state.
func (t *Tracker) Track() error {
	t.mu.Lock()
	if t.state == tracking {
		t.mu.Unlock()
		return ErrAlreadyTracking
	}
	t.state = tracking
	t.watchLocked()
	t.unresize = t.src.OnResize(t.onResize)
	n := len(t.watchers)
	t.mu.Unlock()

	t.log.Debug("tracking started", logx.Int("watchers", n), logx.Duration("debounce", t.debounce))
	t.notify("track")
	return nil
}

// Stop unregisters every watcher and drops pending updates. The tracker can
// be started again with Track.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.state != tracking {
		t.mu.Unlock()
		return
	}
	t.state = idle
	t.unwatchLocked()
	if t.unresize != nil {
		t.unresize()
		t.unresize = nil
	}
	t.mu.Unlock()

	t.resize.Cancel()
	t.frame.Cancel()
	t.log.Debug("tracking stopped")
}

// Refresh schedules a recomputation on the next frame.
func (t *Tracker) Refresh() {
	if !t.Tracking() {
		return
	}
	t.frame.Trigger(func() { t.notify("refresh") })
}

func (t *Tracker) watchLocked() {
	for _, w := range boundaries(t.widths) {
		t.watchers = append(t.watchers,
			t.src.Watch(Query{Feature: MaxWidth, Width: w}, t.onBoundary),
			t.src.Watch(Query{Feature: MinWidth, Width: w}, t.onBoundary),
		)
	}
}

func (t *Tracker) unwatchLocked() {
	for _, cancel := range t.watchers {
		cancel()
	}
	t.watchers = nil
}

func (t *Tracker) onResize(int) {
	t.resize.Trigger(func() { t.notify("resize") })
}

func (t *Tracker) onBoundary(matches bool) {
	if !matches {
		return
	}
	t.frame.Trigger(func() { t.notify("boundary") })
}

func (t *Tracker) notify(reason string) {
	t.mu.Lock()
	h := t.handler
	active := t.state == tracking
	t.mu.Unlock()
	if !active {
		return
	}
	t.dispatch(h, t.NearestWidths(), reason)
}

func (t *Tracker) dispatch(h Handler, st State, reason string) {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		t.failures.Add(1)
		herr := &HandlerError{State: st, Reason: reason, Value: r, Stack: string(debug.Stack())}
		t.log.Error("breakpoint handler panicked",
			logx.String("reason", reason),
			logx.String("state", st.String()),
			logx.Any("panic", r),
			logx.Stack(herr.Stack),
		)
		if t.onError != nil {
			t.onError(herr)
		}
	}()

	t.log.Trace("dispatch", logx.String("reason", reason), logx.String("state", st.String()))
	h(st)
}
