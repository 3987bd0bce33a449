package notifier

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"mediatrack/internal/eventbus"
	"mediatrack/internal/runtime/supervisor"
	"mediatrack/internal/storage"
	logx "mediatrack/pkg/logx"
)

var (
	ErrDisabled     = errors.New("notifier disabled")
	ErrQueueFull    = errors.New("notifier queue full")
	ErrStopped      = errors.New("notifier stopped")
	ErrEmptyText    = errors.New("notifier: empty toast text")
	ErrUnknownToast = errors.New("notifier: no active toast with that id")
)

type job struct {
	t   Toast
	key string
}

type dedupWrite struct {
	key   string
	until time.Time
}

type activeToast struct {
	t     Toast
	timer *time.Timer
}

// Service implements the toast pipeline:
// queue + worker pool + rate limit + retry + dedup + auto-dismiss.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log       logx.Logger
	presenter Presenter
	bus       *eventbus.Emitter
	store     storage.Store

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *supervisor.Supervisor
	stopDone chan struct{} // non-nil while stopping

	session string
	nextID  atomic.Uint64

	// key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	persistCh chan dedupWrite

	amu    sync.Mutex
	active map[uint64]*activeToast

	hmu     sync.Mutex
	history []Toast
}

// New builds a stopped service. bus and store may be nil.
func New(cfg Config, presenter Presenter, log logx.Logger, bus *eventbus.Emitter, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		presenter: presenter,
		log:       log,
		bus:       bus,
		store:     store,
		session:   uuid.NewString(),
		dedup:     map[string]time.Time{},
		active:    map[uint64]*activeToast{},
	}
	s.applyLocked(cfg)
	return s
}

// Session identifies this service instance in persisted toast history.
// Toast ids are only unique within a session.
func (s *Service) Session() string { return s.session }

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Running reports whether Start has been called and Stop has not finished.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue != nil && s.accepting
}

// Apply replaces the configuration. Worker count and queue size take effect
// on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
	s.trimHistory()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 100 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 2 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 1000
	}
	if cfg.DismissAfter <= 0 {
		cfg.DismissAfter = DefaultDismissAfter
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}

	s.cfg = cfg
	// Burst = rate per sec so a short flurry of breakpoint changes is not delayed.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	if s.cfg.PersistDedup && s.store != nil {
		s.persistCh = make(chan dedupWrite, 256)
	}
	s.sup = supervisor.New(ctx,
		supervisor.WithLogger(s.log.With(logx.String("comp", "notifier"))),
		supervisor.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	pch := s.persistCh
	st := s.store
	s.mu.Unlock()

	if pch != nil {
		sup.GoRestart("dedup.persist", func(c context.Context) error {
			s.persistLoop(c, pch, st)
			return s.exitErr(c, "persist loop")
		})
	}
	for i := 0; i < workers; i++ {
		sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, q)
			return s.exitErr(c, "worker")
		})
	}
	s.log.Debug("notifier started", logx.Int("workers", workers))
}

// exitErr classifies a loop exit: nil on shutdown so the supervisor does not
// restart it, an error otherwise.
func (s *Service) exitErr(ctx context.Context, what string) error {
	s.mu.Lock()
	stopping := s.stopDone != nil
	s.mu.Unlock()
	if stopping || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("notifier %s exited unexpectedly", what)
}

// Stop stops intake, drains the queue until ctx expires and drops every
// active toast.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	pch := s.persistCh
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.sendWG.Wait()
		close(q)
		if pch != nil {
			close(pch)
		}
		_ = sup.Wait(context.Background())
		s.dropActive()

		s.mu.Lock()
		s.queue = nil
		s.persistCh = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
		s.log.Debug("notifier stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

// Notify enqueues a toast and returns its id. A toast suppressed by the
// dedup window returns id 0 and a nil error.
func (s *Service) Notify(ctx context.Context, text string, sev Severity) (uint64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyText
	}
	if sev == "" {
		sev = SeverityInfo
	}
	if !sev.Valid() {
		return 0, fmt.Errorf("notifier: unknown severity %q", sev)
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return 0, ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return 0, ErrStopped
	}
	q := s.queue
	cfg := s.cfg
	st := s.store
	pch := s.persistCh
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	now := time.Now()
	key := dedupKey(sev, text)
	if cfg.DedupWindow > 0 {
		if !s.dedupAllow(ctx, key, cfg.DedupWindow, cfg.DedupMaxEntries, cfg.PersistDedup, st, pch) {
			s.publish(TopicDeduped, ToastEvent{Severity: sev, Text: text, Key: key, At: now})
			return 0, nil
		}
	}

	t := Toast{
		ID:       s.nextID.Add(1),
		Text:     text,
		Severity: sev,
		Icon:     sev.Icon(),
		At:       now,
	}
	select {
	case q <- job{t: t, key: key}:
		s.publish(TopicQueued, ToastEvent{ID: t.ID, Severity: sev, Text: text, Key: key, At: now})
		return t.ID, nil
	default:
		s.publish(TopicDropped, ToastEvent{ID: t.ID, Severity: sev, Text: text, Key: key, At: now, Error: ErrQueueFull.Error()})
		return 0, ErrQueueFull
	}
}

// Dismiss removes an active toast before its timer expires.
func (s *Service) Dismiss(ctx context.Context, id uint64) error {
	t, ok := s.takeActive(id)
	if !ok {
		return ErrUnknownToast
	}
	s.finishDismiss(ctx, t, "dismissed")
	return nil
}

// Active returns the toasts currently on screen ordered by id.
func (s *Service) Active() []Toast {
	s.amu.Lock()
	out := make([]Toast, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, a.t)
	}
	s.amu.Unlock()
	slices.SortFunc(out, func(a, b Toast) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// History returns shown toasts, oldest first.
func (s *Service) History() []Toast {
	s.hmu.Lock()
	out := append([]Toast(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(t Toast) {
	s.hmu.Lock()
	s.history = append(s.history, t)
	s.hmu.Unlock()
	s.trimHistory()
}

func (s *Service) trimHistory() {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()
	s.hmu.Lock()
	if len(s.history) > limit {
		s.history = slices.Clone(s.history[len(s.history)-limit:])
	}
	s.hmu.Unlock()
}

func (s *Service) persistLoop(ctx context.Context, ch <-chan dedupWrite, st storage.Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-ch:
			if !ok {
				return
			}
			cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
			if err := st.PutDedup(cctx, w.key, w.until); err != nil {
				s.log.Debug("dedup persist failed", logx.Err(err))
			}
			cancel()
		}
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.showWithRetry(ctx, j)
		}
	}
}

func (s *Service) showWithRetry(runCtx context.Context, j job) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	p := s.presenter
	st := s.store
	s.mu.Unlock()

	if p == nil {
		return
	}

	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(runCtx); err != nil {
			return
		}

		t := j.t
		t.Expires = time.Now().Add(cfg.DismissAfter)

		callCtx, cancel := context.WithTimeout(runCtx, 5*time.Second)
		err := p.Show(callCtx, t)
		cancel()
		if err == nil {
			s.activate(t, cfg.DismissAfter)
			s.appendHistory(t)
			if st != nil {
				sctx, scancel := context.WithTimeout(runCtx, 250*time.Millisecond)
				if err := st.AppendToast(sctx, storage.ToastRecord{At: t.At, Session: s.session, ID: t.ID, Severity: string(t.Severity), Text: t.Text}); err != nil {
					s.log.Debug("toast history append failed", logx.Err(err))
				}
				scancel()
			}
			s.publish(TopicShown, ToastEvent{ID: t.ID, Severity: t.Severity, Text: t.Text, Key: j.key, At: time.Now()})
			return
		}
		lastErr = err
		s.log.Debug("toast show failed", logx.Err(err), logx.Uint64("id", t.ID), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}
		timer := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-timer.C:
		case <-runCtx.Done():
			timer.Stop()
			return
		}
	}

	s.log.Warn("toast dropped after retries", logx.Uint64("id", j.t.ID), logx.Err(lastErr))
	s.publish(TopicFailed, ToastEvent{ID: j.t.ID, Severity: j.t.Severity, Text: j.t.Text, Key: j.key, At: time.Now(), Error: lastErr.Error()})
}

func (s *Service) activate(t Toast, after time.Duration) {
	id := t.ID
	s.amu.Lock()
	s.active[id] = &activeToast{
		t: t,
		timer: time.AfterFunc(after, func() {
			if t, ok := s.takeActive(id); ok {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				s.finishDismiss(ctx, t, "expired")
				cancel()
			}
		}),
	}
	s.amu.Unlock()
}

func (s *Service) takeActive(id uint64) (Toast, bool) {
	s.amu.Lock()
	defer s.amu.Unlock()
	a, ok := s.active[id]
	if !ok {
		return Toast{}, false
	}
	delete(s.active, id)
	a.timer.Stop()
	return a.t, true
}

func (s *Service) finishDismiss(ctx context.Context, t Toast, reason string) {
	s.mu.Lock()
	p := s.presenter
	s.mu.Unlock()
	if p != nil {
		if err := p.Dismiss(ctx, t); err != nil {
			s.log.Debug("toast dismiss failed", logx.Uint64("id", t.ID), logx.Err(err))
		}
	}
	s.publish(TopicDismissed, ToastEvent{ID: t.ID, Severity: t.Severity, Text: t.Text, At: time.Now(), Reason: reason})
}

func (s *Service) dropActive() {
	s.amu.Lock()
	dropped := make([]Toast, 0, len(s.active))
	for id, a := range s.active {
		a.timer.Stop()
		dropped = append(dropped, a.t)
		delete(s.active, id)
	}
	s.amu.Unlock()
	for _, t := range dropped {
		s.publish(TopicDismissed, ToastEvent{ID: t.ID, Severity: t.Severity, Text: t.Text, At: time.Now(), Reason: "stopped"})
	}
}

func (s *Service) publish(topic string, ev ToastEvent) {
	if s.bus != nil {
		s.bus.Publish(topic, ev)
	}
}

func dedupKey(sev Severity, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sev))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupAllow(ctx context.Context, key string, window time.Duration, max int, persist bool, st storage.Store, pch chan dedupWrite) bool {
	now := time.Now()

	s.dmu.Lock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		s.dmu.Unlock()
		return false
	}
	s.dmu.Unlock()

	// Persistent check for dedup across restarts.
	if persist && st != nil {
		cctx, cancel := context.WithTimeout(ctx, 25*time.Millisecond)
		until, ok, err := st.GetDedup(cctx, key)
		cancel()
		if err == nil && ok && now.Before(until) {
			s.dmu.Lock()
			s.dedup[key] = until
			s.dmu.Unlock()
			return false
		}
	}

	until := now.Add(window)
	s.dmu.Lock()
	s.dedup[key] = until
	for k, u := range s.dedup {
		if !now.Before(u) {
			delete(s.dedup, k)
		}
	}
	for max > 0 && len(s.dedup) > max {
		var (
			minKey string
			minT   time.Time
		)
		for k, u := range s.dedup {
			if minKey == "" || u.Before(minT) {
				minKey, minT = k, u
			}
		}
		delete(s.dedup, minKey)
	}
	s.dmu.Unlock()

	if persist && pch != nil {
		select {
		case pch <- dedupWrite{key: key, until: until}:
		default:
		}
	}
	return true
}

// retryDelay is the wait before attempt+1: base * 2^(attempt-1), capped and
// jittered by 0.7..1.3.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(max(d, 0), cfg.RetryMaxDelay)
}
