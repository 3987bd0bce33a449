package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"mediatrack/internal/eventbus"
	"mediatrack/internal/notifier"
	"mediatrack/pkg/breakpoint"
	logx "mediatrack/pkg/logx"
)

// Notifier is the part of notifier.Service the handler needs.
type Notifier interface {
	Notify(ctx context.Context, text string, sev notifier.Severity) (uint64, error)
}

// Publisher returns a tracker handler that publishes each state on Topic.
func Publisher(bus *eventbus.Emitter) breakpoint.Handler {
	return func(st breakpoint.State) { bus.Publish(Topic, st) }
}

// Handler shows a toast for every state published on Topic.
type Handler struct {
	n   Notifier
	log logx.Logger

	mu  sync.Mutex
	sev notifier.Severity
	sub *eventbus.Subscription
}

func NewHandler(n Notifier, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{n: n, log: log, sev: notifier.SeverityInfo}
}

func (h *Handler) SetSeverity(sev notifier.Severity) {
	if !sev.Valid() {
		return
	}
	h.mu.Lock()
	h.sev = sev
	h.mu.Unlock()
}

// Attach subscribes the handler to Topic on bus, replacing any previous
// subscription.
func (h *Handler) Attach(bus *eventbus.Emitter) error {
	sub, err := bus.Subscribe(Topic, h.Handle)
	if err != nil {
		return err
	}
	h.mu.Lock()
	old := h.sub
	h.sub = sub
	h.mu.Unlock()
	old.Unsubscribe()
	return nil
}

func (h *Handler) Detach() {
	h.mu.Lock()
	sub := h.sub
	h.sub = nil
	h.mu.Unlock()
	sub.Unsubscribe()
}

// Handle is an eventbus.Handler. data[0] must be a breakpoint.State.
func (h *Handler) Handle(data ...any) {
	st, ok := stateOf(data)
	if !ok {
		h.log.Warn("unexpected payload on media topic", logx.Int("args", len(data)))
		return
	}
	h.mu.Lock()
	sev := h.sev
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	text := Describe(st)
	if _, err := h.n.Notify(ctx, text, sev); err != nil {
		if errors.Is(err, notifier.ErrDisabled) || errors.Is(err, notifier.ErrStopped) {
			h.log.Debug("toast skipped", logx.String("text", text), logx.Err(err))
			return
		}
		h.log.Warn("toast enqueue failed", logx.String("text", text), logx.Err(err))
	}
}

func stateOf(data []any) (breakpoint.State, bool) {
	if len(data) == 0 {
		return breakpoint.State{}, false
	}
	switch v := data[0].(type) {
	case breakpoint.State:
		return v, true
	case *breakpoint.State:
		if v != nil {
			return *v, true
		}
	}
	return breakpoint.State{}, false
}
