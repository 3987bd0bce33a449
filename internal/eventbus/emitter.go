package eventbus

import (
	"errors"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	logx "mediatrack/pkg/logx"
)

var ErrNilHandler = errors.New("eventbus: handler must be a non-nil func")

// Handler receives the arguments given to Publish.
type Handler func(data ...any)

// Subscription identifies one registration. For Once registrations it is the
// origin handle; the emitter tracks the internal wrapper separately.
type Subscription struct {
	topic string
	e     *Emitter
}

func (s *Subscription) Topic() string { return s.topic }

// Unsubscribe removes the registration. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.e == nil {
		return
	}
	s.e.Off(s.topic, s)
}

type entry struct {
	sub *Subscription
	fn  Handler
}

// Emitter is a topic-keyed listener registry. It is safe for concurrent use.
type Emitter struct {
	log logx.Logger

	mu     sync.Mutex
	topics map[string][]*entry
	// once maps a Once wrapper to the subscription handed to the caller.
	once map[*Subscription]*Subscription
}

func New(log logx.Logger) *Emitter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Emitter{
		log:    log,
		topics: map[string][]*entry{},
		once:   map[*Subscription]*Subscription{},
	}
}

// Subscribe registers fn on topic.
func (e *Emitter) Subscribe(topic string, fn Handler) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	sub := &Subscription{topic: topic, e: e}
	e.mu.Lock()
	e.topics[topic] = append(e.topics[topic], &entry{sub: sub, fn: fn})
	e.mu.Unlock()
	return sub, nil
}

// Once registers fn for a single delivery. The registration is removed
// before fn runs.
func (e *Emitter) Once(topic string, fn Handler) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	origin := &Subscription{topic: topic, e: e}
	wrapper := &Subscription{topic: topic, e: e}
	wrapped := func(data ...any) {
		e.Off(topic, wrapper)
		fn(data...)
	}

	e.mu.Lock()
	e.once[wrapper] = origin
	e.topics[topic] = append(e.topics[topic], &entry{sub: wrapper, fn: wrapped})
	e.mu.Unlock()
	return origin, nil
}

// Off removes the most recent registration on topic matching sub.
func (e *Emitter) Off(topic string, sub *Subscription) {
	if sub == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.topics[topic]
	if len(list) == 0 {
		return
	}
	target := e.originLocked(sub)
	for i := len(list) - 1; i >= 0; i-- {
		if e.originLocked(list[i].sub) != target {
			continue
		}
		delete(e.once, list[i].sub)
		list = append(list[:i:i], list[i+1:]...)
		break
	}
	if len(list) == 0 {
		delete(e.topics, topic)
		return
	}
	e.topics[topic] = list
}

func (e *Emitter) originLocked(sub *Subscription) *Subscription {
	if o, ok := e.once[sub]; ok {
		return o
	}
	return sub
}

// Publish delivers data to every listener registered on topic when Publish
// starts. Listeners removed mid-dispatch are skipped. It reports whether at
// least one listener ran without panicking.
func (e *Emitter) Publish(topic string, data ...any) bool {
	e.mu.Lock()
	snapshot := append([]*entry(nil), e.topics[topic]...)
	e.mu.Unlock()

	if len(snapshot) == 0 {
		return false
	}

	delivered := false
	for _, en := range snapshot {
		if !e.registered(topic, en) {
			continue
		}
		if e.call(topic, en, data) {
			delivered = true
		}
	}
	return delivered
}

func (e *Emitter) registered(topic string, en *entry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cur := range e.topics[topic] {
		if cur == en {
			return true
		}
	}
	return false
}

func (e *Emitter) call(topic string, en *entry, data []any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("event handler panicked",
				logx.String("topic", topic),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
			ok = false
		}
	}()
	en.fn(data...)
	return true
}

// UnsubscribeAll removes every listener of the given topics, or of all
// topics when none are given.
func (e *Emitter) UnsubscribeAll(topics ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(topics) == 0 {
		e.topics = map[string][]*entry{}
		e.once = map[*Subscription]*Subscription{}
		return
	}
	for _, topic := range topics {
		for _, en := range e.topics[topic] {
			delete(e.once, en.sub)
		}
		delete(e.topics, topic)
	}
}

func (e *Emitter) ListenerCount(topic string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.topics[topic])
}

func (e *Emitter) HasListeners(topic string) bool { return e.ListenerCount(topic) > 0 }

// Topics returns the topics with at least one listener, sorted.
func (e *Emitter) Topics() []string {
	e.mu.Lock()
	out := make([]string, 0, len(e.topics))
	for t := range e.topics {
		out = append(out, t)
	}
	e.mu.Unlock()
	sort.Strings(out)
	return out
}

// Event is the channel form of a publish.
type Event struct {
	Topic string
	Time  time.Time
	Data  []any
}

// SubscribeChan bridges topic into a buffered channel. Delivery is
// non-blocking: when the buffer is full the event is dropped.
func (e *Emitter) SubscribeChan(topic string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	var (
		mu     sync.Mutex
		closed bool
	)
	sub, _ := e.Subscribe(topic, func(data ...any) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- Event{Topic: topic, Time: time.Now(), Data: data}:
		default:
			e.log.Debug("event dropped (subscriber slow)", logx.String("topic", topic), logx.Int("queue_cap", cap(ch)))
		}
	})

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, unsub
}
