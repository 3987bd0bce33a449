package breakpoint

import (
	"strconv"
	"sync"
)

// Feature is the width comparison a Query performs.
type Feature uint8

const (
	MinWidth Feature = iota // width >= Query.Width
	MaxWidth                // width <= Query.Width
)

func (f Feature) String() string {
	if f == MaxWidth {
		return "max-width"
	}
	return "min-width"
}

// Query is a single width condition, in the spirit of a CSS media query.
type Query struct {
	Feature Feature
	Width   int
}

func (q Query) Matches(width int) bool {
	if q.Feature == MaxWidth {
		return width <= q.Width
	}
	return width >= q.Width
}

func (q Query) String() string {
	return "(" + q.Feature.String() + ": " + strconv.Itoa(q.Width) + "px)"
}

// Source delivers width signals to a Tracker.
//
// Watch callbacks fire when the query's match state flips, with the new
// state. OnResize callbacks fire on every width change. Both return a cancel
// func that unregisters the callback.
type Source interface {
	Width() int
	Watch(q Query, fn func(matches bool)) (cancel func())
	OnResize(fn func(width int)) (cancel func())
}

// Viewport is an in-process Source. Hosts call Resize whenever the surface
// width changes (terminal SIGWINCH, a browser bridge, tests).
type Viewport struct {
	mu    sync.Mutex
	width int
	seq   uint64

	watchers map[uint64]*watcher
	resizers map[uint64]func(int)
}

type watcher struct {
	q       Query
	fn      func(bool)
	matches bool
}

var _ Source = (*Viewport)(nil)

func NewViewport(width int) *Viewport {
	if width < 0 {
		width = 0
	}
	return &Viewport{
		width:    width,
		watchers: map[uint64]*watcher{},
		resizers: map[uint64]func(int){},
	}
}

func (v *Viewport) Width() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width
}

func (v *Viewport) Watch(q Query, fn func(matches bool)) func() {
	if fn == nil {
		return func() {}
	}
	v.mu.Lock()
	v.seq++
	id := v.seq
	v.watchers[id] = &watcher{q: q, fn: fn, matches: q.Matches(v.width)}
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.watchers, id)
			v.mu.Unlock()
		})
	}
}

func (v *Viewport) OnResize(fn func(width int)) func() {
	if fn == nil {
		return func() {}
	}
	v.mu.Lock()
	v.seq++
	id := v.seq
	v.resizers[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.resizers, id)
			v.mu.Unlock()
		})
	}
}

// Watchers returns the number of registered query watchers.
func (v *Viewport) Watchers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.watchers)
}

// Resize sets the width and notifies listeners. Callbacks run on the
// caller's goroutine after the internal lock is released.
func (v *Viewport) Resize(width int) {
	if width < 0 {
		width = 0
	}
	v.mu.Lock()
	if width == v.width {
		v.mu.Unlock()
		return
	}
	v.width = width

	resizers := make([]func(int), 0, len(v.resizers))
	for _, fn := range v.resizers {
		resizers = append(resizers, fn)
	}
	type change struct {
		fn      func(bool)
		matches bool
	}
	changes := make([]change, 0, 4)
	for _, w := range v.watchers {
		m := w.q.Matches(width)
		if m != w.matches {
			w.matches = m
			changes = append(changes, change{fn: w.fn, matches: m})
		}
	}
	v.mu.Unlock()

	for _, fn := range resizers {
		fn(width)
	}
	for _, c := range changes {
		c.fn(c.matches)
	}
}
