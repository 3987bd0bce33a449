package breakpoint

import (
	"sync"
	"time"
)

const (
	// DefaultDebounce is the resize quiet window used when none is configured.
	DefaultDebounce = 100 * time.Millisecond

	// DefaultFrameInterval approximates a 60Hz paint cadence.
	DefaultFrameInterval = 16 * time.Millisecond
)

// Scheduler runs fn at some later point chosen by its clock and returns a
// func that cancels the run if it has not started yet.
type Scheduler interface {
	Schedule(fn func()) (cancel func())
}

// Delay schedules callbacks after a fixed duration.
type Delay time.Duration

func (d Delay) Schedule(fn func()) func() {
	t := time.AfterFunc(time.Duration(d), fn)
	return func() { t.Stop() }
}

// FrameClock schedules callbacks on the next frame boundary. All callbacks
// scheduled within one frame run together, in scheduling order, from a
// single timer.
type FrameClock struct {
	interval time.Duration
	epoch    time.Time

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending []frameReq
}

type frameReq struct {
	id uint64
	fn func()
}

func NewFrameClock(interval time.Duration) *FrameClock {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameClock{interval: interval, epoch: time.Now()}
}

func (c *FrameClock) Interval() time.Duration { return c.interval }

func (c *FrameClock) untilNextFrame(now time.Time) time.Duration {
	elapsed := now.Sub(c.epoch) % c.interval
	return c.interval - elapsed
}

func (c *FrameClock) Schedule(fn func()) func() {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.pending = append(c.pending, frameReq{id: id, fn: fn})
	if c.timer == nil {
		c.timer = time.AfterFunc(c.untilNextFrame(time.Now()), c.tick)
	}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, r := range c.pending {
			if r.id == id {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				break
			}
		}
		if len(c.pending) == 0 && c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
	}
}

func (c *FrameClock) tick() {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.timer = nil
	c.mu.Unlock()

	for _, r := range batch {
		r.fn()
	}
}

// Coalescer keeps at most one pending callback on its Scheduler. Each Trigger
// cancels the previous pending callback, so only the last one in a burst runs.
type Coalescer struct {
	mu     sync.Mutex
	sched  Scheduler
	cancel func()
	seq    uint64
}

func NewCoalescer(s Scheduler) *Coalescer {
	return &Coalescer{sched: s}
}

// Trigger schedules fn, replacing any pending callback.
func (c *Coalescer) Trigger(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	seq := c.seq

	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = c.sched.Schedule(func() {
		shouldRun := func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			// A timer may fire after a later Trigger already cancelled it.
			if seq != c.seq {
				return false
			}
			c.cancel = nil
			return true
		}()
		if shouldRun {
			fn()
		}
	})
}

// Pending reports whether a callback is scheduled and has not run yet.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Cancel drops any pending callback.
func (c *Coalescer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
