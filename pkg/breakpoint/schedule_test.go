package breakpoint

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescerKeepsOnlyLastTrigger(t *testing.T) {
	sched := &manualScheduler{}
	c := NewCoalescer(sched)

	var got []int
	for i := 1; i <= 5; i++ {
		i := i
		c.Trigger(func() { got = append(got, i) })
	}
	assert.True(t, c.Pending())
	assert.Equal(t, 1, sched.Live())

	assert.Equal(t, 1, sched.Fire())
	assert.Equal(t, []int{5}, got)
	assert.False(t, c.Pending())
}

func TestCoalescerCancel(t *testing.T) {
	sched := &manualScheduler{}
	c := NewCoalescer(sched)

	ran := false
	c.Trigger(func() { ran = true })
	c.Cancel()

	assert.Equal(t, 0, sched.Fire())
	assert.False(t, ran)
	assert.False(t, c.Pending())
}

func TestCoalescerWithDelay(t *testing.T) {
	c := NewCoalescer(Delay(20 * time.Millisecond))

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		c.Trigger(func() { n.Add(1) })
	}
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), n.Load())
}

func TestFrameClockBatchesAndCancels(t *testing.T) {
	clock := NewFrameClock(10 * time.Millisecond)

	var a, b, c atomic.Int32
	clock.Schedule(func() { a.Add(1) })
	cancelB := clock.Schedule(func() { b.Add(1) })
	clock.Schedule(func() { c.Add(1) })
	cancelB()

	require.Eventually(t, func() bool { return a.Load() == 1 && c.Load() == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, int32(0), b.Load())
}

func TestFrameClockNextFrameDelay(t *testing.T) {
	clock := NewFrameClock(16 * time.Millisecond)
	d := clock.untilNextFrame(clock.epoch.Add(20 * time.Millisecond))
	assert.Equal(t, 12*time.Millisecond, d)
	assert.Equal(t, 16*time.Millisecond, clock.untilNextFrame(clock.epoch))
	assert.Equal(t, DefaultFrameInterval, NewFrameClock(0).Interval())
}
