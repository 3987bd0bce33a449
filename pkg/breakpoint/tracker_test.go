package breakpoint

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackerFixture struct {
	vp     *Viewport
	resize *manualScheduler
	frame  *manualScheduler
	rec    *recorder
	tr     *Tracker
}

func newFixture(t *testing.T, width int, widths []int, opts ...Option) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		vp:     NewViewport(width),
		resize: &manualScheduler{},
		frame:  &manualScheduler{},
		rec:    &recorder{},
	}
	opts = append([]Option{
		WithSource(f.vp),
		WithScheduler(f.resize),
		WithFrameScheduler(f.frame),
	}, opts...)
	tr, err := New(widths, opts...)
	require.NoError(t, err)
	f.tr = tr.SetHandler(f.rec.handle)
	return f
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New([]int{320}, WithDebounce(-time.Millisecond))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	tr, err := New([]int{500, 100, 100, 300})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, tr.Debounce())
	assert.Equal(t, []int{0, 100, 300, 500, Unbounded}, tr.Widths())
	assert.False(t, tr.Tracking())
}

func TestTrackSeedsHandlerImmediately(t *testing.T) {
	f := newFixture(t, 400, []int{320, 480, 640})

	require.NoError(t, f.tr.Track())
	assert.Equal(t, []State{Between(320, 480, 400)}, f.rec.all())
	assert.Equal(t, 6, f.vp.Watchers())
	assert.True(t, f.tr.Tracking())
}

func TestTrackTwiceIsRejected(t *testing.T) {
	f := newFixture(t, 400, []int{320, 480, 640})

	require.NoError(t, f.tr.Track())
	assert.ErrorIs(t, f.tr.Track(), ErrAlreadyTracking)
	assert.Equal(t, 6, f.vp.Watchers())
	assert.Equal(t, 1, f.rec.count())
}

func TestResizeBurstIsDebounced(t *testing.T) {
	f := newFixture(t, 400, []int{320, 480, 640})
	require.NoError(t, f.tr.Track())

	for _, w := range []int{350, 500, 560, 610} {
		f.vp.Resize(w)
	}
	assert.Equal(t, 1, f.rec.count(), "handler must wait for the quiet window")
	assert.Equal(t, 1, f.resize.Live())

	assert.Equal(t, 1, f.resize.Fire())
	states := f.rec.all()
	require.Len(t, states, 2)
	assert.Equal(t, Between(480, 640, 610), states[1])
}

func TestBoundaryCrossingUsesFrameClock(t *testing.T) {
	f := newFixture(t, 400, []int{320, 480, 640})
	require.NoError(t, f.tr.Track())

	f.vp.Resize(480) // (min-width: 480px) starts matching
	assert.Equal(t, 1, f.frame.Live())

	f.vp.Resize(700) // (min-width: 640px) starts matching, replaces the pending frame
	assert.Equal(t, 1, f.frame.Live())

	f.frame.Fire()
	states := f.rec.all()
	require.Len(t, states, 2)
	assert.Equal(t, Between(640, Unbounded, 700), states[1])
}

func TestHandlerPanicIsContained(t *testing.T) {
	vp := NewViewport(400)
	resize := &manualScheduler{}

	var errs []error
	calls := 0
	handler := func(s State) {
		calls++
		if calls == 1 {
			panic("boom")
		}
	}

	tr, err := Create([]int{320, 480, 640}, handler,
		WithSource(vp),
		WithScheduler(resize),
		WithFrameScheduler(&manualScheduler{}),
		WithErrorHandler(func(err error) { errs = append(errs, err) }),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tr.Failures())
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrHandlerFailure))

	var herr *HandlerError
	require.ErrorAs(t, errs[0], &herr)
	assert.Equal(t, "boom", herr.Value)
	assert.Equal(t, Between(320, 480, 400), herr.State)

	vp.Resize(450)
	resize.Fire()
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(1), tr.Failures())
}

func TestSetHandlerIgnoresNil(t *testing.T) {
	f := newFixture(t, 400, []int{320})
	f.tr.SetHandler(nil)

	require.NoError(t, f.tr.Track())
	assert.Equal(t, 1, f.rec.count())
}

func TestSetWidthsRebuildsWatchers(t *testing.T) {
	f := newFixture(t, 400, []int{320, 480, 640})
	require.NoError(t, f.tr.Track())
	require.Equal(t, 6, f.vp.Watchers())

	require.NoError(t, f.tr.SetWidths([]int{100, 100}))
	assert.Equal(t, 2, f.vp.Watchers())
	assert.Equal(t, []int{0, 100, Unbounded}, f.tr.Widths())
	assert.Equal(t, Between(100, Unbounded, 400), f.tr.NearestWidths())
}

func TestSetWidthsKeepsPreviousOnError(t *testing.T) {
	f := newFixture(t, 400, []int{320, 480})

	err := f.tr.SetWidths([]int{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, []int{0, 320, 480, Unbounded}, f.tr.Widths())
}

func TestSetWidthsBeforeTrackDoesNotWatch(t *testing.T) {
	f := newFixture(t, 400, []int{320})
	require.NoError(t, f.tr.SetWidths([]int{320, 480}))
	assert.Equal(t, 0, f.vp.Watchers())
}

func TestStopTearsDown(t *testing.T) {
	f := newFixture(t, 400, []int{320, 480, 640})
	require.NoError(t, f.tr.Track())

	f.vp.Resize(410)
	require.Equal(t, 1, f.resize.Live())

	f.tr.Stop()
	assert.False(t, f.tr.Tracking())
	assert.Equal(t, 0, f.vp.Watchers())
	assert.Equal(t, 0, f.resize.Live())

	f.vp.Resize(420)
	assert.Equal(t, 0, f.resize.Fire())
	assert.Equal(t, 1, f.rec.count())

	// Restartable.
	require.NoError(t, f.tr.Track())
	assert.Equal(t, 2, f.rec.count())
}

func TestRefreshDispatchesOnNextFrame(t *testing.T) {
	f := newFixture(t, 480, []int{320, 480, 640})

	f.tr.Refresh()
	assert.Equal(t, 0, f.frame.Live(), "refresh is a no-op while idle")

	require.NoError(t, f.tr.Track())
	f.tr.Refresh()
	f.tr.Refresh()
	assert.Equal(t, 1, f.frame.Fire())
	assert.Equal(t, []State{Exact(480), Exact(480)}, f.rec.all())
}

func TestDebounceWithRealTimer(t *testing.T) {
	vp := NewViewport(400)
	rec := &recorder{}
	_, err := Create([]int{320, 480, 640}, rec.handle,
		WithSource(vp),
		WithDebounce(20*time.Millisecond),
	)
	require.NoError(t, err)

	// Stay inside (320, 480) so only the resize path fires.
	for w := 401; w <= 420; w++ {
		vp.Resize(w)
	}
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	states := rec.all()
	require.Len(t, states, 2)
	assert.Equal(t, Between(320, 480, 420), states[1])
}
