// Package terminal feeds a breakpoint.Viewport from the width of the
// controlling terminal.
package terminal

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"mediatrack/pkg/breakpoint"
	logx "mediatrack/pkg/logx"
)

const (
	DefaultCellWidth     = 8
	DefaultFallbackWidth = 80 // columns
)

// SizeFunc reports the column and row count of fd.
type SizeFunc func(fd int) (cols, rows int, err error)

type Option func(*Source)

func WithFD(fd int) Option { return func(s *Source) { s.fd = fd } }

func WithSizeFunc(fn SizeFunc) Option { return func(s *Source) { s.size = fn } }

func WithTerminalCheck(fn func(fd int) bool) Option { return func(s *Source) { s.isTerminal = fn } }

// WithCellWidth sets the pixel width of one column.
func WithCellWidth(px int) Option {
	return func(s *Source) {
		if px > 0 {
			s.cellWidth.Store(int64(px))
		}
	}
}

// WithFallbackWidth sets the column count used when fd is not a terminal.
func WithFallbackWidth(cols int) Option {
	return func(s *Source) {
		if cols > 0 {
			s.fallback = cols
		}
	}
}

// WithPollInterval re-samples on a ticker in addition to resize signals.
// Zero disables polling where resize signals exist.
func WithPollInterval(d time.Duration) Option { return func(s *Source) { s.poll = d } }

func WithLogger(log logx.Logger) Option { return func(s *Source) { s.log = log } }

// Source resizes a Viewport whenever the terminal width changes.
type Source struct {
	vp *breakpoint.Viewport

	fd         int
	size       SizeFunc
	isTerminal func(fd int) bool
	cellWidth  atomic.Int64
	fallback   int
	poll       time.Duration
	log        logx.Logger
}

func New(vp *breakpoint.Viewport, opts ...Option) *Source {
	s := &Source{
		vp:         vp,
		fd:         int(os.Stdout.Fd()),
		size:       term.GetSize,
		isTerminal: term.IsTerminal,
		fallback:   DefaultFallbackWidth,
		poll:       defaultPollInterval,
		log:        logx.Nop(),
	}
	s.cellWidth.Store(DefaultCellWidth)
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Source) Viewport() *breakpoint.Viewport { return s.vp }

// SetCellWidth changes the column to pixel factor and re-samples.
func (s *Source) SetCellWidth(px int) {
	if px <= 0 {
		px = DefaultCellWidth
	}
	if s.cellWidth.Swap(int64(px)) != int64(px) {
		s.Sample()
	}
}

// Columns returns the current column count, or the fallback width when fd
// is not a terminal or its size cannot be read.
func (s *Source) Columns() int {
	if !s.isTerminal(s.fd) {
		return s.fallback
	}
	cols, _, err := s.size(s.fd)
	if err != nil || cols <= 0 {
		s.log.Debug("terminal size unavailable; using fallback", logx.Err(err), logx.Int("fallback", s.fallback))
		return s.fallback
	}
	return cols
}

// Sample reads the terminal width once and resizes the viewport. It returns
// the width in pixels.
func (s *Source) Sample() int {
	px := s.Columns() * int(s.cellWidth.Load())
	if px != s.vp.Width() {
		s.log.Trace("viewport resize", logx.Int("width", px))
	}
	s.vp.Resize(px)
	return px
}

// Run samples once, then re-samples on every resize signal or poll tick
// until ctx is canceled. A non-terminal fd is sampled only once.
func (s *Source) Run(ctx context.Context) error {
	s.Sample()
	if !s.isTerminal(s.fd) {
		s.log.Debug("not a terminal; width fixed", logx.Int("width", s.vp.Width()))
		<-ctx.Done()
		return nil
	}

	resized, stop := notifyResize()
	defer stop()

	var tick <-chan time.Time
	if s.poll > 0 {
		t := time.NewTicker(s.poll)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-resized:
			s.Sample()
		case <-tick:
			s.Sample()
		}
	}
}
