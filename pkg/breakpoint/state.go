package breakpoint

import "fmt"

// Kind tags the shape of a State.
type Kind uint8

const (
	KindRange Kind = iota
	KindExact
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// State is the result of resolving a width against a breakpoint set.
//
// KindExact carries only Width (equal to a breakpoint). KindRange carries
// MinWidth < Width < MaxWidth, the breakpoints immediately around Width.
type State struct {
	Kind     Kind `json:"kind"`
	Width    int  `json:"width"`
	MinWidth int  `json:"min_width,omitempty"`
	MaxWidth int  `json:"max_width,omitempty"`
}

func Exact(width int) State { return State{Kind: KindExact, Width: width} }

func Between(minWidth, maxWidth, width int) State {
	return State{Kind: KindRange, Width: width, MinWidth: minWidth, MaxWidth: maxWidth}
}

func (s State) IsExact() bool { return s.Kind == KindExact }

// Bounded reports whether a range state has a configured breakpoint above it.
func (s State) Bounded() bool { return s.Kind == KindRange && s.MaxWidth != Unbounded }

// Contains reports whether width resolves to the same state.
func (s State) Contains(width int) bool {
	if s.IsExact() {
		return width == s.Width
	}
	return width > s.MinWidth && width < s.MaxWidth
}

func (s State) String() string {
	switch {
	case s.IsExact():
		return fmt.Sprintf("{width: %d}", s.Width)
	case !s.Bounded():
		return fmt.Sprintf("{minWidth: %d, maxWidth: unbounded, width: %d}", s.MinWidth, s.Width)
	default:
		return fmt.Sprintf("{minWidth: %d, maxWidth: %d, width: %d}", s.MinWidth, s.MaxWidth, s.Width)
	}
}
