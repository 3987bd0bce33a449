package breakpoint

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Unbounded is the upper sentinel. A State whose MaxWidth is Unbounded lies
// above the highest configured breakpoint.
const Unbounded = math.MaxInt

var (
	ErrInvalidConfiguration = errors.New("invalid breakpoint configuration")
	ErrAlreadyTracking      = errors.New("tracker already tracking")
)

// Normalize returns a deduplicated, ascending copy of widths bracketed by
// the 0 and Unbounded sentinels. The input is not modified.
func Normalize(widths []int) ([]int, error) {
	if len(widths) == 0 {
		return nil, fmt.Errorf("%w: breakpoints must be a non-empty list", ErrInvalidConfiguration)
	}
	out := make([]int, 0, len(widths)+2)
	out = append(out, 0)
	for i, w := range widths {
		if w < 0 {
			return nil, fmt.Errorf("%w: breakpoint[%d] = %d is negative", ErrInvalidConfiguration, i, w)
		}
		out = append(out, w)
	}
	out = append(out, Unbounded)
	slices.Sort(out)
	return slices.Compact(out), nil
}

// Compare is the three-way comparator used by Resolve.
func Compare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Resolve binary-searches set (as returned by Normalize) for width.
//
// An exact hit short-circuits to an exact State. Otherwise, on loop exit high
// is the largest index below low, so set[high] < width < set[low].
func Resolve(set []int, width int) State {
	low, high := 0, len(set)-1
	for low <= high {
		mid := int(uint(low+high) >> 1)
		switch Compare(set[mid], width) {
		case -1:
			low = mid + 1
		case 1:
			high = mid - 1
		default:
			return Exact(set[mid])
		}
	}
	minW, maxW := 0, Unbounded
	if high >= 0 {
		minW = set[high]
	}
	if low < len(set) {
		maxW = set[low]
	}
	return Between(minW, maxW, width)
}

// boundaries returns the configured breakpoints that get watchers.
// Sentinels never change their match state, so they are skipped.
func boundaries(set []int) []int {
	out := make([]int, 0, len(set))
	for _, w := range set {
		if w > 0 && w < Unbounded {
			out = append(out, w)
		}
	}
	return out
}
