// Package media turns breakpoint states into toast messages.
package media

import (
	"fmt"

	"mediatrack/pkg/breakpoint"
)

// Topic carries a breakpoint.State published by the tracker handler.
const Topic = "match:media"

// Describe formats st as a CSS-like media description.
func Describe(st breakpoint.State) string {
	switch {
	case st.IsExact():
		return fmt.Sprintf("width: %dpx", st.Width)
	case !st.Bounded():
		return fmt.Sprintf("min-width: %dpx, width: %dpx", st.MinWidth, st.Width)
	default:
		return fmt.Sprintf("max-width: %dpx, min-width: %dpx, width: %dpx", st.MaxWidth, st.MinWidth, st.Width)
	}
}
