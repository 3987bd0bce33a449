// Package breakpoint tracks a viewport width against a sorted set of
// breakpoints and reports the active range whenever the width crosses one.
//
// A Tracker owns:
//   - the normalized breakpoint set (deduplicated, ascending, with sentinels)
//   - two Query watchers per breakpoint on a Source
//   - a resize debouncer (fixed delay) and a frame debouncer (next frame)
//   - exactly one Handler
//
// Range resolution is a binary search over the set and always yields either
// an exact match or the pair of breakpoints straddling the width.
//
// # Concurrency
//
// Sources may deliver signals from any goroutine. The tracker serializes
// handler dispatch, so a Handler never runs concurrently with itself.
package breakpoint
