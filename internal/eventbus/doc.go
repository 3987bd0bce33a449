// Package eventbus is an in-memory topic emitter used to decouple the
// breakpoint tracker from presentation.
//
// Contract:
//   - Publish runs listeners synchronously on the caller's goroutine.
//   - Listener panics are recovered and logged; they never reach Publish callers.
//   - Channel subscribers (SubscribeChan) are bounded and drop when slow.
package eventbus
