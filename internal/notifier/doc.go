// Package notifier shows short-lived toast messages.
//
// A toast carries a text, a severity and the icon for that severity. Toasts
// are queued and handed to a Presenter by a small worker pool; the service
// applies a token-bucket rate limit, suppresses duplicates inside a dedup
// window and retries presenter failures with jittered backoff.
//
// # Lifetime
//
// A shown toast stays in the active set until it is dismissed explicitly or
// its DismissAfter timer expires (4s by default).
//
// # Events
//
// When an emitter is configured the service publishes lifecycle events on
// the toast:* topics. Each event carries a single ToastEvent.
//
// # History
//
// The service keeps a bounded in-memory history of shown toasts and, when a
// store is configured, appends them to it best-effort.
package notifier
