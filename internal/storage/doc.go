// Package storage provides a minimal persistence layer for the notifier.
//
// It currently supports:
//   - Toast history appends (what was shown, when)
//   - Optional notifier dedup state (to survive restarts)
//
// Breakpoint configuration and range state are never persisted here.
package storage
