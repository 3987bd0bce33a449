package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ToastRecord is one shown toast. Keep it compact and schema-stable.
// Session identifies the process that showed it; ids restart per session.
type ToastRecord struct {
	At       time.Time `json:"at"`
	Session  string    `json:"session,omitempty"`
	ID       uint64    `json:"id"`
	Severity string    `json:"severity"`
	Text     string    `json:"text"`
}
