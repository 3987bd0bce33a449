package notifier

import (
	"fmt"
	"strings"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity accepts the four severity names case-insensitively. An empty
// string is info.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case "":
		return SeverityInfo, nil
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Icon returns the glyph shown in front of a toast.
func (s Severity) Icon() string {
	switch s {
	case SeveritySuccess:
		return "✔"
	case SeverityWarning:
		return "⚠"
	case SeverityError:
		return "✖"
	default:
		return "ℹ"
	}
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Toast is one message handed to a Presenter.
type Toast struct {
	ID       uint64    `json:"id"`
	Text     string    `json:"text"`
	Severity Severity  `json:"severity"`
	Icon     string    `json:"icon"`
	At       time.Time `json:"at"`
	Expires  time.Time `json:"expires"`
}

// Config controls the toast pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
	DismissAfter    time.Duration
	HistorySize     int
}

const (
	DefaultDismissAfter = 4 * time.Second
	DefaultHistorySize  = 300
)

// Topics published on the emitter.
const (
	TopicQueued    = "toast:queued"
	TopicShown     = "toast:shown"
	TopicDismissed = "toast:dismissed"
	TopicDeduped   = "toast:deduped"
	TopicDropped   = "toast:dropped"
	TopicFailed    = "toast:failed"
)

// ToastEvent is the payload of every toast:* topic.
type ToastEvent struct {
	ID       uint64    `json:"id,omitempty"`
	Severity Severity  `json:"severity"`
	Text     string    `json:"text"`
	Key      string    `json:"key,omitempty"`
	At       time.Time `json:"at"`
	Reason   string    `json:"reason,omitempty"`
	Error    string    `json:"error,omitempty"`
}
