//go:build !unix

package terminal

import (
	"os"
	"time"
)

const defaultPollInterval = 250 * time.Millisecond

// No resize signal here; Run relies on polling.
func notifyResize() (<-chan os.Signal, func()) {
	return nil, func() {}
}
