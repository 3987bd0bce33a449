//go:build unix

package terminal

import (
	"os"
	"os/signal"
	"syscall"
)

// SIGWINCH covers every resize.
const defaultPollInterval = 0

func notifyResize() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	return ch, func() { signal.Stop(ch) }
}
