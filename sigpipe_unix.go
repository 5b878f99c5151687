//go:build unix

package iomux

import (
	"os/signal"
	"syscall"
)

// SIGPIPE from writing to a stream whose peer has shut down its read side
// must not take down the process. Per-call suppression (MSG_NOSIGNAL on
// Linux, SO_NOSIGPIPE on Darwin/BSD) is not available in a single portable
// call through golang.org/x/sys/unix across every POSIX target this module
// builds for, so the chosen mechanism is the portable fallback: ignore
// SIGPIPE process-wide at package init, matching SPEC_FULL.md §6.
func init() {
	signal.Ignore(syscall.SIGPIPE)
}
