//go:build windows

package iomux

// PosixSignalRouter has no Windows equivalent: Windows has no async
// POSIX-style signal delivery to bridge into the loop. SetPosixSignalHandler
// and WithPosixSignalRouter are accepted on this platform for API symmetry
// but are no-ops beyond reporting ErrUnsupportedOption.

func (l *EventLoop) enablePosixSignalRouter() error {
	return ErrUnsupportedOption
}

// SetPosixSignalHandler is unsupported on Windows.
func SetPosixSignalHandler(signum int, fn func(signum int)) error {
	return ErrUnsupportedOption
}
