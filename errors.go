package iomux

import "errors"

// Sentinel errors covering the taxonomy in SPEC_FULL.md §7. Every fallible
// OS call elsewhere in this module wraps its error with os.NewSyscallError,
// matching the teacher's convention throughout internal/socket and the
// dispatch loop.
var (
	// ErrWouldBlock is normal back-pressure: the operation returned
	// nothing yet and the caller should re-arm and wait for the next
	// event. Never logged as an error.
	ErrWouldBlock = errors.New("iomux: operation would block")

	// ErrInProgress names the connect-in-progress condition. Connect does
	// not return it: a kicked-off asynchronous connect returns nil and
	// leaves the socket CONNECTING.
	ErrInProgress = errors.New("iomux: connect in progress")

	// ErrAlready is returned by Connect when called on a socket that is
	// already CONNECTING or CONNECTED.
	ErrAlready = errors.New("iomux: operation already in progress")

	// ErrSocketClosed is returned by Connect when the address needs
	// resolving and the socket has no owning EventLoop to run the
	// resolver. Other operations on a closed socket report the OS error
	// for the released handle instead.
	ErrSocketClosed = errors.New("iomux: socket is closed")

	// ErrUnsupportedOption is returned by SetOption/GetOption for a
	// logical option with no native equivalent on the current platform
	// (e.g. DONT_FRAGMENT on most BSDs). The socket's state is left
	// untouched.
	ErrUnsupportedOption = errors.New("iomux: socket option not supported on this platform")

	// ErrResolveFailed reports a name resolution that yielded no usable
	// address: a lookup that returned no addresses, or a host given to
	// SendTo or DoConnect that is not a literal IP and cannot be looked
	// up. When Connect's resolver fails, the CLOSE event carries the
	// resolver's own error.
	ErrResolveFailed = errors.New("iomux: address resolution failed")
)
