//go:build windows

package iomux

import "golang.org/x/sys/windows"

// eventSignalBackend is a manual-reset Win32 event object. Grounded in the
// original's Windows EventDispatcher (WSACreateEvent/WSASetEvent/
// WSAResetEvent/WSACloseEvent) and in other_examples/Danukeru-
// KLINIKAL__event_objects.go's channel-based model of the same semantics
// (signal = non-blocking send, reset = drain); this backend uses the real
// windows.CreateEvent/SetEvent/ResetEvent/CloseHandle primitives instead of
// a channel stand-in, since a genuine Windows build can call them directly.
type eventSignalBackend struct {
	handle windows.Handle
}

func newSignalBackend() (signalBackend, error) {
	// manualReset=true, initialState=false: mirrors WSA_EVENT semantics
	// used for WSAEventSelect fan-out (see eventloop_windows.go).
	h, err := windows.CreateEvent(nil, 1 /* manual reset */, 0 /* nonsignaled */, nil)
	if err != nil {
		return nil, err
	}
	return &eventSignalBackend{handle: h}, nil
}

func (e *eventSignalBackend) signal() error {
	return windows.SetEvent(e.handle)
}

func (e *eventSignalBackend) drain() {
	_ = windows.ResetEvent(e.handle)
}

func (e *eventSignalBackend) descriptor() Handle   { return InvalidHandle }
func (e *eventSignalBackend) eventObject() uintptr { return uintptr(e.handle) }

func (e *eventSignalBackend) close() error {
	return windows.CloseHandle(e.handle)
}
