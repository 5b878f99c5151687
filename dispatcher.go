package iomux

// Handle is the OS-level descriptor a Dispatcher polls. On POSIX this is a
// file descriptor; on Windows it is a SOCKET or event handle cast to
// uintptr. InvalidHandle is the sentinel returned by dispatchers that are
// backed by a native event object rather than a pollable descriptor (see
// EventHandle).
type Handle uintptr

// InvalidHandle marks a Dispatcher whose readiness is reported exclusively
// through EventHandle (e.g. SignalRelay on Windows, or any event-object
// backed dispatcher).
const InvalidHandle Handle = ^Handle(0)

// Dispatcher is the capability contract (component C1) every event source
// registered with an EventLoop must implement. The loop queries
// RequestedEvents at the top of each wait iteration, blocks on Descriptor
// (or EventObject, for event-backed sources), and on readiness calls
// OnPreEvent followed by OnEvent.
type Dispatcher interface {
	// RequestedEvents reports which logical events the loop should watch
	// for in the upcoming wait cycle.
	RequestedEvents() LogicalEvent

	// Descriptor returns the OS handle to poll, or InvalidHandle if this
	// dispatcher is event-object backed (see EventObject).
	Descriptor() Handle

	// IsClosed is called only when the loop observes readability; it
	// returns true once the handle has reached end-of-stream.
	// Implementations may peek non-destructively to decide.
	IsClosed() bool

	// OnPreEvent performs invariant updates that must happen before any
	// user-visible signal is emitted (e.g. CONNECTING -> CONNECTED). It
	// must not call back into the event loop or registry.
	OnPreEvent(events LogicalEvent)

	// OnEvent emits application-level signals for events. err carries an
	// OS error harvested via SO_ERROR (POSIX) or FD_CLOSE (Windows) when
	// applicable. OnEvent may mutate the registry, including removing
	// itself.
	OnEvent(events LogicalEvent, err error)
}

// eventObjectDispatcher is implemented by dispatchers that are backed by a
// native event object rather than (or in addition to) a pollable
// descriptor: SignalRelay on every platform, and on Windows every
// SocketDispatcher (each gets its own manual-reset event armed via
// WSAEventSelect, since WSAWaitForMultipleEvents needs one distinguishable
// handle per socket to report which one fired).
type eventObjectDispatcher interface {
	// EventObject returns the native event handle, or 0 if none.
	EventObject() uintptr
}
