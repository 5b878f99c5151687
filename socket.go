package iomux

import (
	"net"
	"sync"
)

// PhysicalSocket is component C3: it owns one OS socket handle, offers
// BSD-style operations, and maintains connection state plus the
// "events I am waiting for" bitmask. Grounded on the teacher's socket
// wrapper conventions (internal/socket helpers) generalized to the full
// state machine and name-resolution integration SPEC_FULL.md §4.2
// describes; the teacher itself had no equivalent type (it wrapped raw
// fds directly in conn.go), so this type's shape follows the original
// C++ PhysicalSocket rather than a teacher file.
type PhysicalSocket struct {
	mu sync.Mutex

	handle Handle
	isUDP  bool
	family int

	state         ConnState
	enabledEvents LogicalEvent
	lastErr       error

	localAddr  net.Addr
	remoteAddr net.Addr

	resolver   *AsyncResolver
	resolverID uint64

	// winEvent is the per-socket manual-reset Win32 event object used by
	// the Windows WSAEventSelect backend (eventloop_windows.go); unused on
	// POSIX, kept here rather than behind a build tag so PhysicalSocket's
	// shape does not fork across platforms.
	winEvent Handle

	server *EventLoop
}

// Error returns the last recorded OS error, or nil.
func (s *PhysicalSocket) Error() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *PhysicalSocket) setError(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

// State reports the socket's current ConnState.
func (s *PhysicalSocket) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *PhysicalSocket) setState(st ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Handle returns the underlying OS descriptor.
func (s *PhysicalSocket) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Descriptor returns the underlying OS handle; SocketDispatcher inherits it
// as its Dispatcher method.
func (s *PhysicalSocket) Descriptor() Handle {
	return s.Handle()
}

// RequestedEvents returns enabled_events; SocketDispatcher inherits it as
// its Dispatcher method. A raw PhysicalSocket (EventLoop.CreateSocket's
// rarely-used path) is not itself a Dispatcher and is never registered.
func (s *PhysicalSocket) RequestedEvents() LogicalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabledEvents
}

func (s *PhysicalSocket) enable(events LogicalEvent) {
	s.mu.Lock()
	s.enabledEvents |= events
	s.mu.Unlock()
}

func (s *PhysicalSocket) disable(events LogicalEvent) {
	s.mu.Lock()
	s.enabledEvents &^= events
	s.mu.Unlock()
}

// RequestEvents re-arms events on enabled_events so the next Wait
// iteration watches for them again — the mechanism by which a handler
// that consumed a READ or WRITE signal asks to be notified again.
func (s *PhysicalSocket) RequestEvents(events LogicalEvent) {
	s.enable(events)
}

// CancelEvents clears events from enabled_events, stopping the loop from
// watching for them until RequestEvents re-arms them.
func (s *PhysicalSocket) CancelEvents(events LogicalEvent) {
	s.disable(events)
}

// LocalAddr returns the address bound or connected from, if known.
func (s *PhysicalSocket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localAddr
}

// RemoteAddr returns the connected peer address, if known.
func (s *PhysicalSocket) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteAddr
}

// GetOption reads a logical socket option. DONT_FRAGMENT is not portable
// on all BSD-family systems and reports ErrUnsupportedOption there without
// touching socket state, per SPEC_FULL.md §4.2.
func (s *PhysicalSocket) GetOption(opt LogicalOption) (int, error) {
	return s.getOption(opt)
}

// SetOption writes a logical socket option.
func (s *PhysicalSocket) SetOption(opt LogicalOption, value int) error {
	return s.setOption(opt, value)
}

// Connect starts an asynchronous connect to addr, which may be an
// unresolved hostname:port. If addr cannot be parsed as a literal address,
// an AsyncResolver is started and DoConnect runs on its completion;
// otherwise the connect is kicked off immediately via DoConnect.
//
// Connect requires the socket be CLOSED; any other state fails with
// ErrAlready, matching the original's ALREADY contract.
func (s *PhysicalSocket) Connect(addr string) error {
	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return s.setError(ErrAlready)
	}
	s.mu.Unlock()

	host, _, err := net.SplitHostPort(addr)
	if err == nil && net.ParseIP(host) != nil {
		return s.DoConnect(addr)
	}

	s.setState(StateConnecting)
	if s.server == nil {
		return s.setError(ErrSocketClosed)
	}
	r, id := s.server.startResolve(addr, func(resolved string, resolveErr error) {
		if resolveErr != nil {
			s.setError(resolveErr)
			// Close the socket and deliver CLOSE, carrying the resolution
			// error, to the dispatcher that wraps it, if one is registered.
			for _, d := range s.server.registry.snapshot() {
				if sd, ok := d.(*SocketDispatcher); ok && sd.PhysicalSocket == s {
					_ = sd.Close()
					sd.OnPreEvent(EventClose)
					sd.OnEvent(EventClose, resolveErr)
					return
				}
			}
			_ = s.Close()
			return
		}
		_ = s.DoConnect(resolved)
	})
	s.mu.Lock()
	s.resolver, s.resolverID = r, id
	s.mu.Unlock()
	return nil
}

// DoConnect performs the actual OS-level connect against a resolved
// address; split out from Connect so a resolver completion can invoke it
// without re-checking hostname parsing.
func (s *PhysicalSocket) DoConnect(resolvedAddr string) error {
	return s.doConnect(resolvedAddr)
}

// closedForRemoval reports whether Close has already run to completion, so
// a Dispatcher wrapping this socket (SocketDispatcher) can tell whether it
// still needs to deregister from its EventLoop before tearing down the
// handle, without deregistering twice.
func (s *PhysicalSocket) closedForRemoval() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed && s.handle == InvalidHandle
}

// Close is idempotent: it drops any in-flight resolver, clears enabled
// events, releases the OS handle, and transitions to CLOSED.
func (s *PhysicalSocket) Close() error {
	s.mu.Lock()
	if s.state == StateClosed && s.handle == InvalidHandle {
		s.mu.Unlock()
		return nil
	}
	resolver := s.resolver
	s.resolver = nil
	s.enabledEvents = 0
	s.state = StateClosed
	s.mu.Unlock()

	if resolver != nil {
		resolver.cancel()
	}
	return s.closeHandle()
}
