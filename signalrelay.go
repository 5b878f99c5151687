package iomux

// SignalRelay is component C2: it turns an explicit Signal() call, or an
// async OS signal relayed through PosixSignalRouter, into something the
// EventLoop's readiness primitive can observe. On POSIX it is a self-pipe;
// on Windows a manual-reset event object. Its OnEvent is always a no-op —
// the dispatcher exists only to break out of the wait — and OnPreEvent
// drains/resets the underlying primitive so the next iteration starts from
// a clean slate.
//
// waker is the EventLoop's always-registered SignalRelay; WakeUp signals
// it to break a concurrent Wait (see waker below).
type SignalRelay struct {
	backend signalBackend
}

// signalBackend is implemented per-platform (signalrelay_unix.go,
// signalrelay_windows.go).
type signalBackend interface {
	signal() error
	drain()
	descriptor() Handle
	eventObject() uintptr
	close() error
}

func newSignalRelay() (*SignalRelay, error) {
	b, err := newSignalBackend()
	if err != nil {
		return nil, err
	}
	return &SignalRelay{backend: b}, nil
}

// Signal wakes up any goroutine blocked in the EventLoop's readiness
// primitive. Safe from any goroutine.
func (s *SignalRelay) Signal() error { return s.backend.signal() }

func (s *SignalRelay) RequestedEvents() LogicalEvent { return EventRead }
func (s *SignalRelay) Descriptor() Handle             { return s.backend.descriptor() }
func (s *SignalRelay) EventObject() uintptr           { return s.backend.eventObject() }
func (s *SignalRelay) IsClosed() bool                 { return false }
func (s *SignalRelay) OnPreEvent(LogicalEvent)        { s.backend.drain() }
func (s *SignalRelay) OnEvent(LogicalEvent, error)    {}
func (s *SignalRelay) Close() error                   { return s.backend.close() }

// waker is the EventLoop's always-registered dispatcher: a SignalRelay whose
// readability ends the blocking wait. waitFlag points at the loop's wake
// flag, which WakeUp raises under wakerMu before signalling and which Wait
// reads and resets after dispatching, returning when it was raised
// (SPEC_FULL.md §4.4 step 9). The waker's own OnPreEvent only drains the
// primitive and leaves the flag alone.
type waker struct {
	*SignalRelay
	waitFlag *bool
}

func newWaker(waitFlag *bool) (*waker, error) {
	r, err := newSignalRelay()
	if err != nil {
		return nil, err
	}
	return &waker{SignalRelay: r, waitFlag: waitFlag}, nil
}
