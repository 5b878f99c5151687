package iomux

import "sync/atomic"

var dispatcherIDs uint64

// SocketDispatcher is component C4: it composes a Dispatcher onto a
// PhysicalSocket, ties the socket's enabled-events mask into the event
// loop, and emits logical events as signal callbacks in the fixed order
// READ/ACCEPT, WRITE, CONNECT, CLOSE. Grounded on the original's
// SocketDispatcher; the teacher had no direct equivalent (conn.go
// hardcoded epoll callbacks), so the shape follows the original.
//
// Each dispatcher carries an identity token captured at the start of
// OnEvent and re-checked before every subsequent signal in that batch, so
// a handler that closes the socket mid-batch cannot cause a later signal
// to fire against a reused handle.
type SocketDispatcher struct {
	*PhysicalSocket

	id uint64

	OnRead    func()
	OnWrite   func()
	OnConnect func()
	OnAccept  func()
	OnClose   func(err error)

	signalClose    bool
	signalCloseErr error
}

func newSocketDispatcher(sock *PhysicalSocket) *SocketDispatcher {
	return &SocketDispatcher{
		PhysicalSocket: sock,
		id:             atomic.AddUint64(&dispatcherIDs, 1),
	}
}

// Close shadows PhysicalSocket.Close to additionally bump this
// dispatcher's identity token, so a handler that closes the socket
// mid-OnEvent-batch causes the identity re-check in OnEvent to fail and
// stop emitting further signals for this batch against the now-closed
// (and possibly OS-reused) handle, and to deregister the dispatcher from
// its EventLoop — mirroring the original's SocketDispatcher::Close, which
// calls ss_->Remove(this) before releasing the handle, so a closed socket
// does not stay registered and polled forever.
func (d *SocketDispatcher) Close() error {
	if d.closedForRemoval() {
		return nil
	}
	atomic.AddUint64(&d.id, 1)
	if d.server != nil {
		d.server.Remove(d)
	}
	return d.PhysicalSocket.Close()
}

// IsClosed performs the non-destructive one-byte peek the contract
// describes: only meaningful once the loop has observed read-readiness.
func (d *SocketDispatcher) IsClosed() bool {
	if d.State() == StateClosed {
		return true
	}
	return !d.peekReadable()
}

// OnPreEvent applies invariant state transitions that must land before any
// user-visible signal fires: CONNECT completes the CONNECTING->CONNECTED
// transition, CLOSE transitions to CLOSED.
func (d *SocketDispatcher) OnPreEvent(events LogicalEvent) {
	if events.Has(EventConnect) {
		d.setState(StateConnected)
	}
	if events.Has(EventClose) {
		d.setState(StateClosed)
	}
}

// OnEvent emits, in order, READ/ACCEPT, WRITE, CONNECT, CLOSE — clearing
// each bit from enabled_events before its signal fires so a handler can
// re-arm by requesting more I/O, and re-checking the identity token before
// each emission.
func (d *SocketDispatcher) OnEvent(events LogicalEvent, err error) {
	token := atomic.LoadUint64(&d.id)

	emit := func(bit LogicalEvent, fn func()) bool {
		if !events.Has(bit) || fn == nil {
			return true
		}
		d.disable(bit)
		fn()
		return atomic.LoadUint64(&d.id) == token
	}

	if events.Has(EventAccept) {
		if !emit(EventAccept, d.OnAccept) {
			return
		}
	} else if events.Has(EventRead) {
		if !emit(EventRead, d.OnRead) {
			return
		}
	}
	if !emit(EventWrite, d.OnWrite) {
		return
	}
	if !emit(EventConnect, d.OnConnect) {
		return
	}
	if events.Has(EventClose) {
		d.disable(EventClose)
		if d.OnClose != nil {
			d.OnClose(err)
		}
	}
}
