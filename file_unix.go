//go:build unix

package iomux

import (
	"sync"

	"golang.org/x/sys/unix"
)

// FileDispatcher wraps an arbitrary readable/writable file descriptor
// (not a socket) as a Dispatcher reporting READ/WRITE without the socket
// state machine — a pipe, a tty, an inherited fd. POSIX-only, per
// SPEC_FULL.md §4.4's CreateFile contract; Windows has no equivalent
// since WSAWaitForMultipleEvents only multiplexes WSA-aware handles.
type FileDispatcher struct {
	mu            sync.Mutex
	fd            int
	enabledEvents LogicalEvent

	OnRead  func()
	OnWrite func()
	OnClose func(err error)

	closed  bool
	removed bool

	loop *EventLoop
}

// CreateFile wraps fd as a registered FileDispatcher watching for READ.
func (l *EventLoop) CreateFile(fd int) *FileDispatcher {
	d := &FileDispatcher{fd: fd, enabledEvents: EventRead, loop: l}
	l.Add(d)
	return d
}

func (f *FileDispatcher) RequestedEvents() LogicalEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabledEvents
}

func (f *FileDispatcher) Descriptor() Handle { return Handle(f.fd) }

func (f *FileDispatcher) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FileDispatcher) OnPreEvent(LogicalEvent) {}

func (f *FileDispatcher) OnEvent(events LogicalEvent, err error) {
	if events.Has(EventRead) {
		f.disable(EventRead)
		if f.OnRead != nil {
			f.OnRead()
		}
	}
	if events.Has(EventWrite) {
		f.disable(EventWrite)
		if f.OnWrite != nil {
			f.OnWrite()
		}
	}
	if events.Has(EventClose) {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		if f.OnClose != nil {
			f.OnClose(err)
		}
	}
}

func (f *FileDispatcher) enable(events LogicalEvent) {
	f.mu.Lock()
	f.enabledEvents |= events
	f.mu.Unlock()
}

func (f *FileDispatcher) disable(events LogicalEvent) {
	f.mu.Lock()
	f.enabledEvents &^= events
	f.mu.Unlock()
}

// Read performs a single non-blocking read; on EAGAIN it re-arms READ and
// returns ErrWouldBlock.
func (f *FileDispatcher) Read(buf []byte) (int, error) {
	n, err := unix.Read(f.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			f.enable(EventRead)
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		f.enable(EventRead)
		return 0, ErrWouldBlock
	}
	return n, nil
}

// Write performs a single non-blocking write; on EAGAIN it re-arms WRITE
// and returns ErrWouldBlock.
func (f *FileDispatcher) Write(buf []byte) (int, error) {
	n, err := unix.Write(f.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			f.enable(EventWrite)
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

// Close deregisters from the EventLoop that created it, then closes the
// underlying descriptor. Idempotent.
func (f *FileDispatcher) Close() error {
	f.mu.Lock()
	if f.removed {
		f.mu.Unlock()
		return nil
	}
	f.removed = true
	f.mu.Unlock()

	if f.loop != nil {
		f.loop.Remove(f)
	}
	return unix.Close(f.fd)
}
