//go:build windows

package iomux

import (
	"runtime"
	"time"

	"golang.org/x/sys/windows"

	isock "github.com/ncrafter/iomux/internal/socket"
)

// wsaMaxEvents mirrors WSA_MAXIMUM_WAIT_EVENTS: WSAWaitForMultipleEvents
// cannot wait on more than this many event objects in one call.
const wsaMaxEvents = 64

// Wait implements the Windows backend: WSAEventSelect arms each socket's
// requested bitmask onto its own manual-reset event object (one per
// socket, rather than the original's single shared event, since Go has no
// cheap way to multiplex many sockets onto one WSAEventSelect registration
// without re-arming between waits); WSAWaitForMultipleEvents blocks on the
// whole batch plus the loop's own SignalRelay event.
func (l *EventLoop) Wait(timeout time.Duration, processIO bool) bool {
	if l.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	l.drainPendingTasks()

	var deadline time.Time
	hasDeadline := timeout >= 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	for {
		dispatchers := l.registry.snapshot()

		type watched struct {
			d     Dispatcher
			event windows.Handle
		}
		watchList := make([]watched, 0, len(dispatchers))

		for _, d := range dispatchers {
			if !processIO {
				if _, isSignal := d.(*waker); !isSignal {
					continue
				}
			}
			eo, ok := d.(eventObjectDispatcher)
			if !ok {
				continue
			}
			ev := windows.Handle(eo.EventObject())
			if ev == windows.InvalidHandle || ev == 0 {
				continue
			}
			if sd, ok := d.(*SocketDispatcher); ok {
				if err := wsaArmEvents(sd, ev); err != nil {
					continue
				}
			}
			watchList = append(watchList, watched{d, ev})
			if len(watchList) >= wsaMaxEvents {
				break
			}
		}

		handles := make([]windows.Handle, len(watchList))
		for i, w := range watchList {
			handles[i] = w.event
		}

		waitMS := uint32(windows.INFINITE)
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			waitMS = uint32(remaining.Milliseconds())
		}

		idx, err := wsaWaitForMultipleEvents(handles, false, waitMS)
		if err == errWaitTimeout {
			return true
		}
		if err != nil {
			return false
		}

		if idx >= 0 && idx < len(watchList) {
			w := watchList[idx]
			var events LogicalEvent
			var sockErr error
			if sd, ok := w.d.(*SocketDispatcher); ok {
				events, sockErr = wsaEnumEvents(sd)
			} else {
				events = EventRead
			}
			if events != 0 {
				w.d.OnPreEvent(events)
				w.d.OnEvent(events, sockErr)
			}
		}

		l.wakerMu.Lock()
		woke := l.wakeFlag
		l.wakeFlag = false
		l.wakerMu.Unlock()
		if woke {
			return true
		}
		if hasDeadline && !time.Now().Before(deadline) {
			return true
		}
	}
}

// wsaArmEvents calls WSAEventSelect to bind sd's requested logical events
// onto ev, translating the logical bitmask to the native FD_* constants.
func wsaArmEvents(sd *SocketDispatcher, ev windows.Handle) error {
	requested := sd.RequestedEvents()
	var mask uint32
	if requested.Has(EventRead) {
		mask |= fdRead | fdClose
	}
	if requested.Has(EventAccept) {
		mask |= fdAccept
	}
	if requested.Has(EventWrite) {
		mask |= fdWrite
	}
	if requested.Has(EventConnect) {
		mask |= fdConnect
	}
	return wsaEventSelect(isock.FD(sd.Handle()), ev, mask)
}

// wsaEnumEvents calls WSAEnumNetworkEvents to read back which native FD_*
// bits actually fired and maps them to LogicalEvent, applying the
// deferred-close peek before committing to CLOSE.
func wsaEnumEvents(sd *SocketDispatcher) (LogicalEvent, error) {
	netEvents, errCodes, err := wsaEnumNetworkEvents(isock.FD(sd.Handle()), windows.Handle(sd.EventObject()))
	if err != nil {
		return 0, err
	}
	var events LogicalEvent
	var sockErr error
	if netEvents&fdAccept != 0 {
		events |= EventAccept
	}
	if netEvents&fdRead != 0 {
		events |= EventRead
	}
	if netEvents&fdWrite != 0 {
		events |= EventWrite
	}
	if netEvents&fdConnect != 0 {
		if errCodes[fdConnectBit] != 0 {
			events |= EventClose
			sockErr = windows.Errno(errCodes[fdConnectBit])
		} else {
			events |= EventConnect
		}
	}
	if netEvents&fdClose != 0 {
		if errCodes[fdCloseBit] != 0 {
			sockErr = windows.Errno(errCodes[fdCloseBit])
			events |= EventClose
		} else if sd.peekReadable() {
			// Data still pending ahead of the FIN: defer CLOSE to a
			// later iteration so the reader drains it first.
			events &^= EventClose
			events |= EventRead
		} else {
			events |= EventClose
		}
	}
	return events, sockErr
}
