//go:build unix

package iomux

import (
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// Wait implements the POSIX backend of the dispatch algorithm (§4.4) using
// select(2), as mandated over epoll/kqueue for this module. Adapted from
// the teacher's internal/netpoll/select_netpoll.go skeleton, completed and
// generalized from a raw read/write fd pair into full dispatcher fan-out.
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

		var rfds, wfds unix.FdSet
		maxFD := 0
		type watched struct {
			d                  Dispatcher
			wantRead, wantWrite bool
		}
		watchList := make([]watched, 0, len(dispatchers))

		for _, d := range dispatchers {
			if !processIO {
				if _, isSignal := d.(*waker); !isSignal {
					if _, isPosix := d.(*posixSignalDispatcher); !isPosix {
						continue
					}
				}
			}
			h := d.Descriptor()
			if h == InvalidHandle {
				continue
			}
			fd := int(h)
			events := d.RequestedEvents()
			wantRead := events.Has(EventRead) || events.Has(EventAccept)
			wantWrite := events.Has(EventWrite) || events.Has(EventConnect)
			if !wantRead && !wantWrite {
				continue
			}
			if wantRead {
				fdSetSet(&rfds, fd)
			}
			if wantWrite {
				fdSetSet(&wfds, fd)
			}
			if fd > maxFD {
				maxFD = fd
			}
			watchList = append(watchList, watched{d, wantRead, wantWrite})
		}

		var tv *unix.Timeval
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			t := unix.NsecToTimeval(remaining.Nanoseconds())
			tv = &t
		}

		n, err := unix.Select(maxFD+1, &rfds, &wfds, nil, tv)
		if err != nil {
			if err == unix.EINTR {
				continue // signal self-pipe re-enters naturally
			}
			return false
		}
		if n == 0 {
			if hasDeadline && !time.Now().Before(deadline) {
				return true
			}
			continue
		}

		// Compute readiness for every watched dispatcher up front, but defer
		// actually firing OnPreEvent/OnEvent to registry.iterate below: a
		// flat range over watchList would still call OnEvent on a
		// dispatcher an earlier callback in this same batch already
		// removed from the registry, bypassing the cursor-adjustment
		// machinery registry.iterate exists for (see registry.go). Routing
		// every firing through iterate means a removal that lands before a
		// dispatcher's turn causes it to be skipped, exactly like direct
		// registry mutation during iteration.
		type readiness struct {
			events LogicalEvent
			err    error
		}
		ready := make(map[Dispatcher]readiness, len(watchList))

		for _, w := range watchList {
			fd, ok := fdOf(w.d)
			if !ok {
				continue
			}
			readReady := w.wantRead && fdSetIsSet(&rfds, fd)
			writeReady := w.wantWrite && fdSetIsSet(&wfds, fd)
			if !readReady && !writeReady {
				continue
			}

			var sockErr error
			if errno, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); gerr == nil && errno != 0 {
				sockErr = unix.Errno(errno)
			}

			var events LogicalEvent
			requested := w.d.RequestedEvents()
			if readReady {
				if requested.Has(EventAccept) {
					events |= EventAccept
				} else if sockErr != nil || w.d.IsClosed() {
					events |= EventClose
				} else {
					events |= EventRead
				}
			}
			if writeReady {
				if requested.Has(EventConnect) {
					if sockErr != nil {
						events |= EventClose
					} else {
						events |= EventConnect
					}
				} else {
					events |= EventWrite
				}
			}
			if events == 0 {
				continue
			}
			ready[w.d] = readiness{events: events, err: sockErr}
		}

		if len(ready) > 0 {
			l.registry.iterate(func(d Dispatcher) {
				r, ok := ready[d]
				if !ok {
					return
				}
				d.OnPreEvent(r.events)
				d.OnEvent(r.events, r.err)
			})
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

func fdOf(d Dispatcher) (int, bool) {
	h := d.Descriptor()
	if h == InvalidHandle {
		return 0, false
	}
	return int(h), true
}
