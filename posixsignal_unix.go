//go:build unix

package iomux

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// numPosixSignals sizes the flag array, matching the original's
// kNumPosixSignals=128.
const numPosixSignals = 128

// posixSignalRouter is component C6: the process-global bridge between
// asynchronous POSIX signals and the EventLoop. Grounded on the original's
// PosixSignalHandler/PosixSignalDispatcher; see SPEC_FULL.md §4.6 for why
// the OS-facing handler is os/signal.Notify rather than a raw sigaction
// callback.
type posixSignalRouter struct {
	readFD, writeFD int
	flags           [numPosixSignals]int32 // atomic 0/1

	mu            sync.Mutex
	handlers      map[int]func(int)
	notifyCh      chan os.Signal
	registrations []loopRegistration
}

// loopRegistration tracks one EventLoop's posixSignalDispatcher so it can
// be torn down once the router has no handlers left to dispatch.
type loopRegistration struct {
	loop       *EventLoop
	dispatcher *posixSignalDispatcher
}

var (
	routerOnce sync.Once
	router     *posixSignalRouter
	routerErr  error
)

func getPosixSignalRouter() (*posixSignalRouter, error) {
	routerOnce.Do(func() {
		var fds [2]int
		if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
			routerErr = os.NewSyscallError("pipe2", err)
			return
		}
		router = &posixSignalRouter{
			readFD:   fds[0],
			writeFD:  fds[1],
			handlers: make(map[int]func(int)),
			notifyCh: make(chan os.Signal, numPosixSignals),
		}
		go router.relay()
	})
	return router, routerErr
}

// relay stands in for the original's async-signal-safe sigaction handler:
// os/signal has already done the OS-facing work by the time a value
// reaches notifyCh, so this goroutine performs exactly the two operations
// the original handler performed (set flag, write one byte) before
// returning control to the dispatcher.
func (r *posixSignalRouter) relay() {
	for sig := range r.notifyCh {
		n := signalNumber(sig)
		if n < 0 || n >= numPosixSignals {
			continue
		}
		atomic.StoreInt32(&r.flags[n], 1)
		_, _ = unix.Write(r.writeFD, []byte{0})
	}
}

// setHandler installs or removes the user handler for signum. Every call,
// including a removal, calls signal.Notify for signum; SIGKILL/SIGSTOP
// cannot be caught and are rejected by the OS, not by this code. Removing the last handler tears down every loop's
// posixSignalDispatcher registered via enablePosixSignalRouter, mirroring
// the original's "if (!signal_dispatcher_->HasHandlers()) signal_dispatcher_.reset()".
func (r *posixSignalRouter) setHandler(signum int, fn func(int)) {
	r.mu.Lock()
	if fn == nil {
		delete(r.handlers, signum)
	} else {
		r.handlers[signum] = fn
	}
	signal.Notify(r.notifyCh, os.Signal(unix.Signal(signum)))
	r.mu.Unlock()

	if r.hasHandlers() {
		return
	}

	r.mu.Lock()
	stale := r.registrations
	r.registrations = nil
	r.mu.Unlock()

	for _, reg := range stale {
		reg.loop.Remove(reg.dispatcher)
		reg.loop.posixDispatcher = nil
	}
}

func (r *posixSignalRouter) hasHandlers() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers) > 0
}

// registerLoop records that loop's posixSignalDispatcher is live, so a
// later transition to zero handlers knows which loops to remove it from.
func (r *posixSignalRouter) registerLoop(l *EventLoop, d *posixSignalDispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations = append(r.registrations, loopRegistration{loop: l, dispatcher: d})
}

// drainAndDispatch is called by posixSignalDispatcher.OnEvent: drains the
// pipe, scans the flag array clearing each set flag, and invokes the
// registered handler for each signal that fired. A second occurrence of
// the same signal arriving while its flag is still set is coalesced with
// the first, per SPEC_FULL.md §4.6's documented tolerated race.
func (r *posixSignalRouter) drainAndDispatch() {
	var buf [16]byte
	for {
		n, err := unix.Read(r.readFD, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}
	r.mu.Lock()
	handlers := make(map[int]func(int), len(r.handlers))
	for k, v := range r.handlers {
		handlers[k] = v
	}
	r.mu.Unlock()

	for sig := 0; sig < numPosixSignals; sig++ {
		if atomic.CompareAndSwapInt32(&r.flags[sig], 1, 0) {
			if fn, ok := handlers[sig]; ok {
				fn(sig)
			}
		}
	}
}

func signalNumber(sig os.Signal) int {
	if s, ok := sig.(unix.Signal); ok {
		return int(s)
	}
	return -1
}

// posixSignalDispatcher bridges the router's self-pipe into an EventLoop.
// Created by enablePosixSignalRouter (WithPosixSignalRouter(true)) and
// registered with exactly one loop.
type posixSignalDispatcher struct {
	r *posixSignalRouter
}

func newPosixSignalDispatcher(r *posixSignalRouter) *posixSignalDispatcher {
	return &posixSignalDispatcher{r: r}
}

func (d *posixSignalDispatcher) RequestedEvents() LogicalEvent { return EventRead }
func (d *posixSignalDispatcher) Descriptor() Handle             { return Handle(d.r.readFD) }
func (d *posixSignalDispatcher) IsClosed() bool                 { return false }
func (d *posixSignalDispatcher) OnPreEvent(LogicalEvent)        {}
func (d *posixSignalDispatcher) OnEvent(events LogicalEvent, _ error) {
	if events&EventRead != 0 {
		d.r.drainAndDispatch()
	}
}

// enablePosixSignalRouter registers this loop's posixSignalDispatcher with
// the process-global router, used by WithPosixSignalRouter(true).
func (l *EventLoop) enablePosixSignalRouter() error {
	r, err := getPosixSignalRouter()
	if err != nil {
		return err
	}
	l.posixDispatcher = newPosixSignalDispatcher(r)
	l.Add(l.posixDispatcher)
	r.registerLoop(l, l.posixDispatcher)
	return nil
}

// SetPosixSignalHandler installs fn to be invoked (on the goroutine that
// calls EventLoop.Wait) whenever signum is delivered to the process. Pass
// a nil fn to remove a previously installed handler. signum must be in
// [0, 128). This is a process-wide facility; it is independent of any
// particular EventLoop until that loop is constructed with
// WithPosixSignalRouter(true).
func SetPosixSignalHandler(signum int, fn func(signum int)) error {
	r, err := getPosixSignalRouter()
	if err != nil {
		return err
	}
	r.setHandler(signum, fn)
	return nil
}
