package iomux

import (
	"sync"
	"time"

	"github.com/ncrafter/iomux/internal/taskqueue"
)

// Forever means "block until woken, with no deadline" when passed to Wait.
const Forever time.Duration = -1

// EventLoop is component C5 (SocketServer): it holds the dispatcher
// registry, runs Wait, demultiplexes OS readiness into logical events, and
// dispatches. Grounded on the teacher's event_loop.go for overall shape
// (registry + wakeup + options), generalized to the full dispatcher-based
// design SPEC_FULL.md §4.4 describes; the readiness backend itself lives
// in eventloop_posix.go / eventloop_windows.go.
type EventLoop struct {
	opts *Options

	registry *dispatcherRegistry

	wakerMu  sync.Mutex
	wakeFlag bool
	waker    *waker

	pending *taskqueue.Queue

	posixRouterOnce sync.Once
	posixDispatcher *posixSignalDispatcher

	closed bool
	mu     sync.Mutex
}

// NewEventLoop constructs a loop with its always-registered SignalRelay
// already wired in.
func NewEventLoop(optFuncs ...OptionFunc) (*EventLoop, error) {
	opts := loadOptions(optFuncs...)
	loop := &EventLoop{
		opts:    opts,
		pending: taskqueue.New(),
	}
	loop.registry = newDispatcherRegistry()

	w, err := newWaker(&loop.wakeFlag)
	if err != nil {
		return nil, err
	}
	loop.waker = w
	loop.registry.add(w)

	if opts.EnablePosixSignalRouter {
		if err := loop.enablePosixSignalRouter(); err != nil && err != ErrUnsupportedOption {
			return nil, err
		}
	}
	return loop, nil
}

// Add registers d with the loop. Idempotent.
func (l *EventLoop) Add(d Dispatcher) {
	l.registry.add(d)
}

// Remove deregisters d. Panics if d is not currently registered, matching
// the original's ASSERT-on-double-remove contract.
func (l *EventLoop) Remove(d Dispatcher) {
	l.registry.remove(d)
}

// WakeUp causes any concurrent Wait to return no later than the next
// readiness cycle. Safe from any goroutine.
func (l *EventLoop) WakeUp() error {
	l.wakerMu.Lock()
	l.wakeFlag = true
	l.wakerMu.Unlock()
	return l.waker.Signal()
}

// CreateSocket creates a raw, non-dispatcher socket: not registered with
// the loop, rarely used directly (most callers want CreateAsyncSocket).
func (l *EventLoop) CreateSocket(typ SocketType) (*PhysicalSocket, error) {
	return newPhysicalSocket(l, typ)
}

// CreateAsyncSocket creates a SocketDispatcher, registers it with the
// loop, and returns it.
func (l *EventLoop) CreateAsyncSocket(typ SocketType) (*SocketDispatcher, error) {
	sock, err := newPhysicalSocket(l, typ)
	if err != nil {
		return nil, err
	}
	d := newSocketDispatcher(sock)
	l.Add(d)
	return d, nil
}

// WrapSocket adopts an existing OS handle (e.g. from Accept) as a
// registered SocketDispatcher.
func (l *EventLoop) WrapSocket(sock *PhysicalSocket) *SocketDispatcher {
	sock.server = l
	d := newSocketDispatcher(sock)
	l.Add(d)
	return d
}

// startResolve starts an AsyncResolver for addr and returns it along with
// a correlation id; onDone runs on the wait goroutine via the pending-task
// queue.
func (l *EventLoop) startResolve(addr string, onDone func(string, error)) (*AsyncResolver, uint64) {
	r := newAsyncResolver(l, onDone)
	r.Start(addr)
	return r, r.id
}

// postPendingTask enqueues f to run at the top of the next Wait iteration,
// on the wait goroutine. Safe from any goroutine.
func (l *EventLoop) postPendingTask(f func()) {
	l.pending.Enqueue(f)
}

// drainPendingTasks runs step 1 of the dispatch algorithm: apply every
// queued task before computing readiness for this iteration.
func (l *EventLoop) drainPendingTasks() {
	l.pending.DrainAll()
}

// Load reports the number of currently registered dispatchers, including
// the loop's own always-registered SignalRelay. Used by fanout.Group's
// least-connections balancer as a proxy for how busy a loop is.
func (l *EventLoop) Load() int {
	return l.registry.len()
}

// Close tears down the loop's own SignalRelay. It does not remove the POSIX
// signal dispatcher, which stays registered with the process-global
// router, and it does not close caller-owned sockets.
func (l *EventLoop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.waker.Close()
}
