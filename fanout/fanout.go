package fanout

import (
	"github.com/ncrafter/iomux"
	"github.com/ncrafter/iomux/internal/telemetry"
)

// ConnHandler is invoked once per accepted connection, on the accepting
// loop's Wait goroutine, after the dispatcher has been registered with the
// worker loop it was assigned to and before that worker is woken; it is
// where the dispatcher's OnRead/OnWrite/OnClose callbacks are set.
type ConnHandler func(conn *iomux.SocketDispatcher)

// Group owns one accepting EventLoop and N worker EventLoops, and
// distributes each accepted connection to a worker chosen by a
// LoadBalancing strategy. Adapted from the teacher's per-process
// multicore fan-out (main reactor accepts, sub-reactors handle I/O); here
// the loops are plain iomux.EventLoops the caller also owns and runs
// (fanout does not spawn goroutines for them), since an EventLoop's Wait
// must be pumped by its caller.
type Group struct {
	accept   *iomux.EventLoop
	balancer loadBalancer
	handler  ConnHandler
}

// NewGroup creates a fanout Group. acceptLoop is the EventLoop that will
// own the listening socket; workers are the loops new connections are
// distributed across (acceptLoop may also appear in workers).
func NewGroup(acceptLoop *iomux.EventLoop, workers []*iomux.EventLoop, kind LoadBalancing, handler ConnHandler) *Group {
	lb := newLoadBalancer(kind)
	for _, w := range workers {
		lb.register(w)
	}
	return &Group{accept: acceptLoop, balancer: lb, handler: handler}
}

// Listen binds and listens addr on the accept loop, setting an OnAccept
// callback that hands each new connection to the least-loaded (or
// next, per the chosen strategy) worker loop.
func (g *Group) Listen(addr string, backlog int) (*iomux.SocketDispatcher, error) {
	d, err := g.accept.CreateAsyncSocket(iomux.SocketStream)
	if err != nil {
		return nil, err
	}
	if err := d.Bind(addr); err != nil {
		return nil, err
	}
	if err := d.Listen(backlog); err != nil {
		return nil, err
	}

	d.OnAccept = func() {
		g.acceptOne(d)
	}
	return d, nil
}

func (g *Group) acceptOne(listener *iomux.SocketDispatcher) {
	child, err := listener.Accept()
	if err != nil {
		if err != iomux.ErrWouldBlock {
			telemetry.ErrorF("fanout: accept failed: %v", err)
		}
		return
	}
	worker := g.balancer.next(child.RemoteAddr())
	conn := worker.WrapSocket(child)
	if g.handler != nil {
		g.handler(conn)
	}
	_ = worker.WakeUp()
}
