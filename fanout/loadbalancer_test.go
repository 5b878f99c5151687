package fanout

import (
	"net"
	"testing"

	"github.com/ncrafter/iomux"
)

func newLoops(t *testing.T, n int) []*iomux.EventLoop {
	t.Helper()
	loops := make([]*iomux.EventLoop, n)
	for i := range loops {
		l, err := iomux.NewEventLoop()
		if err != nil {
			t.Fatalf("new event loop %d: %v", i, err)
		}
		t.Cleanup(func() { _ = l.Close() })
		loops[i] = l
	}
	return loops
}

func TestRoundRobinCyclesInOrder(t *testing.T) {
	loops := newLoops(t, 3)
	lb := newLoadBalancer(RoundRobin)
	for _, l := range loops {
		lb.register(l)
	}

	for i := 0; i < 6; i++ {
		got := lb.next(nil)
		want := loops[i%3]
		if got != want {
			t.Fatalf("call %d: got loop %p, want %p", i, got, want)
		}
	}
}

func TestLeastConnectionsPicksSmallestRegistry(t *testing.T) {
	loops := newLoops(t, 2)
	lb := newLoadBalancer(LeastConnections)
	for _, l := range loops {
		lb.register(l)
	}

	// Load loops[0] up with extra registered dispatchers so loops[1]
	// becomes the lighter loop.
	for i := 0; i < 3; i++ {
		if _, err := loops[0].CreateAsyncSocket(iomux.SocketStream); err != nil {
			t.Fatalf("create socket: %v", err)
		}
	}

	got := lb.next(nil)
	if got != loops[1] {
		t.Fatalf("got loop %p, want the less-loaded loop %p", got, loops[1])
	}
}

func TestSourceAddrHashIsStable(t *testing.T) {
	loops := newLoops(t, 4)
	lb := newLoadBalancer(SourceAddrHash)
	for _, l := range loops {
		lb.register(l)
	}

	addr := &net.TCPAddr{IP: net.ParseIP("203.0.113.7"), Port: 51234}
	first := lb.next(addr)
	for i := 0; i < 10; i++ {
		if got := lb.next(addr); got != first {
			t.Fatalf("call %d: hash balancer returned a different loop for the same address", i)
		}
	}
}
