// Package fanout demonstrates running several EventLoops behind one
// listening socket, distributing accepted connections across them.
// Adapted from the teacher's loadbalancer.go and linux_tcp_listener.go
// (package shlev, root of SyhanLiu-shlev), generalized from TCP-server
// multicore fan-out (loops pinned to OS threads, one per core) to a
// library-level building block callers wire into their own server loop.
package fanout

import (
	"hash/crc32"
	"net"

	"github.com/ncrafter/iomux"
)

// LoadBalancing selects how a Group distributes new connections across its
// worker loops.
type LoadBalancing int

const (
	// RoundRobin cycles through loops in registration order.
	RoundRobin LoadBalancing = iota
	// LeastConnections sends each new connection to the loop currently
	// holding the fewest registered dispatchers.
	LeastConnections
	// SourceAddrHash sends every connection from the same remote address
	// to the same loop.
	SourceAddrHash
)

type loadBalancer interface {
	register(*iomux.EventLoop)
	next(net.Addr) *iomux.EventLoop
	iterate(func(int, *iomux.EventLoop) bool)
	len() int
}

func newLoadBalancer(kind LoadBalancing) loadBalancer {
	switch kind {
	case LeastConnections:
		return &leastConnectionsLoadBalancer{}
	case SourceAddrHash:
		return &sourceAddrHashLoadBalancer{}
	default:
		return &roundRobinLoadBalancer{}
	}
}

type roundRobinLoadBalancer struct {
	nextIndex int
	loops     []*iomux.EventLoop
}

func (lb *roundRobinLoadBalancer) register(e *iomux.EventLoop) {
	lb.loops = append(lb.loops, e)
}

func (lb *roundRobinLoadBalancer) next(net.Addr) *iomux.EventLoop {
	e := lb.loops[lb.nextIndex]
	lb.nextIndex = (lb.nextIndex + 1) % len(lb.loops)
	return e
}

func (lb *roundRobinLoadBalancer) iterate(f func(int, *iomux.EventLoop) bool) {
	for i, e := range lb.loops {
		if !f(i, e) {
			break
		}
	}
}

func (lb *roundRobinLoadBalancer) len() int { return len(lb.loops) }

// leastConnectionsLoadBalancer picks the loop with the fewest registered
// dispatchers, using EventLoop.Load as a proxy for "connections owned" —
// the teacher's variant tracked an explicit per-loop counter incremented
// by its connection type (conn.go), which this module's EventLoop has no
// equivalent of; registry size is the closest available signal.
type leastConnectionsLoadBalancer struct {
	loops []*iomux.EventLoop
}

func (lb *leastConnectionsLoadBalancer) register(e *iomux.EventLoop) {
	lb.loops = append(lb.loops, e)
}

func (lb *leastConnectionsLoadBalancer) next(net.Addr) *iomux.EventLoop {
	min := lb.loops[0]
	minLoad := min.Load()
	for _, e := range lb.loops[1:] {
		if load := e.Load(); load < minLoad {
			min, minLoad = e, load
		}
	}
	return min
}

func (lb *leastConnectionsLoadBalancer) iterate(f func(int, *iomux.EventLoop) bool) {
	for i, e := range lb.loops {
		if !f(i, e) {
			break
		}
	}
}

func (lb *leastConnectionsLoadBalancer) len() int { return len(lb.loops) }

type sourceAddrHashLoadBalancer struct {
	loops []*iomux.EventLoop
}

func (lb *sourceAddrHashLoadBalancer) register(e *iomux.EventLoop) {
	lb.loops = append(lb.loops, e)
}

func (lb *sourceAddrHashLoadBalancer) next(addr net.Addr) *iomux.EventLoop {
	h := int(crc32.ChecksumIEEE([]byte(addr.String())))
	if h < 0 {
		h = -h
	}
	return lb.loops[h%len(lb.loops)]
}

func (lb *sourceAddrHashLoadBalancer) iterate(f func(int, *iomux.EventLoop) bool) {
	for i, e := range lb.loops {
		if !f(i, e) {
			break
		}
	}
}

func (lb *sourceAddrHashLoadBalancer) len() int { return len(lb.loops) }
