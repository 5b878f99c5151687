// Command fanloop runs an accepting EventLoop fronting several worker
// EventLoops via fanout.Group, demonstrating multi-loop distribution of
// accepted connections (the domain-stack analogue of the teacher's
// multicore TCP server).
package main

import (
	"flag"

	"github.com/ncrafter/iomux"
	"github.com/ncrafter/iomux/fanout"
	"github.com/ncrafter/iomux/internal/telemetry"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9091", "listen address")
	workerCount := flag.Int("workers", 4, "worker event loop count")
	flag.Parse()

	acceptLoop, err := iomux.NewEventLoop()
	if err != nil {
		telemetry.ErrorF("new accept loop: %v", err)
		return
	}
	defer acceptLoop.Close()

	workers := make([]*iomux.EventLoop, *workerCount)
	for i := range workers {
		w, err := iomux.NewEventLoop()
		if err != nil {
			telemetry.ErrorF("new worker loop %d: %v", i, err)
			return
		}
		defer w.Close()
		workers[i] = w
		go pump(w)
	}

	group := fanout.NewGroup(acceptLoop, workers, fanout.LeastConnections, wireEcho)
	if _, err := group.Listen(*addr, 0); err != nil {
		telemetry.ErrorF("listen %s: %v", *addr, err)
		return
	}

	telemetry.InfoF("fanloop listening on %s across %d workers", *addr, *workerCount)
	for acceptLoop.Wait(iomux.Forever, true) {
	}
}

func pump(loop *iomux.EventLoop) {
	for loop.Wait(iomux.Forever, true) {
	}
}

func wireEcho(conn *iomux.SocketDispatcher) {
	buf := make([]byte, iomux.MaxTcpBufferCap)
	conn.OnRead = func() {
		n, err := conn.Recv(buf)
		if err != nil {
			if err != iomux.ErrWouldBlock {
				_ = conn.Close()
			}
			return
		}
		_, _ = conn.Send(buf[:n])
		conn.RequestEvents(iomux.EventRead)
	}
	conn.OnClose = func(err error) {
		_ = conn.Close()
	}
}
