// Command echoloop runs a single-reactor TCP echo server on top of an
// iomux.EventLoop, demonstrating the core CreateAsyncSocket/Bind/Listen/
// Accept/Recv/Send cycle end to end.
package main

import (
	"flag"

	"github.com/ncrafter/iomux"
	"github.com/ncrafter/iomux/internal/telemetry"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9090", "listen address")
	flag.Parse()

	loop, err := iomux.NewEventLoop()
	if err != nil {
		telemetry.ErrorF("new event loop: %v", err)
		return
	}
	defer loop.Close()

	listener, err := loop.CreateAsyncSocket(iomux.SocketStream)
	if err != nil {
		telemetry.ErrorF("create listener: %v", err)
		return
	}
	if err := listener.Bind(*addr); err != nil {
		telemetry.ErrorF("bind %s: %v", *addr, err)
		return
	}
	if err := listener.Listen(0); err != nil {
		telemetry.ErrorF("listen: %v", err)
		return
	}

	listener.OnAccept = func() {
		child, err := listener.Accept()
		if err != nil {
			if err != iomux.ErrWouldBlock {
				telemetry.ErrorF("accept: %v", err)
			}
			return
		}
		conn := loop.WrapSocket(child)
		wireEcho(conn)
	}

	telemetry.InfoF("echoloop listening on %s", *addr)
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
		telemetry.DebugF("connection from %v closed: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
	}
}
