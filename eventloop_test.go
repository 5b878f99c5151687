//go:build unix

package iomux

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pumpUntil runs Wait in a loop on the calling goroutine until cond
// returns true or the deadline elapses, returning whether cond was met.
func pumpUntil(t *testing.T, loop *EventLoop, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		loop.Wait(20*time.Millisecond, true)
		if cond() {
			return true
		}
	}
	return cond()
}

func TestLoopbackEcho(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	listener, err := loop.CreateAsyncSocket(SocketStream)
	require.NoError(t, err)
	require.NoError(t, listener.Bind("127.0.0.1:0"))
	require.NoError(t, listener.Listen(0))

	addr := listener.LocalAddr().(*net.TCPAddr)

	var (
		mu       sync.Mutex
		got      []byte
		closes   int
		accepted *SocketDispatcher
	)
	listener.OnAccept = func() {
		child, err := listener.Accept()
		require.NoError(t, err)
		conn := loop.WrapSocket(child)
		accepted = conn
		buf := make([]byte, 64)
		conn.OnRead = func() {
			n, err := conn.Recv(buf)
			if err != nil {
				if err != ErrWouldBlock {
					_ = conn.Close()
				}
				return
			}
			mu.Lock()
			got = append(got, buf[:n]...)
			mu.Unlock()
			conn.RequestEvents(EventRead)
		}
		conn.OnClose = func(error) {
			mu.Lock()
			closes++
			mu.Unlock()
			_ = conn.Close()
		}
	}

	peer, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer peer.Close()

	ok := pumpUntil(t, loop, time.Second, func() bool { return accepted != nil })
	require.True(t, ok, "server never accepted the peer connection")

	_, err = peer.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)

	ok = pumpUntil(t, loop, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})
	require.True(t, ok, "server never observed the peer's bytes")
	mu.Lock()
	require.Equal(t, []byte{0x01, 0x02, 0x03}, got)
	mu.Unlock()

	require.NoError(t, peer.Close())

	ok = pumpUntil(t, loop, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return closes == 1
	})
	require.True(t, ok, "server never observed exactly one CLOSE")
	mu.Lock()
	require.Equal(t, 1, closes)
	mu.Unlock()
}

func TestUDPSendRecv(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	a, err := loop.CreateAsyncSocket(SocketDatagram)
	require.NoError(t, err)
	require.NoError(t, a.Bind("127.0.0.1:0"))

	b, err := loop.CreateAsyncSocket(SocketDatagram)
	require.NoError(t, err)
	require.NoError(t, b.Bind("127.0.0.1:0"))

	var (
		mu   sync.Mutex
		msg  []byte
		from net.Addr
	)
	buf := make([]byte, 64)
	b.OnRead = func() {
		n, addr, err := b.RecvFrom(buf)
		if err != nil {
			return
		}
		mu.Lock()
		msg = append([]byte{}, buf[:n]...)
		from = addr
		mu.Unlock()
	}

	_, err = a.SendTo([]byte("ping"), b.LocalAddr().String())
	require.NoError(t, err)

	ok := pumpUntil(t, loop, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return msg != nil
	})
	require.True(t, ok, "recipient never observed the datagram")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "ping", string(msg))
	require.NotNil(t, from)
}

func TestWakeUp(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	done := make(chan bool, 1)
	go func() {
		done <- loop.Wait(Forever, true)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, loop.WakeUp())

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Wait did not return within 500ms of WakeUp")
	}
}

func TestConnectToUnresolvedAddress(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	sock, err := loop.CreateAsyncSocket(SocketStream)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		closed bool
		gotErr error
	)
	sock.OnClose = func(err error) {
		mu.Lock()
		closed = true
		gotErr = err
		mu.Unlock()
	}

	require.NoError(t, sock.Connect("this-host-does-not-resolve.invalid:80"))
	require.Equal(t, StateConnecting, sock.State())

	ok := pumpUntil(t, loop, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return closed
	})
	require.True(t, ok, "resolver failure never produced a CLOSE")

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, gotErr)
	require.Equal(t, StateClosed, sock.State())
}

func TestMidCallbackDeregistration(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	var visitedA, visitedB int

	dA := &fakeDispatcher{fd: -1}
	dB := &fakeDispatcher{fd: -1}

	dA.onEvent = func(LogicalEvent, error) {
		visitedA++
		loop.Remove(dB)
	}
	dB.onEvent = func(LogicalEvent, error) {
		visitedB++
	}

	loop.Add(dA)
	loop.Add(dB)

	loop.registry.iterate(func(d Dispatcher) {
		d.OnPreEvent(0)
		d.OnEvent(0, nil)
	})

	require.Equal(t, 1, visitedA)
	require.Equal(t, 0, visitedB, "B must not be visited in the same iteration it was removed in")
}

func TestBindThenLocalAddrRoundTrip(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	sock, err := loop.CreateAsyncSocket(SocketStream)
	require.NoError(t, err)
	require.NoError(t, sock.Bind("127.0.0.1:0"))

	addr := sock.LocalAddr().(*net.TCPAddr)
	require.Equal(t, "127.0.0.1", addr.IP.String())
	port, err := strconv.Atoi(strconv.Itoa(addr.Port))
	require.NoError(t, err)
	require.Greater(t, port, 0)
}

func TestCloseIsIdempotent(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	sock, err := loop.CreateAsyncSocket(SocketStream)
	require.NoError(t, err)

	require.NoError(t, sock.Close())
	require.NoError(t, sock.Close())
	require.Equal(t, StateClosed, sock.State())
}
