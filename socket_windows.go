//go:build windows

package iomux

import (
	"net"
	"strconv"

	"golang.org/x/sys/windows"

	isock "github.com/ncrafter/iomux/internal/socket"
)

func newPhysicalSocket(server *EventLoop, typ SocketType) (*PhysicalSocket, error) {
	s := &PhysicalSocket{handle: InvalidHandle, server: server}
	if err := s.create(typ); err != nil {
		return nil, err
	}
	if err := s.ensureWinEvent(); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureWinEvent lazily creates the manual-reset Win32 event object this
// socket's SocketDispatcher reports via EventObject for
// WSAWaitForMultipleEvents to wait on.
func (s *PhysicalSocket) ensureWinEvent() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.winEvent != 0 {
		return nil
	}
	h, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return err
	}
	s.winEvent = Handle(h)
	return nil
}

// EventObject implements eventObjectDispatcher: every SocketDispatcher on
// Windows is polled via its own manual-reset event, armed by
// WSAEventSelect.
func (s *PhysicalSocket) EventObject() uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uintptr(s.winEvent)
}

func wrapPhysicalSocket(server *EventLoop, fd isock.FD, isUDP bool, remote net.Addr) *PhysicalSocket {
	s := &PhysicalSocket{
		handle:        Handle(fd),
		isUDP:         isUDP,
		state:         StateConnected,
		enabledEvents: EventRead,
		remoteAddr:    remote,
		server:        server,
	}
	_ = s.ensureWinEvent()
	return s
}

func (s *PhysicalSocket) create(typ SocketType) error {
	s.mu.Lock()
	if s.handle != InvalidHandle {
		windows.Closesocket(isock.FD(s.handle))
	}
	s.mu.Unlock()

	family := windows.AF_INET
	var fd isock.FD
	var err error
	if typ == SocketDatagram {
		fd, err = isock.NewDatagramSocket(family)
	} else {
		fd, err = isock.NewStreamSocket(family)
	}
	if err != nil {
		return s.setError(err)
	}

	s.mu.Lock()
	s.handle = Handle(fd)
	s.family = family
	s.isUDP = typ == SocketDatagram
	s.state = StateClosed
	if s.isUDP {
		s.enabledEvents = EventRead | EventWrite
	}
	s.mu.Unlock()
	return nil
}

func (s *PhysicalSocket) Bind(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return s.setError(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return s.setError(err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ip = net.IPv4zero
	}
	sa, family := isock.ResolveSockaddr(ip, port)

	s.mu.Lock()
	fd := isock.FD(s.handle)
	s.family = family
	s.mu.Unlock()

	if err := isock.Bind(fd, sa); err != nil {
		return s.setError(err)
	}
	// Report the address the system actually bound, so a port-0 bind
	// yields the assigned port.
	if bound, err := windows.Getsockname(fd); err == nil {
		sa = bound
	}
	s.mu.Lock()
	s.localAddr = isock.SockaddrToAddr(network(s.isUDP), sa)
	s.mu.Unlock()
	return nil
}

func (s *PhysicalSocket) Listen(backlog int) error {
	fd := isock.FD(s.Handle())
	if err := isock.Listen(fd, backlog); err != nil {
		return s.setError(err)
	}
	s.setState(StateConnecting)
	s.enable(EventAccept)
	return nil
}

func (s *PhysicalSocket) Accept() (*PhysicalSocket, error) {
	fd := isock.FD(s.Handle())
	nfd, sa, err := isock.Accept(fd)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			s.enable(EventAccept)
			return nil, ErrWouldBlock
		}
		return nil, s.setError(err)
	}
	s.enable(EventAccept)
	peer := isock.SockaddrToAddr(network(s.isUDP), sa)
	child := wrapPhysicalSocket(s.server, nfd, false, peer)
	return child, nil
}

func (s *PhysicalSocket) doConnect(resolvedAddr string) error {
	host, portStr, err := net.SplitHostPort(resolvedAddr)
	if err != nil {
		return s.setError(err)
	}
	port, _ := strconv.Atoi(portStr)
	ip := net.ParseIP(host)
	if ip == nil {
		addrs, err := net.LookupIP(host)
		if err != nil || len(addrs) == 0 {
			return s.setError(ErrResolveFailed)
		}
		ip = addrs[0]
	}
	sa, _ := isock.ResolveSockaddr(ip, port)

	fd := isock.FD(s.Handle())
	err = isock.Connect(fd, sa)
	s.mu.Lock()
	s.remoteAddr = &net.TCPAddr{IP: ip, Port: port}
	s.mu.Unlock()

	switch err {
	case nil:
		s.setState(StateConnected)
		s.enable(EventWrite)
		return nil
	case windows.WSAEWOULDBLOCK:
		s.setState(StateConnecting)
		s.enable(EventConnect)
		return nil
	default:
		return s.setError(err)
	}
}

// Send writes buf over a connected socket. x/sys/windows has no plain
// send() wrapper, so this reuses Sendto against the already-connected
// peer address (nil is valid for a connection-oriented socket).
func (s *PhysicalSocket) Send(buf []byte) (int, error) {
	err := windows.Sendto(isock.FD(s.Handle()), buf, 0, nil)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			s.enable(EventWrite)
			return 0, ErrWouldBlock
		}
		return 0, s.setError(err)
	}
	return len(buf), nil
}

func (s *PhysicalSocket) SendTo(buf []byte, addr string) (int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, s.setError(err)
	}
	port, _ := strconv.Atoi(portStr)
	ip := net.ParseIP(host)
	if ip == nil {
		return 0, s.setError(ErrResolveFailed)
	}
	sa, _ := isock.ResolveSockaddr(ip, port)
	if err := windows.Sendto(isock.FD(s.Handle()), buf, 0, sa); err != nil {
		if err == windows.WSAEWOULDBLOCK {
			s.enable(EventWrite)
			return 0, ErrWouldBlock
		}
		return 0, s.setError(err)
	}
	return len(buf), nil
}

// Recv reads from a connected socket via Recvfrom, discarding the sender
// address (not needed for a connection-oriented socket).
func (s *PhysicalSocket) Recv(buf []byte) (int, error) {
	n, _, err := windows.Recvfrom(isock.FD(s.Handle()), buf, 0)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			s.enable(EventRead)
			return 0, ErrWouldBlock
		}
		return 0, s.setError(err)
	}
	if n == 0 && len(buf) > 0 {
		s.enable(EventRead)
		return 0, ErrWouldBlock
	}
	return n, nil
}

func (s *PhysicalSocket) RecvFrom(buf []byte) (int, net.Addr, error) {
	n, sa, err := windows.Recvfrom(isock.FD(s.Handle()), buf, 0)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			s.enable(EventRead)
			return 0, nil, ErrWouldBlock
		}
		return 0, nil, s.setError(err)
	}
	return n, isock.SockaddrToAddr("udp", sa), nil
}

func (s *PhysicalSocket) getOption(opt LogicalOption) (int, error) {
	fd := isock.FD(s.Handle())
	switch opt {
	case OptRcvBuf:
		return windows.GetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_RCVBUF)
	case OptSndBuf:
		return windows.GetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_SNDBUF)
	case OptNoDelay:
		return windows.GetsockoptInt(fd, windows.IPPROTO_TCP, windows.TCP_NODELAY)
	case OptDontFragment:
		return windows.GetsockoptInt(fd, windows.IPPROTO_IP, windows.IP_DONTFRAGMENT)
	default:
		return 0, ErrUnsupportedOption
	}
}

func (s *PhysicalSocket) setOption(opt LogicalOption, value int) error {
	fd := isock.FD(s.Handle())
	switch opt {
	case OptRcvBuf:
		return isock.SetRecvBuffer(fd, value)
	case OptSndBuf:
		return isock.SetSendBuffer(fd, value)
	case OptNoDelay:
		return isock.SetNoDelay(fd, value)
	case OptDontFragment:
		return isock.SetDontFragment(fd, value)
	default:
		return ErrUnsupportedOption
	}
}

func (s *PhysicalSocket) closeHandle() error {
	s.mu.Lock()
	fd := s.handle
	s.handle = InvalidHandle
	ev := s.winEvent
	s.winEvent = 0
	s.mu.Unlock()
	if ev != 0 {
		windows.CloseHandle(windows.Handle(ev))
	}
	if fd == InvalidHandle {
		return nil
	}
	return windows.Closesocket(isock.FD(fd))
}

// peekReadable mirrors socket_unix.go's non-destructive one-byte peek,
// used by SocketDispatcher's deferred-close rule on both platforms.
func (s *PhysicalSocket) peekReadable() bool {
	var buf [1]byte
	n, _, err := windows.Recvfrom(isock.FD(s.Handle()), buf[:], windows.MSG_PEEK)
	return err == nil && n > 0
}

func network(isUDP bool) string {
	if isUDP {
		return "udp"
	}
	return "tcp"
}
