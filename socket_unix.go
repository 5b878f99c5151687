//go:build unix

package iomux

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	isock "github.com/ncrafter/iomux/internal/socket"
)

func newPhysicalSocket(server *EventLoop, typ SocketType) (*PhysicalSocket, error) {
	s := &PhysicalSocket{handle: InvalidHandle, server: server}
	if err := s.create(typ); err != nil {
		return nil, err
	}
	return s, nil
}

func wrapPhysicalSocket(server *EventLoop, fd isock.FD, isUDP bool, remote net.Addr) *PhysicalSocket {
	return &PhysicalSocket{
		handle:        Handle(fd),
		isUDP:         isUDP,
		state:         StateConnected,
		enabledEvents: EventRead,
		remoteAddr:    remote,
		server:        server,
	}
}

func (s *PhysicalSocket) create(typ SocketType) error {
	s.mu.Lock()
	if s.handle != InvalidHandle {
		_ = unix.Close(int(s.handle))
	}
	s.mu.Unlock()

	family := unix.AF_INET
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
	fd := int(s.handle)
	s.family = family
	s.mu.Unlock()

	if err := isock.Bind(fd, sa); err != nil {
		return s.setError(err)
	}
	// Report the address the kernel actually bound, so a port-0 bind
	// yields the assigned port.
	if bound, err := unix.Getsockname(fd); err == nil {
		sa = bound
	}
	s.mu.Lock()
	s.localAddr = isock.SockaddrToAddr(network(s.isUDP), sa)
	s.mu.Unlock()
	return nil
}

// Listen transitions the socket into the listening variant of CONNECTING
// and arms ACCEPT, per SPEC_FULL.md §4.2.
func (s *PhysicalSocket) Listen(backlog int) error {
	fd := int(s.Handle())
	if err := isock.Listen(fd, backlog); err != nil {
		return s.setError(err)
	}
	s.setState(StateConnecting)
	s.enable(EventAccept)
	return nil
}

// Accept returns a new PhysicalSocket for the next queued connection, or
// ErrWouldBlock if none is pending. The listening socket re-arms ACCEPT.
func (s *PhysicalSocket) Accept() (*PhysicalSocket, error) {
	fd := int(s.Handle())
	nfd, sa, err := isock.Accept4(fd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
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

	fd := int(s.Handle())
	err = isock.Connect(fd, sa)
	s.mu.Lock()
	s.remoteAddr = &net.TCPAddr{IP: ip, Port: port}
	s.mu.Unlock()

	switch err {
	case nil:
		s.setState(StateConnected)
		s.enable(EventWrite)
		return nil
	case unix.EINPROGRESS:
		s.setState(StateConnecting)
		s.enable(EventConnect)
		return nil
	default:
		return s.setError(err)
	}
}

// Send writes buf to a connected stream or datagram socket. On
// unix.EAGAIN/unix.EWOULDBLOCK it re-arms WRITE and returns ErrWouldBlock,
// and EPIPE from a peer that already shut down its read side is
// suppressed at the caller's discretion (no MSG_NOSIGNAL is passed; the
// package ignores SIGPIPE process-wide, see sigpipe_unix.go).
func (s *PhysicalSocket) Send(buf []byte) (int, error) {
	n, err := unix.Write(int(s.Handle()), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			s.enable(EventWrite)
			return 0, ErrWouldBlock
		}
		return 0, s.setError(err)
	}
	return n, nil
}

// SendTo writes buf to addr over a datagram socket.
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
	if err := unix.Sendto(int(s.Handle()), buf, 0, sa); err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			s.enable(EventWrite)
			return 0, ErrWouldBlock
		}
		return 0, s.setError(err)
	}
	return len(buf), nil
}

// Recv reads into buf. Per the deferred-close rule, a graceful peer close
// (n==0 on a non-empty buf) is reported as ErrWouldBlock with READ
// re-armed, so the next loop iteration's readability check observes
// CLOSE instead of the caller seeing a bare zero-length read.
func (s *PhysicalSocket) Recv(buf []byte) (int, error) {
	n, err := unix.Read(int(s.Handle()), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
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

// RecvFrom reads a datagram, returning the sender's address.
func (s *PhysicalSocket) RecvFrom(buf []byte) (int, net.Addr, error) {
	n, sa, err := unix.Recvfrom(int(s.Handle()), buf, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			s.enable(EventRead)
			return 0, nil, ErrWouldBlock
		}
		return 0, nil, s.setError(err)
	}
	return n, isock.SockaddrToAddr("udp", sa), nil
}

func (s *PhysicalSocket) getOption(opt LogicalOption) (int, error) {
	fd := int(s.Handle())
	switch opt {
	case OptRcvBuf:
		return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
	case OptSndBuf:
		return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF)
	case OptNoDelay:
		return unix.GetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY)
	case OptDontFragment:
		v, err := unix.GetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MTU_DISCOVER)
		if err != nil {
			return 0, ErrUnsupportedOption
		}
		return v, nil
	default:
		return 0, ErrUnsupportedOption
	}
}

func (s *PhysicalSocket) setOption(opt LogicalOption, value int) error {
	fd := int(s.Handle())
	switch opt {
	case OptRcvBuf:
		return isock.SetRecvBuffer(fd, value)
	case OptSndBuf:
		return isock.SetSendBuffer(fd, value)
	case OptNoDelay:
		return isock.SetNoDelay(fd, value)
	case OptDontFragment:
		if err := isock.SetDontFragment(fd, value); err != nil {
			return ErrUnsupportedOption
		}
		return nil
	default:
		return ErrUnsupportedOption
	}
}

func (s *PhysicalSocket) closeHandle() error {
	s.mu.Lock()
	fd := s.handle
	s.handle = InvalidHandle
	s.mu.Unlock()
	if fd == InvalidHandle {
		return nil
	}
	return unix.Close(int(fd))
}

// peekReadable non-destructively checks whether at least one byte is
// available to read, used by SocketDispatcher.IsClosed/deferred-close
// logic to distinguish "peer closed" from "data still pending".
func (s *PhysicalSocket) peekReadable() bool {
	var buf [1]byte
	n, _, err := unix.Recvfrom(int(s.Handle()), buf[:], unix.MSG_PEEK)
	return err == nil && n > 0
}

func network(isUDP bool) string {
	if isUDP {
		return "udp"
	}
	return "tcp"
}
