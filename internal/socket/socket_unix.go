//go:build unix

// Package socket holds the raw, non-blocking socket creation and option
// helpers that sit underneath PhysicalSocket. Grounded on the teacher's
// internal/socket/linux_tcp_socket.go, generalized from TCP4-only to
// stream+datagram, IPv4+IPv6.
package socket

import (
	"bufio"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// FD is a raw OS file descriptor.
type FD = int

// ListenerBacklogMaxSize reports the kernel's configured connection backlog,
// falling back to SOMAXCONN when /proc is unreadable (non-Linux unix, or a
// sandboxed process).
func ListenerBacklogMaxSize() int {
	f, err := os.Open("/proc/sys/net/core/somaxconn")
	if err != nil {
		return unix.SOMAXCONN
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		return unix.SOMAXCONN
	}
	fields := strings.Fields(line)
	if len(fields) < 1 {
		return unix.SOMAXCONN
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n == 0 {
		return unix.SOMAXCONN
	}
	return n
}

// NewStreamSocket creates a non-blocking, close-on-exec TCP socket for the
// given address family. It does not bind or listen.
func NewStreamSocket(family int) (FD, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	return fd, nil
}

// NewDatagramSocket creates a non-blocking, close-on-exec UDP socket.
func NewDatagramSocket(family int) (FD, error) {
	fd, err := unix.Socket(family, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	return fd, nil
}

// ResolveSockaddr converts a net.Addr (as produced by net.ResolveTCPAddr /
// net.ResolveUDPAddr) into a unix.Sockaddr plus the address family to pass
// to NewStreamSocket/NewDatagramSocket.
func ResolveSockaddr(ip net.IP, port int) (unix.Sockaddr, int) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET
	}
	ip16 := ip.To16()
	if ip16 == nil {
		ip16 = net.IPv6zero
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip16)
	return sa, unix.AF_INET6
}

// SockaddrToAddr converts a unix.Sockaddr back into a net.Addr. network is
// "tcp" or "udp".
func SockaddrToAddr(network string, sa unix.Sockaddr) net.Addr {
	var ip net.IP
	var port int
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip = net.IP(sa.Addr[:])
		port = sa.Port
	case *unix.SockaddrInet6:
		ip = net.IP(sa.Addr[:])
		port = sa.Port
	default:
		return nil
	}
	if network == "udp" {
		return &net.UDPAddr{IP: ip, Port: port}
	}
	return &net.TCPAddr{IP: ip, Port: port}
}

// Bind binds fd to sa.
func Bind(fd FD, sa unix.Sockaddr) error {
	return os.NewSyscallError("bind", unix.Bind(fd, sa))
}

// Listen marks fd as a passive socket with the given, or platform-default,
// backlog.
func Listen(fd FD, backlog int) error {
	if backlog <= 0 {
		backlog = ListenerBacklogMaxSize()
	}
	return os.NewSyscallError("listen", unix.Listen(fd, backlog))
}

// SetKeepAlivePeriod enables TCP keepalive and sets both the idle time and
// probe interval to secs, matching the teacher's single-parameter
// convenience call.
func SetKeepAlivePeriod(fd FD, secs int) error {
	if secs <= 0 {
		return os.ErrInvalid
	}
	if err := os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)); err != nil {
		return err
	}
	if err := os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs)); err != nil {
		return err
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, secs))
}

// SetNoDelay toggles Nagle's algorithm: on=1 disables Nagle (favors
// latency), on=0 leaves it enabled (favors throughput).
func SetNoDelay(fd FD, on int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, on))
}

// SetRecvBuffer sets SO_RCVBUF.
func SetRecvBuffer(fd FD, size int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, size))
}

// SetSendBuffer sets SO_SNDBUF.
func SetSendBuffer(fd FD, size int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size))
}

// SetReusePort sets SO_REUSEPORT, allowing several listeners to share one
// address/port for load distribution.
func SetReusePort(fd FD, on int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, on))
}

// SetReuseAddr sets SO_REUSEADDR, allowing bind to succeed while a prior
// socket on the same address sits in TIME_WAIT.
func SetReuseAddr(fd FD, on int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, on))
}

// SetDontFragment sets IP_MTU_DISCOVER to IP_PMTUDISC_DO (on) or
// IP_PMTUDISC_DONT (off), the POSIX equivalent of Windows'
// IP_DONTFRAGMENT, used by EstimateMTU's probe path.
func SetDontFragment(fd FD, on int) error {
	val := unix.IP_PMTUDISC_DONT
	if on != 0 {
		val = unix.IP_PMTUDISC_DO
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MTU_DISCOVER, val))
}

// Connect issues a non-blocking connect; EINPROGRESS is the expected
// outcome and is returned to the caller unwrapped so PhysicalSocket can
// distinguish it from a hard failure.
func Connect(fd FD, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	if err == unix.EINPROGRESS {
		return unix.EINPROGRESS
	}
	if err != nil {
		return os.NewSyscallError("connect", err)
	}
	return nil
}

// Accept4 wraps accept4 with SOCK_NONBLOCK|SOCK_CLOEXEC so every accepted
// connection starts life already non-blocking.
func Accept4(fd FD) (FD, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err // caller checks EAGAIN/EWOULDBLOCK without wrapping
	}
	return nfd, sa, nil
}
