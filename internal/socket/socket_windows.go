//go:build windows

package socket

import (
	"net"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// FD is a raw Win32 SOCKET handle, stored widened to match PhysicalSocket's
// Handle type.
type FD = windows.Handle

// ListenerBacklogMaxSize has no cheap registry equivalent worth probing;
// Windows silently clamps an oversized backlog, so the teacher's listen
// socket defaults to SOMAXCONN and lets the OS do the clamping.
func ListenerBacklogMaxSize() int {
	return windows.SOMAXCONN
}

func init() {
	var d windows.WSAData
	_ = windows.WSAStartup(uint32(0x202), &d)
}

// NewStreamSocket creates a non-blocking, overlapped-capable TCP socket.
func NewStreamSocket(family int) (FD, error) {
	fd, err := windows.Socket(family, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return windows.InvalidHandle, os.NewSyscallError("socket", err)
	}
	return fd, setNonBlocking(fd)
}

// NewDatagramSocket creates a non-blocking UDP socket.
func NewDatagramSocket(family int) (FD, error) {
	fd, err := windows.Socket(family, windows.SOCK_DGRAM, windows.IPPROTO_UDP)
	if err != nil {
		return windows.InvalidHandle, os.NewSyscallError("socket", err)
	}
	return fd, setNonBlocking(fd)
}

// setNonBlocking issues the FIONBIO ioctlsocket call directly since
// golang.org/x/sys/windows does not expose a typed wrapper for it.
func setNonBlocking(fd FD) error {
	mode := uint32(1)
	ret, _, err := procIoctlsocket.Call(uintptr(fd), uintptr(fionbio), uintptr(unsafe.Pointer(&mode)))
	if ret != 0 {
		return os.NewSyscallError("ioctlsocket", err)
	}
	return nil
}

const fionbio = 0x8004667e

var (
	modws2_32       = windows.NewLazySystemDLL("ws2_32.dll")
	procIoctlsocket = modws2_32.NewProc("ioctlsocket")
)

// ResolveSockaddr converts an IP/port pair into a windows.Sockaddr plus the
// address family to pass to NewStreamSocket/NewDatagramSocket.
func ResolveSockaddr(ip net.IP, port int) (windows.Sockaddr, int) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &windows.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, windows.AF_INET
	}
	ip16 := ip.To16()
	if ip16 == nil {
		ip16 = net.IPv6zero
	}
	sa := &windows.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip16)
	return sa, windows.AF_INET6
}

// SockaddrToAddr converts a windows.Sockaddr back into a net.Addr.
func SockaddrToAddr(network string, sa windows.Sockaddr) net.Addr {
	var ip net.IP
	var port int
	switch sa := sa.(type) {
	case *windows.SockaddrInet4:
		ip = net.IP(sa.Addr[:])
		port = sa.Port
	case *windows.SockaddrInet6:
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

func Bind(fd FD, sa windows.Sockaddr) error {
	return os.NewSyscallError("bind", windows.Bind(fd, sa))
}

func Listen(fd FD, backlog int) error {
	if backlog <= 0 {
		backlog = ListenerBacklogMaxSize()
	}
	return os.NewSyscallError("listen", windows.Listen(fd, backlog))
}

func SetKeepAlivePeriod(fd FD, secs int) error {
	if secs <= 0 {
		return os.ErrInvalid
	}
	return os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_KEEPALIVE, 1))
}

func SetNoDelay(fd FD, on int) error {
	return os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.IPPROTO_TCP, windows.TCP_NODELAY, on))
}

func SetRecvBuffer(fd FD, size int) error {
	return os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_RCVBUF, size))
}

func SetSendBuffer(fd FD, size int) error {
	return os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_SNDBUF, size))
}

func SetReusePort(fd FD, on int) error {
	return os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_REUSEADDR, on))
}

func SetReuseAddr(fd FD, on int) error {
	return os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_REUSEADDR, on))
}

// SetDontFragment sets IP_DONTFRAGMENT, used by EstimateMTU's probe path.
func SetDontFragment(fd FD, on int) error {
	return os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.IPPROTO_IP, windows.IP_DONTFRAGMENT, on))
}

func Connect(fd FD, sa windows.Sockaddr) error {
	err := windows.Connect(fd, sa)
	if err == windows.WSAEWOULDBLOCK {
		return windows.WSAEWOULDBLOCK
	}
	if err != nil {
		return os.NewSyscallError("connect", err)
	}
	return nil
}

func Accept(fd FD) (FD, windows.Sockaddr, error) {
	nfd, err := windows.Accept(fd)
	if err != nil {
		return windows.InvalidHandle, nil, err
	}
	sa, err := windows.Getpeername(nfd)
	if err != nil {
		windows.Closesocket(nfd)
		return windows.InvalidHandle, nil, err
	}
	return nfd, sa, setNonBlocking(nfd)
}
