//go:build unix

package socket

import (
	"net"
	"testing"

	"golang.org/x/sys/unix"
)

func TestResolveSockaddrRoundTripIPv4(t *testing.T) {
	ip := net.ParseIP("192.0.2.10")
	sa, family := ResolveSockaddr(ip, 4242)
	if family != unix.AF_INET {
		t.Fatalf("family = %d, want AF_INET", family)
	}
	addr := SockaddrToAddr("tcp", sa)
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		t.Fatalf("SockaddrToAddr returned %T, want *net.TCPAddr", addr)
	}
	if !tcpAddr.IP.Equal(ip) || tcpAddr.Port != 4242 {
		t.Fatalf("round trip = %v, want %v:4242", tcpAddr, ip)
	}
}

func TestResolveSockaddrRoundTripIPv6(t *testing.T) {
	ip := net.ParseIP("2001:db8::1")
	sa, family := ResolveSockaddr(ip, 9999)
	if family != unix.AF_INET6 {
		t.Fatalf("family = %d, want AF_INET6", family)
	}
	addr := SockaddrToAddr("udp", sa)
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		t.Fatalf("SockaddrToAddr returned %T, want *net.UDPAddr", addr)
	}
	if !udpAddr.IP.Equal(ip) || udpAddr.Port != 9999 {
		t.Fatalf("round trip = %v, want %v:9999", udpAddr, ip)
	}
}

func TestNewStreamSocketIsNonBlockingAndCloseOnExec(t *testing.T) {
	fd, err := NewStreamSocket(unix.AF_INET)
	if err != nil {
		t.Fatalf("NewStreamSocket: %v", err)
	}
	defer unix.Close(fd)

	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		t.Fatalf("fcntl F_GETFL: %v", err)
	}
	if flags&unix.O_NONBLOCK == 0 {
		t.Fatal("socket is not non-blocking")
	}

	fdFlags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		t.Fatalf("fcntl F_GETFD: %v", err)
	}
	if fdFlags&unix.FD_CLOEXEC == 0 {
		t.Fatal("socket is not close-on-exec")
	}
}
