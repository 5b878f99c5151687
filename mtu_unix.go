//go:build unix

package iomux

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ncrafter/iomux/internal/socket"
)

// estimateMTU implements the POSIX path: an unprivileged AF_INET/SOCK_DGRAM
// ICMP echo probe per packetMaximums rung, with IP_MTU_DISCOVER set to
// IP_PMTUDISC_DO so an oversized datagram is rejected locally (EMSGSIZE)
// instead of being fragmented in flight.
func estimateMTU(addr string) (int, error) {
	ip, err := net.ResolveIPAddr("ip4", addr)
	if err != nil {
		return 0, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_ICMP)
	if err != nil {
		return 0, ErrUnsupportedOption
	}
	defer unix.Close(fd)

	_ = socket.SetDontFragment(fd, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, 0)

	sa := &unix.SockaddrInet4{}
	copy(sa.Addr[:], ip.IP.To4())

	for _, size := range packetMaximums {
		payload := size - ipHeaderSize - icmpHeaderSize
		if payload <= 0 {
			continue
		}
		packet := buildEchoRequest(payload)
		if err := unix.Sendto(fd, packet, 0, sa); err != nil {
			continue // too big for this rung or transient error; try smaller
		}
		if waitReadable(fd, 200*time.Millisecond) {
			return size, nil
		}
	}
	return 0, ErrUnsupportedOption
}

func buildEchoRequest(payloadLen int) []byte {
	pkt := make([]byte, 8+payloadLen)
	pkt[0] = 8 // ICMP echo request
	pkt[1] = 0
	return pkt
}

func waitReadable(fd int, timeout time.Duration) bool {
	var rfds unix.FdSet
	rfds.Set(fd)
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(fd+1, &rfds, nil, nil, &tv)
	return err == nil && n > 0
}
