//go:build unix

package iomux

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// pipeSignalBackend is a classic self-pipe: Signal writes one byte, drain
// reads up to a small buffer. Grounded in the original's EventDispatcher
// (POSIX variant) which uses exactly this pipe(2)-based mechanism, shared
// verbatim by PosixSignalRouter's own relay pipe.
type pipeSignalBackend struct {
	mu       sync.Mutex
	readFD   int
	writeFD  int
}

func newSignalBackend() (signalBackend, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, os.NewSyscallError("pipe2", err)
	}
	return &pipeSignalBackend{readFD: fds[0], writeFD: fds[1]}, nil
}

func (p *pipeSignalBackend) signal() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := unix.Write(p.writeFD, []byte{0})
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		// Pipe buffer already has a pending wakeup queued; coalescing
		// is fine, the reader only needs to observe readability once.
		return nil
	}
	return os.NewSyscallError("write", err)
}

func (p *pipeSignalBackend) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *pipeSignalBackend) descriptor() Handle { return Handle(p.readFD) }
func (p *pipeSignalBackend) eventObject() uintptr { return 0 }

func (p *pipeSignalBackend) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err1 := unix.Close(p.readFD)
	err2 := unix.Close(p.writeFD)
	if err1 != nil {
		return os.NewSyscallError("close", err1)
	}
	if err2 != nil {
		return os.NewSyscallError("close", err2)
	}
	return nil
}
