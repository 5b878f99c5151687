//go:build unix

package iomux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestWaitMidCallbackDeregistration exercises the same invariant as
// TestMidCallbackDeregistration but through loop.Wait itself, using two
// real pipes made simultaneously read-ready so both dispatchers land in the
// same select(2) batch: A's OnEvent removes B, and B must not fire in that
// same Wait call.
func TestWaitMidCallbackDeregistration(t *testing.T) {
	var fdsA, fdsB [2]int
	require.NoError(t, unix.Pipe2(fdsA[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	require.NoError(t, unix.Pipe2(fdsB[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(fdsA[1])
	defer unix.Close(fdsB[1])

	_, err := unix.Write(fdsA[1], []byte{0})
	require.NoError(t, err)
	_, err = unix.Write(fdsB[1], []byte{0})
	require.NoError(t, err)

	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	dA := loop.CreateFile(fdsA[0])
	defer dA.Close()
	dB := loop.CreateFile(fdsB[0])
	// dA's callback removes dB from the loop, so only the fd is closed here;
	// dB.Close() would call Remove a second time.
	defer unix.Close(fdsB[0])

	var visitedA, visitedB int
	dA.OnRead = func() {
		visitedA++
		loop.Remove(dB)
	}
	dB.OnRead = func() {
		visitedB++
	}

	loop.Wait(time.Second, true)

	require.Equal(t, 1, visitedA)
	require.Equal(t, 0, visitedB, "B must not fire in the same Wait call that removed it")
}

// TestFileDispatcherCloseDeregisters exercises review comment 2 for the
// FileDispatcher half: Close must remove the dispatcher from its loop's
// registry, not merely close the fd.
func TestFileDispatcherCloseDeregisters(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(fds[1])

	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	before := loop.registry.len()
	d := loop.CreateFile(fds[0])
	require.Equal(t, before+1, loop.registry.len())

	require.NoError(t, d.Close())
	require.Equal(t, before, loop.registry.len())

	// Close is idempotent: a second call must not panic (registry.remove
	// panics on double-remove).
	require.NoError(t, d.Close())
}

// TestSocketDispatcherCloseDeregisters exercises review comment 2 for the
// SocketDispatcher half.
func TestSocketDispatcherCloseDeregisters(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	ln, err := loop.CreateAsyncSocket(SocketStream)
	require.NoError(t, err)
	require.NoError(t, ln.Bind("127.0.0.1:0"))
	require.NoError(t, ln.Listen(0))

	before := loop.registry.len()
	require.NoError(t, ln.Close())
	require.Equal(t, before-1, loop.registry.len())

	// Idempotent: second Close must not panic.
	require.NoError(t, ln.Close())
}
