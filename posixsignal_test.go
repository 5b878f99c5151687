//go:build unix

package iomux

import (
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPosixSignalHandlerFiresOnLoop(t *testing.T) {
	loop, err := NewEventLoop(WithPosixSignalRouter(true))
	require.NoError(t, err)
	defer loop.Close()

	var (
		mu   sync.Mutex
		fired int
	)
	require.NoError(t, SetPosixSignalHandler(int(syscall.SIGUSR1), func(signum int) {
		mu.Lock()
		fired++
		mu.Unlock()
	}))
	defer SetPosixSignalHandler(int(syscall.SIGUSR1), nil)

	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, proc.Signal(syscall.SIGUSR1))

	ok := pumpUntil(t, loop, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired > 0
	})
	require.True(t, ok, "SIGUSR1 was never dispatched to the handler")
}

// TestPosixSignalRouterTearsDownOnLastHandlerRemoved exercises review
// comment 3: removing the last handler must deregister the loop's
// posixSignalDispatcher, not just drop the map entry.
func TestPosixSignalRouterTearsDownOnLastHandlerRemoved(t *testing.T) {
	loop, err := NewEventLoop(WithPosixSignalRouter(true))
	require.NoError(t, err)
	defer loop.Close()

	withDispatcher := loop.registry.len()

	require.NoError(t, SetPosixSignalHandler(int(syscall.SIGUSR2), func(int) {}))
	require.Equal(t, withDispatcher, loop.registry.len(), "installing a handler must not re-add the dispatcher")

	require.NoError(t, SetPosixSignalHandler(int(syscall.SIGUSR2), nil))
	require.Equal(t, withDispatcher-1, loop.registry.len(), "removing the last handler must deregister the dispatcher")
	require.Nil(t, loop.posixDispatcher)
}
