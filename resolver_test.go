//go:build unix

package iomux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncResolverResolvesLoopback(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	done := make(chan struct{})
	var resolved string
	var resolveErr error
	r := newAsyncResolver(loop, func(addr string, err error) {
		resolved, resolveErr = addr, err
		close(done)
	})
	r.Start("localhost:9")

	ok := pumpUntil(t, loop, 2*time.Second, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})
	require.True(t, ok, "resolution never completed")
	require.NoError(t, resolveErr)
	require.Contains(t, []string{"127.0.0.1:9", "[::1]:9"}, resolved)
}

func TestAsyncResolverCancelSuppressesOnDone(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	called := false
	r := newAsyncResolver(loop, func(string, error) { called = true })
	r.Start("localhost:9")
	r.cancel()

	// Drain for a while; onDone must never run once cancel has fired,
	// even though the lookup itself completes in the background.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		loop.Wait(20*time.Millisecond, true)
	}
	require.False(t, called, "onDone ran after cancel")
}
