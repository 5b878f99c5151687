//go:build unix

package iomux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFileDispatcherReadsFromPipe(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	readFD, writeFD := fds[0], fds[1]
	defer unix.Close(writeFD)

	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer loop.Close()

	d := loop.CreateFile(readFD)
	defer d.Close()

	var got []byte
	d.OnRead = func() {
		buf := make([]byte, 64)
		n, err := d.Read(buf)
		if err != nil {
			return
		}
		got = append(got, buf[:n]...)
	}

	_, err = unix.Write(writeFD, []byte("hello"))
	require.NoError(t, err)

	ok := pumpUntil(t, loop, time.Second, func() bool { return len(got) == 5 })
	require.True(t, ok, "FileDispatcher never observed the pipe write")
	require.Equal(t, "hello", string(got))
}
