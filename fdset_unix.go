//go:build unix

package iomux

import "golang.org/x/sys/unix"

// fdSetSet and fdSetIsSet are Wait's FD_SET/FD_ISSET for select(2). They
// delegate to unix.FdSet's own Set/IsSet methods, which size the bit
// arithmetic to the platform's Bits element type.
func fdSetSet(fds *unix.FdSet, fd int) {
	fds.Set(fd)
}

func fdSetIsSet(fds *unix.FdSet, fd int) bool {
	return fds.IsSet(fd)
}
