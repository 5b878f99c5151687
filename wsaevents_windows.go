//go:build windows

package iomux

import (
	"errors"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// golang.org/x/sys/windows does not expose WSAEventSelect,
// WSAEnumNetworkEvents, or WSAWaitForMultipleEvents directly, so this
// manually binds them from ws2_32.dll / kernel32.dll, following the
// LazyDLL/NewProc convention used throughout momentics-hioload-ws's
// windows-specific files (pool/numa_windows.go, affinity/affinity_windows.go)
// for Win32 APIs the x/sys packages don't wrap.
var (
	modws2_32Events = syscall.NewLazyDLL("ws2_32.dll")
	modkernel32     = syscall.NewLazyDLL("kernel32.dll")

	procWSAEventSelect         = modws2_32Events.NewProc("WSAEventSelect")
	procWSAEnumNetworkEvents   = modws2_32Events.NewProc("WSAEnumNetworkEvents")
	procWaitForMultipleObjects = modkernel32.NewProc("WaitForMultipleObjects")
)

// FD_* bit values, from winsock2.h.
const (
	fdRead    = 1 << 0
	fdWrite   = 1 << 1
	fdOOB     = 1 << 2
	fdAccept  = 1 << 3
	fdConnect = 1 << 4
	fdClose   = 1 << 5

	fdConnectBit = 4
	fdCloseBit   = 5
)

// wsaNetworkEvents mirrors WSANETWORKEVENTS: a bitmask plus a 10-entry
// error-code array, one slot per FD_* bit index.
type wsaNetworkEvents struct {
	NetworkEvents uint32
	ErrorCode     [10]int32
}

func wsaEventSelect(fd uintptr, event windows.Handle, mask uint32) error {
	r1, _, e1 := procWSAEventSelect.Call(fd, uintptr(event), uintptr(mask))
	if r1 != 0 {
		return os.NewSyscallError("WSAEventSelect", e1)
	}
	return nil
}

func wsaEnumNetworkEvents(fd uintptr, event windows.Handle) (uint32, [10]int32, error) {
	var ne wsaNetworkEvents
	r1, _, e1 := procWSAEnumNetworkEvents.Call(fd, uintptr(event), uintptr(unsafe.Pointer(&ne)))
	if r1 != 0 {
		return 0, ne.ErrorCode, os.NewSyscallError("WSAEnumNetworkEvents", e1)
	}
	return ne.NetworkEvents, ne.ErrorCode, nil
}

var errWaitTimeout = errors.New("iomux: wait timeout")

// wsaWaitForMultipleEvents waits on handles using the ordinary Win32
// WaitForMultipleObjects: WSA event objects created by CreateEvent are
// plain Win32 events, so no separate "WSA" wait primitive is needed once
// WSAEventSelect has armed them — this mirrors how the original's
// EventDispatcher treats its WSAEVENT as an interchangeable Win32 HANDLE.
func wsaWaitForMultipleEvents(handles []windows.Handle, waitAll bool, timeoutMS uint32) (int, error) {
	if len(handles) == 0 {
		// Nothing to multiplex on; report a timeout at once, without waiting.
		return -1, errWaitTimeout
	}
	var waitAllFlag uintptr
	if waitAll {
		waitAllFlag = 1
	}
	r1, _, e1 := procWaitForMultipleObjects.Call(
		uintptr(len(handles)),
		uintptr(unsafe.Pointer(&handles[0])),
		waitAllFlag,
		uintptr(timeoutMS),
	)
	const waitObject0 = 0
	const waitTimeout = 0x102
	const waitFailed = 0xFFFFFFFF
	switch {
	case r1 == waitTimeout:
		return -1, errWaitTimeout
	case r1 == waitFailed:
		return -1, os.NewSyscallError("WaitForMultipleObjects", e1)
	case r1 >= waitObject0 && int(r1) < len(handles):
		return int(r1), nil
	default:
		return -1, os.NewSyscallError("WaitForMultipleObjects", e1)
	}
}
