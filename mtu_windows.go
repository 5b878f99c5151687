//go:build windows

package iomux

// estimateMTU is specified only at contract level on Windows: the original
// performs the same ICMP ladder through IcmpSendEcho, which this module
// does not bind (it would need a second DLL beyond ws2_32.dll for no
// corresponding EventLoop capability). Callers needing a concrete MTU on
// Windows should fall back to a fixed conservative value.
func estimateMTU(addr string) (int, error) {
	return 0, ErrUnsupportedOption
}
