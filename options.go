package iomux

// Options configures a new EventLoop. Follows the teacher's functional-
// options shape (options.go in SyhanLiu-shlev) almost verbatim, generalized
// from TCP-server tuning knobs (multicore, load balancing, per-connection
// buffer caps) to event-loop tuning knobs, since this library's EventLoop is
// a single reactor rather than a ready-made multi-reactor server.
type Options struct {
	// ReadBufferCap is stored on the loop's Options (default
	// MaxTcpBufferCap). Nothing in this package reads it: Recv and
	// RecvFrom read into the caller's buffer.
	ReadBufferCap int

	// EnablePosixSignalRouter registers the PosixSignalRouter's
	// dispatcher with this loop on construction (POSIX only; ignored on
	// Windows). Off by default since most loops never install signal
	// handlers.
	EnablePosixSignalRouter bool

	// LockOSThread pins the goroutine that calls Wait to its OS thread
	// for the duration of the call, matching the teacher's
	// WithLockOSThread. Useful when platform event objects are
	// thread-affine (notably on Windows).
	LockOSThread bool
}

// OptionFunc mutates an Options during construction.
type OptionFunc = func(*Options)

func loadOptions(opts ...OptionFunc) *Options {
	o := &Options{ReadBufferCap: MaxTcpBufferCap}
	for _, f := range opts {
		f(o)
	}
	return o
}

// WithReadBufferCap sets Options.ReadBufferCap.
func WithReadBufferCap(n int) OptionFunc {
	return func(o *Options) { o.ReadBufferCap = n }
}

// WithPosixSignalRouter enables the process-global POSIX signal router for
// this loop. A no-op on Windows.
func WithPosixSignalRouter(enabled bool) OptionFunc {
	return func(o *Options) { o.EnablePosixSignalRouter = enabled }
}

// WithLockOSThread pins Wait's goroutine to its OS thread while running.
func WithLockOSThread(enabled bool) OptionFunc {
	return func(o *Options) { o.LockOSThread = enabled }
}

// MaxTcpBufferCap is the default ReadBufferCap, matching the
// teacher's MaxTcpBufferCap constant (shlev.go).
const MaxTcpBufferCap = 64 * 1024
