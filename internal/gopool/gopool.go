// Package gopool offloads short-lived work (currently: AsyncResolver
// lookups) onto the shared goroutine pool instead of spawning a bare
// goroutine per call. Adapted from the teacher's tools/gopool.
package gopool

import (
	"context"

	"github.com/Senhnn/GoroutinePool"
)

// Go schedules f on the shared pool.
func Go(f func()) {
	GoroutinePool.Go(f)
}

// CtxGo schedules f on the shared pool, bound to ctx.
func CtxGo(ctx context.Context, f func()) {
	GoroutinePool.CtxGo(ctx, f)
}
