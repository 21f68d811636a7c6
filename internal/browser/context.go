package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from primary (which carries the CDP
// target) that is also canceled when secondary is done and honors
// secondary's deadline. chromedp actions need the primary's values; the
// caller's request context supplies the lifetime.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	var combined context.Context
	var cancel context.CancelFunc
	if deadline, ok := secondary.Deadline(); ok {
		combined, cancel = context.WithDeadline(primary, deadline)
	} else {
		combined, cancel = context.WithCancel(primary)
	}

	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// withOperationTimeout bounds ctx by d unless ctx already has a deadline.
func withOperationTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
