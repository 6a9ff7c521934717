package resilience

import (
	"context"
	"fmt"
	"time"
)

// Call runs fn under a deadline of timeout derived from ctx and returns its
// result. When the deadline passes first, Call returns immediately with an
// error wrapping context.DeadlineExceeded; fn keeps running until it observes
// its cancelled context, and its late result is discarded. A non-positive
// timeout runs fn inline.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		if cause := context.Cause(ctx); cause != context.DeadlineExceeded {
			return zero, fmt.Errorf("%s: %w", name, cause)
		}
		return zero, fmt.Errorf("%s: %w after %v", name, context.DeadlineExceeded, timeout)
	}
}
