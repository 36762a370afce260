// Package wait provides the bounded poll/await-condition primitive used
// across the surface engine. Every wait yields between probes, carries a
// hard deadline, and resolves to a definite success or timeout outcome.
package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the condition did not hold before the deadline.
var ErrTimeout = errors.New("wait: condition not met before timeout")

// Options controls poll cadence and the overall deadline.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultOptions returns the cadence most foreign-tree waits use.
func DefaultOptions() Options {
	return Options{
		Interval: 100 * time.Millisecond,
		Timeout:  5 * time.Second,
	}
}

func (o Options) normalized() Options {
	if o.Interval <= 0 {
		o.Interval = 100 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// For polls cond until it reports true, the timeout elapses, or ctx is
// cancelled. A cond error aborts the wait immediately. The condition is
// probed once before the first sleep, so an already-true condition never
// waits a full interval.
func For(ctx context.Context, opts Options, cond func(ctx context.Context) (bool, error)) error {
	opts = opts.normalized()

	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Until polls fetch until it yields a value for which accept returns true.
// On timeout the zero value is returned alongside ErrTimeout.
func Until[T any](ctx context.Context, opts Options, fetch func(ctx context.Context) (T, error), accept func(T) bool) (T, error) {
	var last T
	err := For(ctx, opts, func(ctx context.Context) (bool, error) {
		v, err := fetch(ctx)
		if err != nil {
			return false, err
		}
		last = v
		return accept(v), nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return last, nil
}
