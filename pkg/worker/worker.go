// Package worker runs independent jobs on a bounded pool with retry and an
// optional global rate limit. The pipeline uses it for API page fetches and
// per-module fan-out; results keep their input order.
package worker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TransientError marks an error as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether err should be retried: explicit TransientError
// wrappers, deadline expiry, and network timeouts qualify.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

type Options struct {
	Workers    int
	MaxRetries int

	// RateLimitRPS is a global limit across all workers. <=0 disables it.
	RateLimitRPS float64

	// BackoffInitial is the sleep before the first retry; it doubles per
	// attempt up to BackoffMax.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// FailFast cancels remaining jobs after the first permanent failure.
	FailFast bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	return o
}

// Result holds the output for one job, at the job's input index.
type Result[In any, Out any] struct {
	Input  In
	Output Out
	Err    error
}

// Map runs fn over all items and returns one Result per item, input-ordered.
// With FailFast unset, job errors are recorded per-result and Map returns nil;
// the only non-nil error returns are context cancellation and fail-fast.
func Map[In any, Out any](
	ctx context.Context,
	items []In,
	fn func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Result[In, Out], len(items))

	type job struct {
		idx int
		in  In
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if runCtx.Err() != nil {
					return
				}
				res, err := runWithRetry(runCtx, j.in, fn, limiter, opts)
				out[j.idx] = Result[In, Out]{Input: j.in, Output: res, Err: err}
				if err != nil && opts.FailFast {
					fail(err)
					return
				}
			}
		}()
	}

	for i, item := range items {
		select {
		case jobs <- job{idx: i, in: item}:
		case <-runCtx.Done():
			i = len(items) // stop feeding
		}
		if i >= len(items) {
			break
		}
	}
	close(jobs)
	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func runWithRetry[In any, Out any](
	ctx context.Context,
	item In,
	fn func(context.Context, In) (Out, error),
	limiter *rate.Limiter,
	opts Options,
) (Out, error) {
	var last Out
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return last, err
			}
		}

		res, err := fn(ctx, item)
		last = res
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return last, ctx.Err()
		}
		if !IsTransient(err) || attempt >= opts.MaxRetries {
			return last, err
		}

		sleep := opts.BackoffInitial
		for i := 0; i < attempt && sleep < opts.BackoffMax; i++ {
			sleep *= 2
		}
		if sleep > opts.BackoffMax {
			sleep = opts.BackoffMax
		}
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return last, ctx.Err()
		}
	}
}
