package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status tags the outcome of a call to an external port.
type Status string

const (
	StatusOK      Status = "ok"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// ErrTimeout is the error carried by results that ran out of budget.
var ErrTimeout = errors.New("port call timed out")

// Result is the tagged outcome of one port call.
type Result[T any] struct {
	Value   T
	Status  Status
	Err     error
	Latency time.Duration
}

func (r Result[T]) OK() bool {
	return r.Status == StatusOK
}

// Await calls fn with a context bounded by timeout and returns as soon as
// fn finishes or the budget runs out, whichever is first. fn keeps running
// in the background if it ignores its context, but its late result is
// discarded. A panic in fn is reported as StatusError.
func Await[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("port panic: %v", p)}
			}
		}()
		v, err := fn(callCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		res := Result[T]{Value: out.value, Err: out.err, Latency: time.Since(start)}
		res.Status = Classify(out.err)
		if res.Status == StatusTimeout {
			var zero T
			res.Value = zero
		}
		return res
	case <-callCtx.Done():
		var zero T
		res := Result[T]{Value: zero, Status: StatusTimeout, Err: ErrTimeout, Latency: time.Since(start)}
		if errors.Is(ctx.Err(), context.Canceled) {
			res.Status = StatusError
			res.Err = ctx.Err()
		}
		return res
	}
}
