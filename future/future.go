// Package future provides a settle-once pending computation and a join
// helper that waits for a set of them without early cancellation.
//
// A Future is created unsettled with New, or already settled with Resolved
// and Failed. Go runs a function on its own goroutine and settles the
// returned Future with its result:
//
//	f := future.Go(func() (any, error) {
//	    return fetchDocument(id)
//	})
//	v, err := f.Wait(ctx)
//
// Join waits for every future it is given. A failed future settles its own
// slot with the error and never stops the others from completing.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPending is returned by Result when the future has not settled yet.
var ErrPending = errors.New("future: not settled")

// Future is a value that becomes available once, either as a value or as an
// error. The zero value is not usable; create futures with New, Resolved,
// Failed or Go.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// New returns an unsettled future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future already settled with v.
func Resolved(v any) *Future {
	f := New()
	f.Resolve(v)
	return f
}

// Failed returns a future already settled with err.
func Failed(err error) *Future {
	f := New()
	f.Reject(err)
	return f
}

// Go runs fn on a new goroutine and settles the returned future with its
// result. A panic inside fn settles the future with an error.
func Go(fn func() (any, error)) *Future {
	f := New()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Reject(fmt.Errorf("future: panic: %v", r))
			}
		}()
		v, err := fn()
		f.settle(v, err)
	}()
	return f
}

// Resolve settles the future with v. It reports whether this call settled
// the future; later calls are ignored.
func (f *Future) Resolve(v any) bool {
	return f.settle(v, nil)
}

// Reject settles the future with err. A nil err is replaced by a generic
// error so that a rejected future is always distinguishable.
func (f *Future) Reject(err error) bool {
	if err == nil {
		err = errors.New("future: rejected")
	}
	return f.settle(nil, err)
}

func (f *Future) settle(v any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
		settled = true
	})
	return settled
}

// Done returns a channel closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has a value or an error.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error without blocking.
// It returns ErrPending while the future is unsettled.
func (f *Future) Result() (any, error) {
	if !f.Settled() {
		return nil, ErrPending
	}
	return f.value, f.err
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	if f.Settled() {
		return f.value, f.err
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnSettle calls fn with the result once the future settles. If the future
// is already settled, fn runs before OnSettle returns; otherwise it runs on
// a separate goroutine.
func (f *Future) OnSettle(fn func(v any, err error)) {
	if f.Settled() {
		fn(f.value, f.err)
		return
	}
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}

// Outcome is the settled result of one slot in a Join.
type Outcome struct {
	Value any
	Err   error
}

// Join waits for all futures to settle and returns their outcomes in the
// same order. A failure in one slot does not stop the wait for the others.
// When ctx is done first, every slot still unsettled gets ctx.Err().
func Join(ctx context.Context, futures ...*Future) []Outcome {
	out := make([]Outcome, len(futures))
	for i, f := range futures {
		v, err := f.Wait(ctx)
		out[i] = Outcome{Value: v, Err: err}
	}
	return out
}

// Errors returns the non-nil errors of outcomes, in slot order.
func Errors(outcomes []Outcome) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
