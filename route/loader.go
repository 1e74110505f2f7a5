package route

import (
	"context"
	"fmt"

	"github.com/vitalvas/waypoint/future"
)

// LoadFunc loads data for a match. It returns a future that is either
// already settled or settles later.
type LoadFunc func(ctx context.Context, params Params) *future.Future

// Loader is a data loader attached to routes. Its identity is the pointer:
// two routes sharing one *Loader share cache entries.
type Loader struct {
	name string
	load LoadFunc
}

// NewLoader returns a loader backed by fn.
func NewLoader(name string, fn LoadFunc) *Loader {
	return &Loader{name: name, load: fn}
}

// SyncLoader returns a loader whose result is available as soon as fn
// returns.
func SyncLoader(name string, fn func(ctx context.Context, params Params) (any, error)) *Loader {
	return NewLoader(name, func(ctx context.Context, params Params) *future.Future {
		v, err := fn(ctx, params)
		if err != nil {
			return future.Failed(err)
		}
		return future.Resolved(v)
	})
}

// AsyncLoader returns a loader that runs fn on its own goroutine.
func AsyncLoader(name string, fn func(ctx context.Context, params Params) (any, error)) *Loader {
	return NewLoader(name, func(ctx context.Context, params Params) *future.Future {
		return future.Go(func() (any, error) {
			return fn(ctx, params)
		})
	})
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return l.name
}

// Load invokes the loader with a copy of params. A nil result is treated
// as an immediately resolved nil value. A panic raised while the loader
// runs on the calling goroutine settles the returned future with an error.
func (l *Loader) Load(ctx context.Context, params Params) (f *future.Future) {
	if l.load == nil {
		return future.Resolved(nil)
	}

	defer func() {
		if r := recover(); r != nil {
			f = future.Failed(fmt.Errorf("route: loader %s panic: %v", l.name, r))
		}
	}()

	if res := l.load(ctx, params.Clone()); res != nil {
		return res
	}
	return future.Resolved(nil)
}
