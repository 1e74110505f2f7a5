package loader

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/vitalvas/waypoint/route"
)

// Observer is notified of cache activity. Calls may happen while the cache
// is locked and from the goroutine that settles a future; implementations
// must not call back into the cache.
type Observer interface {
	// Invoked is called when a loader is invoked.
	Invoked(l *route.Loader)
	// Reused is called when a previous-generation entry is carried over.
	Reused(l *route.Loader)
	// Failed is called when an invocation settles with an error.
	Failed(l *route.Loader, err error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithTracer sets the tracer used to open a span per loader invocation.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Cache) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an observer of cache activity.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

type noopObserver struct{}

func (noopObserver) Invoked(*route.Loader)       {}
func (noopObserver) Reused(*route.Loader)        {}
func (noopObserver) Failed(*route.Loader, error) {}
