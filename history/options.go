package history

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Controller.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	namespace  string
	tracer     trace.Tracer
	keyFunc    func() string
}

func defaultConfig() config {
	return config{
		logger:    slog.New(slog.DiscardHandler),
		namespace: "waypoint",
		keyFunc:   newKey,
	}
}

// newKey returns a time-ordered UUIDv7 string.
func newKey() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegisterer registers the controller metrics with reg. Without it the
// metrics are collected but not registered anywhere.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// WithNamespace sets the metrics namespace (default: "waypoint").
func WithNamespace(namespace string) Option {
	return func(c *config) {
		c.namespace = namespace
	}
}

// WithTracer sets the tracer used for loader spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		c.tracer = tracer
	}
}

// WithKeyFunc sets the function generating location keys for Navigate.
func WithKeyFunc(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.keyFunc = fn
		}
	}
}
