// Package loader caches route loader invocations across navigations.
//
// A Cache keeps two generations of entries: the one built by the latest Run
// and the one before it. An entry is keyed by its loader pointer and its
// params, compared by key set and values. Within a Run a key is invoked at
// most once; a key already present in the previous generation is carried
// over instead of invoked again. Older generations are dropped.
//
// Failures are cached like successes: the entry keeps its future, settled
// with the error.
package loader

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vitalvas/waypoint/future"
	"github.com/vitalvas/waypoint/route"
)

const tracerName = "github.com/vitalvas/waypoint/loader"

// Stats are cumulative counters of cache activity.
type Stats struct {
	// Invocations counts calls to a loader.
	Invocations uint64 `json:"invocations"`
	// Reuses counts entries carried over from the previous generation.
	Reuses uint64 `json:"reuses"`
	// Dedups counts matches served by an entry already recorded in the
	// same Run.
	Dedups uint64 `json:"dedups"`
	// Runs counts calls to Run.
	Runs uint64 `json:"runs"`
}

// Cache is a two-generation loader cache. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	current  generation
	previous generation
	stats    Stats

	tracer   trace.Tracer
	logger   *slog.Logger
	observer Observer
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		current:  generation{},
		previous: generation{},
		tracer:   otel.Tracer(tracerName),
		logger:   slog.New(slog.DiscardHandler),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run starts a new generation and records an entry for every match in the
// tree that carries a loader, visiting parents before children. It returns
// the futures that are still pending for matches whose route awaits its
// loader; each future appears once.
func (c *Cache) Run(ctx context.Context, matches []route.Match) []*future.Future {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.previous, c.current = c.current, generation{}
	c.stats.Runs++

	var (
		awaited []*future.Future
		seen    = map[*future.Future]bool{}
	)

	_ = route.Walk(matches, func(m route.Match, _ []route.Match) error {
		if m.Config == nil || m.Config.Loader == nil {
			return nil
		}

		entry := c.record(ctx, m)

		if m.Config.Await && entry.Pending() && !seen[entry.Future] {
			seen[entry.Future] = true
			awaited = append(awaited, entry.Future)
		}
		return nil
	})

	return awaited
}

// record returns the entry for m in the current generation, creating it
// from the previous generation or a fresh invocation. c.mu must be held.
func (c *Cache) record(ctx context.Context, m route.Match) *Entry {
	l := m.Config.Loader

	if e := c.current.find(l, m.Params); e != nil {
		c.stats.Dedups++
		return e
	}

	if e := c.previous.find(l, m.Params); e != nil {
		c.stats.Reuses++
		c.current.add(e)
		c.observer.Reused(l)
		c.logger.Debug("reusing loader result", "loader", l.Name(), "path", m.Accumulated)
		return e
	}

	e := &Entry{Loader: l, Params: m.Params.Clone()}
	e.Future = c.invoke(ctx, l, m)
	c.current.add(e)
	c.stats.Invocations++

	return e
}

func (c *Cache) invoke(ctx context.Context, l *route.Loader, m route.Match) *future.Future {
	ctx, span := c.tracer.Start(ctx, "loader "+l.Name(),
		trace.WithAttributes(paramAttributes(l, m)...),
	)

	c.observer.Invoked(l)
	c.logger.Debug("invoking loader", "loader", l.Name(), "path", m.Accumulated)

	f := l.Load(ctx, m.Params)

	f.OnSettle(func(_ any, err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.observer.Failed(l, err)
			c.logger.Debug("loader failed", "loader", l.Name(), "path", m.Accumulated, "error", err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	})

	return f
}

func paramAttributes(l *route.Loader, m route.Match) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("waypoint.loader", l.Name()),
		attribute.String("waypoint.path", m.Accumulated),
		attribute.String("waypoint.segment", m.Segment),
	}

	keys := make([]string, 0, len(m.Params))
	for k := range m.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		attrs = append(attrs, attribute.String("waypoint.param."+k, m.Params[k]))
	}

	return attrs
}

// Lookup returns the entry for loader and params, searching the current
// generation first and then the previous one.
func (c *Cache) Lookup(l *route.Loader, params route.Params) (*Entry, bool) {
	if l == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.current.find(l, params); e != nil {
		return e, true
	}
	if e := c.previous.find(l, params); e != nil {
		return e, true
	}
	return nil, false
}

// Stats returns a copy of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of entries in the current and previous
// generations.
func (c *Cache) Len() (current, previous int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.size(), c.previous.size()
}
