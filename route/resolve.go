package route

import (
	"log/slog"
)

// Option configures Resolve.
type Option func(*resolver)

// WithLogger sets the logger that reports malformed patterns met during
// resolution.
func WithLogger(logger *slog.Logger) Option {
	return func(r *resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type resolver struct {
	logger *slog.Logger

	// skipped holds the malformed routes already reported by this
	// resolution.
	skipped map[*Route]struct{}
}

// Resolve walks routes against path and returns the ordered match list.
//
// Routes at a level are tried in declaration order and the first hit wins.
// When a hit leaves path unconsumed and its route declares Next, matching
// continues with Next() against the tail; otherwise a not-found match for
// the tail is appended. When nothing matches, a single not-found match
// consumes the remainder. Subroutes are resolved independently against
// the consumed segment and stored as Children.
//
// The empty path and "/" resolve to no matches.
func Resolve(path string, routes []*Route, opts ...Option) []Match {
	r := &resolver{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}
	return r.resolve(path, routes)
}

func (r *resolver) resolve(path string, routes []*Route) []Match {
	if path == "" || path == "/" {
		return nil
	}

	var (
		matches    []Match
		matched    string
		remaining  = path
		candidates = routes
	)

	for {
		route, res, ok := r.first(remaining, candidates)
		if !ok {
			matches = append(matches, notFoundMatch(matched, remaining))
			break
		}

		m := Match{
			Segment:     res.Segment,
			Accumulated: matched + res.Segment,
			Params:      res.Params,
			Config:      route,
		}
		if len(route.Subroutes) > 0 {
			m.Children = r.resolve(m.Segment, route.Subroutes)
		}
		matches = append(matches, m)

		if len(res.Segment) == len(remaining) {
			break
		}

		matched += res.Segment
		remaining = remaining[len(res.Segment):]

		if route.Next == nil {
			matches = append(matches, notFoundMatch(matched, remaining))
			break
		}
		candidates = route.Next()
	}

	for i := range matches {
		matches[i].Index = i
	}

	return matches
}

// first returns the first candidate that matches remaining.
func (r *resolver) first(remaining string, candidates []*Route) (*Route, Resolution, bool) {
	for _, route := range candidates {
		if route == nil {
			continue
		}
		if err := route.Matcher.Err(); err != nil {
			r.skip(route, err)
			continue
		}
		if res, ok := route.Matcher.Resolve(remaining); ok {
			return route, res, true
		}
	}
	return nil, Resolution{}, false
}

// skip reports a malformed route the first time a resolution meets it.
func (r *resolver) skip(route *Route, err error) {
	if _, ok := r.skipped[route]; ok {
		return
	}
	if r.skipped == nil {
		r.skipped = map[*Route]struct{}{}
	}
	r.skipped[route] = struct{}{}

	r.logger.Debug("skipping malformed route", "route", route.String(), "error", err)
}

func notFoundMatch(matched, remaining string) Match {
	return Match{
		Segment:     remaining,
		Accumulated: matched + remaining,
		Params:      Params{},
		Config:      NotFound,
	}
}
