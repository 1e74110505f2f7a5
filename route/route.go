package route

import (
	"errors"
	"fmt"
)

// Route is an author-declared rule: how to recognise a path prefix, what to
// render, an optional data loader and optional continuations. Routes are
// declared once and never mutated afterwards.
type Route struct {
	// Name identifies the route in chain lookups, logs and route files.
	Name string

	// Matcher decides how much of the remaining path the route consumes.
	Matcher Matcher

	// Render is opaque data for the rendering layer.
	Render any

	// Loader produces data for the match params, if set.
	Loader *Loader

	// Await makes navigation wait for Loader before publishing.
	Await bool

	// Next lists the routes allowed to continue matching after this route
	// consumed its prefix. It is called lazily, so a route may list itself.
	Next func() []*Route

	// Subroutes is a nested tree matched against exactly the segment this
	// route consumed.
	Subroutes []*Route
}

// NotFound is the sentinel route carried by not-found matches. Compare
// Match.Config against it, or use IsNotFound.
var NotFound = &Route{
	Name:    "404",
	Matcher: Pattern("404"),
}

// ErrNoPattern is returned when building a path for a route whose matcher
// is not a pattern.
var ErrNoPattern = errors.New("route: route doesn't have a pattern")

// Routes returns a Next function that always yields routes.
func Routes(routes ...*Route) func() []*Route {
	return func() []*Route { return routes }
}

// String returns the route name, or its matcher when unnamed.
func (r *Route) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Matcher.String()
}

// URLPath builds the path segment for a pattern route. It accepts a
// sequence of key/value pairs for the placeholders. Returns an error if a
// value is missing or doesn't match its placeholder expression.
func (r *Route) URLPath(pairs ...string) (string, error) {
	if r.Matcher.Kind() != KindPattern {
		return "", ErrNoPattern
	}
	p, err := compilePattern(r.Matcher.Template())
	if err != nil {
		return "", err
	}
	values, err := mapFromPairsToString(pairs...)
	if err != nil {
		return "", err
	}
	return p.build(values)
}

// GetVarNames returns the placeholder names of a pattern route.
func (r *Route) GetVarNames() ([]string, error) {
	if r.Matcher.Kind() != KindPattern {
		return nil, ErrNoPattern
	}
	p, err := compilePattern(r.Matcher.Template())
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.varsN...), nil
}

// checkPairs returns an error if the list of key/value pairs has odd length.
func checkPairs(pairs ...string) (int, error) {
	if len(pairs)%2 != 0 {
		return 0, fmt.Errorf("route: number of parameters must be multiple of 2, got %v", pairs)
	}
	return len(pairs) / 2, nil
}

// mapFromPairsToString converts variadic string parameters to Params.
func mapFromPairsToString(pairs ...string) (Params, error) {
	length, err := checkPairs(pairs...)
	if err != nil {
		return nil, err
	}
	m := make(Params, length)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m, nil
}
