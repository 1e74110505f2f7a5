// Package route resolves a URL path against a declarative, possibly
// recursive route tree and produces an ordered tree of matches with
// extracted parameters.
//
// # Routes
//
// A Route pairs a Matcher with optional continuations:
//
//	folder := &route.Route{Name: "folder", Matcher: route.Pattern("/f/:id")}
//	folder.Next = route.Routes(folder, document)
//
// Next is evaluated lazily, so a route graph may refer to itself without
// building a cyclic structure. Subroutes declare an independent tree that
// is matched against exactly the segment the parent consumed.
//
// # Matchers
//
// Three matcher kinds exist:
//
//	route.Pattern("/d/:id")                 // placeholder captures [^/]+
//	route.Pattern("/:slug/:v([^~/]+)")      // placeholder with its own expression
//	route.Prefixes("/docs", "/doc")         // first literal prefix wins
//	route.Predicate(route.SplitOn("/~"))    // custom function
//
// Patterns are split on "/"; a segment starting with ":" is a placeholder
// and every other segment is literal. Patterns match a prefix of the
// remaining path, never the whole of it. A pattern without placeholders is
// a plain prefix test. Compiled patterns are cached for the lifetime of the
// process.
//
// A malformed pattern never matches. Its error is available through
// Matcher.Err and is logged at debug level when a logger is passed to
// Resolve with WithLogger.
//
// # Resolution
//
// Resolve tries the routes of a level in order and stops at the first hit:
//
//	matches := route.Resolve("/f/folder1/d/document1", routes)
//	// matches[0].Segment == "/f/folder1", matches[0].Params["id"] == "folder1"
//	// matches[1].Segment == "/d/document1"
//
// When path is left over and the route declares no Next, or when no route
// matches at all, the level ends with a not-found match whose Config is
// the NotFound sentinel:
//
//	if route.IsNotFound(m) {
//	    // render a 404 for m.Segment
//	}
//
// The segments of a level always concatenate to the path given to it.
//
// # Walking and Lookup
//
// Walk visits a match tree in pre-order and passes the ancestors of each
// match. Return SkipChildren to skip descending into a match's children.
//
// Chain records the ancestor path seen by a nested consumer; Lookup finds
// the nearest match with a given id and returns ErrUnknownRoute when there
// is none.
//
// # Parallel Segments
//
// MoveSegment, OpenSegment, CloseSegment and ReplaceSegment rebuild the
// path of a level after reordering, inserting, removing or replacing one
// of its sibling segments.
//
// # Path Building
//
// Pattern routes support reverse path building:
//
//	p, err := folder.URLPath("id", "42") // "/f/42"
package route
