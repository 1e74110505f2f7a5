package route

import (
	"errors"
	"strings"
)

// Params maps placeholder names to extracted values.
type Params map[string]string

// Equal reports whether p and other have the same key set and values.
// A nil Params equals an empty one.
func (p Params) Equal(other Params) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Match is a resolved occurrence of a Route against a path prefix.
type Match struct {
	// Segment is the substring this route consumed.
	Segment string `json:"segment"`

	// Accumulated is the path consumed from the root of this resolution
	// down to and including this match.
	Accumulated string `json:"accumulated"`

	// Params holds the extracted placeholder values.
	Params Params `json:"params"`

	// Children are the matches of the route's Subroutes against Segment.
	Children []Match `json:"children,omitempty"`

	// Index is the position among sibling matches.
	Index int `json:"index"`

	// Config is the originating route. It is a back-reference and does
	// not own the route.
	Config *Route `json:"-"`
}

// IsNotFound reports whether m is the not-found sentinel match.
func IsNotFound(m Match) bool {
	return m.Config == NotFound
}

// Base returns the path consumed before this match, i.e. Accumulated
// without Segment. Relative navigation inside a nested route resolves
// against it.
func (m Match) Base() string {
	return strings.TrimSuffix(m.Accumulated, m.Segment)
}

// RouteName returns the name of the originating route, or "" when the
// match has no config.
func (m Match) RouteName() string {
	if m.Config == nil {
		return ""
	}
	return m.Config.Name
}

// Leaf returns the last match of a list, or false when the list is empty.
func Leaf(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[len(matches)-1], true
}

// JoinSegments concatenates the segments of matches in order.
func JoinSegments(matches []Match) string {
	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(m.Segment)
	}
	return sb.String()
}

// HasNotFound reports whether the match tree contains a not-found match at
// any depth.
func HasNotFound(matches []Match) bool {
	found := false
	_ = Walk(matches, func(m Match, _ []Match) error {
		if IsNotFound(m) {
			found = true
			return errStopWalk
		}
		return nil
	})
	return found
}

// WalkFunc is the type of the function called for each match visited by
// Walk. It is given the match and the list of ancestor matches that led to
// it, outermost first.
type WalkFunc func(m Match, ancestors []Match) error

// SkipChildren is used as a return value from WalkFunc to indicate that
// the children of the current match are not visited.
var SkipChildren = errors.New("skip children") //nolint:revive,staticcheck // sentinel, not an error condition

var errStopWalk = errors.New("stop walk")

// Walk visits the match tree in pre-order: parents before children,
// siblings in index order.
func Walk(matches []Match, fn WalkFunc) error {
	err := walk(matches, fn, nil)
	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}

func walk(matches []Match, fn WalkFunc, ancestors []Match) error {
	for _, m := range matches {
		err := fn(m, ancestors)
		if err == SkipChildren {
			continue
		}
		if err != nil {
			return err
		}
		if len(m.Children) > 0 {
			next := append(ancestors[:len(ancestors):len(ancestors)], m)
			if err := walk(m.Children, fn, next); err != nil {
				return err
			}
		}
	}
	return nil
}
