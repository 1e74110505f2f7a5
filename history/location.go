package history

import (
	"path"
	"strings"
)

// Action is the kind of navigation that produced a state.
type Action int

const (
	// Pop is an initial load or a back/forward move.
	Pop Action = iota
	// Push adds a new entry to the stack.
	Push
	// Replace overwrites the current entry.
	Replace
)

// String returns "POP", "PUSH" or "REPLACE".
func (a Action) String() string {
	switch a {
	case Pop:
		return "POP"
	case Push:
		return "PUSH"
	case Replace:
		return "REPLACE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// DefaultKey is the key of a location that was not produced by a
// navigation, such as the initial entry of a stack.
const DefaultKey = "default"

// Location is one entry of the navigation stack.
type Location struct {
	Pathname string `json:"pathname"`
	Search   string `json:"search,omitempty"`
	Hash     string `json:"hash,omitempty"`
	State    any    `json:"state,omitempty"`
	Key      string `json:"key"`
}

// Path returns pathname, search and hash joined.
func (l Location) Path() string {
	return l.Pathname + l.Search + l.Hash
}

// ParsePath splits s into pathname, search and hash. The query string and
// fragment keep their leading "?" and "#" and are not decoded.
func ParsePath(s string) Location {
	var loc Location

	if idx := strings.IndexByte(s, '#'); idx != -1 {
		loc.Hash = s[idx:]
		s = s[:idx]
	}
	if idx := strings.IndexByte(s, '?'); idx != -1 {
		loc.Search = s[idx:]
		s = s[:idx]
	}
	loc.Pathname = s

	return loc
}

// resolveTo returns the location of to relative to the pathname from.
// An absolute pathname is kept; a relative one is joined to from with "."
// and ".." resolved; an empty one keeps from.
func resolveTo(to, from string) Location {
	loc := ParsePath(to)

	switch {
	case loc.Pathname == "":
		loc.Pathname = from
	case strings.HasPrefix(loc.Pathname, "/"):
	default:
		trailing := strings.HasSuffix(loc.Pathname, "/")
		loc.Pathname = path.Join("/", from, loc.Pathname)
		if trailing && loc.Pathname != "/" {
			loc.Pathname += "/"
		}
	}

	return loc
}
