package route

import (
	"errors"
	"fmt"
)

// ErrUnknownRoute is returned when a chain lookup names a route that is not
// among the ancestors.
var ErrUnknownRoute = errors.New("route: no route with that id in the chain")

type link struct {
	id    string
	match Match
}

// Chain is the ancestor path of matches from the outermost route to the
// current one, each tagged with an id. It is immutable: With returns a new
// chain.
type Chain struct {
	links []link
}

// ChainOf builds a chain from matches, using each route name as its id.
func ChainOf(matches ...Match) Chain {
	var c Chain
	for _, m := range matches {
		c = c.With(m.RouteName(), m)
	}
	return c
}

// With returns a copy of c extended by m under id.
func (c Chain) With(id string, m Match) Chain {
	links := make([]link, len(c.links), len(c.links)+1)
	copy(links, c.links)
	return Chain{links: append(links, link{id: id, match: m})}
}

// Len returns the number of links.
func (c Chain) Len() int {
	return len(c.links)
}

// Current returns the innermost match.
func (c Chain) Current() (Match, bool) {
	if len(c.links) == 0 {
		return Match{}, false
	}
	return c.links[len(c.links)-1].match, true
}

// Lookup returns the nearest match tagged with id, searching from the
// innermost link outwards. A missing id is an error rather than a zero
// match.
func (c Chain) Lookup(id string) (Match, error) {
	for i := len(c.links) - 1; i >= 0; i-- {
		if c.links[i].id == id {
			return c.links[i].match, nil
		}
	}
	return Match{}, fmt.Errorf("%w: %q", ErrUnknownRoute, id)
}
