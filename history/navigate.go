package history

import (
	"github.com/vitalvas/waypoint/route"
)

// NavigateOption configures Navigate.
type NavigateOption func(*navigateOptions)

type navigateOptions struct {
	replace  bool
	state    any
	navigate bool
}

// WithReplace replaces the current entry instead of pushing a new one.
func WithReplace() NavigateOption {
	return func(o *navigateOptions) {
		o.replace = true
	}
}

// WithState attaches state to the new location.
func WithState(state any) NavigateOption {
	return func(o *navigateOptions) {
		o.state = state
	}
}

// WithoutNavigate only computes the location; the stack and the
// controller are left untouched.
func WithoutNavigate() NavigateOption {
	return func(o *navigateOptions) {
		o.navigate = false
	}
}

// Navigate resolves to against the current pathname and pushes the result,
// or replaces the current entry with WithReplace. A pathname starting with
// "/" is absolute; "." and ".." segments are resolved. The location gets a
// fresh key and is returned.
func (c *Controller) Navigate(to string, opts ...NavigateOption) Location {
	o := navigateOptions{navigate: true}
	for _, opt := range opts {
		opt(&o)
	}

	loc := resolveTo(to, c.Snapshot().Location.Pathname)
	loc.Key = c.cfg.keyFunc()
	loc.State = o.state

	if !o.navigate {
		return loc
	}

	if o.replace {
		c.Replace(loc)
	} else {
		c.Push(loc)
	}

	return loc
}

// NavigateWithin navigates relative to the parent of m: to is appended to
// the path consumed before m, so a nested route can address its siblings
// without knowing where it is mounted.
func (c *Controller) NavigateWithin(m route.Match, to string, opts ...NavigateOption) Location {
	return c.Navigate(m.Base()+to, opts...)
}
