package route

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of a Matcher.
type Kind int

const (
	// KindPattern matches a literal pattern with ":name" placeholders.
	KindPattern Kind = iota
	// KindPrefixes matches the first of an ordered list of literal prefixes.
	KindPrefixes
	// KindPredicate delegates to a PredicateFunc.
	KindPredicate
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPattern:
		return "pattern"
	case KindPrefixes:
		return "prefixes"
	case KindPredicate:
		return "predicate"
	default:
		return "unknown"
	}
}

// PredicateFunc decides how much of remaining a route consumes. It returns
// the consumed prefix and true, or false when the route does not match.
type PredicateFunc func(remaining string) (segment string, ok bool)

// Resolution is the outcome of a successful Matcher.Resolve.
type Resolution struct {
	// Segment is the consumed prefix of the remaining path.
	Segment string
	// Params holds the extracted placeholder values.
	Params Params
	// Keys lists the placeholder names in declaration order.
	Keys []string
}

// Matcher decides whether, and how much of, a remaining path a route
// consumes. It is a closed variant: build one with Pattern, Prefixes or
// Predicate.
type Matcher struct {
	kind      Kind
	template  string
	prefixes  []string
	predicate PredicateFunc
}

// Pattern returns a matcher for a literal pattern such as "/f/:id" or
// "/:slug/:version([^~/]+)".
func Pattern(tpl string) Matcher {
	return Matcher{kind: KindPattern, template: tpl}
}

// Prefixes returns a matcher that consumes the first listed prefix found
// at the start of the remaining path.
func Prefixes(prefixes ...string) Matcher {
	return Matcher{kind: KindPrefixes, prefixes: append([]string(nil), prefixes...)}
}

// Predicate returns a matcher backed by fn.
func Predicate(fn PredicateFunc) Matcher {
	return Matcher{kind: KindPredicate, predicate: fn}
}

// Kind returns the matcher kind.
func (m Matcher) Kind() Kind {
	return m.kind
}

// Template returns the pattern template of a KindPattern matcher.
func (m Matcher) Template() string {
	return m.template
}

// PrefixList returns a copy of the prefixes of a KindPrefixes matcher.
func (m Matcher) PrefixList() []string {
	return append([]string(nil), m.prefixes...)
}

// Err returns the parse error of a malformed pattern, if any.
func (m Matcher) Err() error {
	if m.kind != KindPattern {
		return nil
	}
	_, err := compilePattern(m.template)
	return err
}

// Resolve matches remaining against the matcher. A match must consume a
// non-empty prefix of remaining; malformed patterns never match.
func (m Matcher) Resolve(remaining string) (Resolution, bool) {
	var (
		res Resolution
		ok  bool
	)

	switch m.kind {
	case KindPattern:
		p, err := compilePattern(m.template)
		if err != nil {
			return Resolution{}, false
		}
		res, ok = p.match(remaining)

	case KindPrefixes:
		for _, prefix := range m.prefixes {
			if prefix != "" && strings.HasPrefix(remaining, prefix) {
				res, ok = Resolution{Segment: prefix, Params: Params{}}, true
				break
			}
		}

	case KindPredicate:
		if m.predicate == nil {
			return Resolution{}, false
		}
		var seg string
		seg, ok = m.predicate(remaining)
		if ok && !strings.HasPrefix(remaining, seg) {
			ok = false
		}
		res = Resolution{Segment: seg, Params: Params{}}
	}

	if !ok || res.Segment == "" {
		return Resolution{}, false
	}

	return res, true
}

// String returns a printable form of the matcher.
func (m Matcher) String() string {
	switch m.kind {
	case KindPattern:
		return m.template
	case KindPrefixes:
		return fmt.Sprintf("prefixes%q", m.prefixes)
	default:
		return "predicate"
	}
}

// SplitOn returns a predicate for panel-style routes. When remaining
// starts with sep, it consumes sep plus everything up to the next
// occurrence of sep; "/~/f/a/~/d/b" with sep "/~" consumes "/~/f/a".
func SplitOn(sep string) PredicateFunc {
	return func(remaining string) (string, bool) {
		if sep == "" || !strings.HasPrefix(remaining, sep) {
			return "", false
		}
		rest := remaining[len(sep):]
		if idx := strings.Index(rest, sep); idx != -1 {
			rest = rest[:idx]
		}
		return sep + rest, true
	}
}
