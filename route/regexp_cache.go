package route

import (
	"regexp"
	"sync"
)

// regexpCache caches compiled regular expressions by pattern string.
// The number of unique patterns is bounded by the number of declared
// routes, so the cache grows to a fixed size and stays there.
var regexpCache sync.Map

// patternCache caches parsed templates, including the ones that failed to
// parse, so a malformed route is not re-parsed on every resolution.
var patternCache sync.Map

type patternResult struct {
	pattern *routePattern
	err     error
}

// compileRegexp returns a cached *regexp.Regexp for the given pattern,
// compiling and caching it on first use.
func compileRegexp(pattern string) (*regexp.Regexp, error) {
	if v, ok := regexpCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	actual, _ := regexpCache.LoadOrStore(pattern, re)

	return actual.(*regexp.Regexp), nil
}

// compilePattern returns the cached routePattern for tpl.
func compilePattern(tpl string) (*routePattern, error) {
	if v, ok := patternCache.Load(tpl); ok {
		res := v.(patternResult)
		return res.pattern, res.err
	}

	p, err := newRoutePattern(tpl)
	actual, _ := patternCache.LoadOrStore(tpl, patternResult{pattern: p, err: err})
	res := actual.(patternResult)

	return res.pattern, res.err
}
