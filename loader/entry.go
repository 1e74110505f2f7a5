package loader

import (
	"github.com/vitalvas/waypoint/future"
	"github.com/vitalvas/waypoint/route"
)

// Entry is one cached loader invocation.
type Entry struct {
	Loader *route.Loader
	Params route.Params
	Future *future.Future
}

// Pending reports whether the invocation has not settled yet.
func (e *Entry) Pending() bool {
	return !e.Future.Settled()
}

// Value returns the settled result. ok is false while the invocation is
// pending.
func (e *Entry) Value() (v any, err error, ok bool) { //nolint:revive // mirrors the (value, error, settled) triple of Data
	if !e.Future.Settled() {
		return nil, nil, false
	}
	v, err = e.Future.Result()
	return v, err, true
}

// generation holds the entries recorded by one Run, grouped by loader.
type generation map[*route.Loader][]*Entry

func (g generation) find(l *route.Loader, params route.Params) *Entry {
	for _, e := range g[l] {
		if e.Params.Equal(params) {
			return e
		}
	}
	return nil
}

func (g generation) add(e *Entry) {
	g[e.Loader] = append(g[e.Loader], e)
}

func (g generation) size() int {
	n := 0
	for _, entries := range g {
		n += len(entries)
	}
	return n
}
