package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vitalvas/waypoint/route"
	"github.com/vitalvas/waypoint/routefile"
)

const maxDelay = 10 * time.Second

// builtinRegistry returns the loaders and predicates route files can use
// with the CLI:
//
//	params  sync, returns the match params
//	delay   async, returns the match params after the "ms" param
//	        milliseconds (default 100)
//	rest    predicate consuming the whole remaining path
func builtinRegistry() *routefile.Registry {
	return &routefile.Registry{
		Loaders: map[string]*route.Loader{
			"params": route.SyncLoader("params", func(_ context.Context, p route.Params) (any, error) {
				return p.Clone(), nil
			}),
			"delay": route.AsyncLoader("delay", delayLoad),
		},
		Predicates: map[string]route.PredicateFunc{
			"rest": func(remaining string) (string, bool) {
				return remaining, remaining != ""
			},
		},
	}
}

func delayLoad(ctx context.Context, p route.Params) (any, error) {
	d := 100 * time.Millisecond

	if raw, ok := p["ms"]; ok {
		ms, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("delay: invalid ms %q", raw)
		}
		d = min(time.Duration(ms)*time.Millisecond, maxDelay)
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return p.Clone(), nil
	}
}
