// Package history drives navigation over a route tree.
//
// A Controller owns the current navigation State: the location, the
// action that produced it and its resolved matches. Every Push, Replace or
// pop moves the controller to a new state. When a matched route awaits its
// loader, the controller first publishes a loading state that keeps the
// previous location and matches visible, and publishes the new state once
// every awaited loader has settled, unless a newer navigation started in
// the meantime.
//
// The controller accepts one listener at a time. Listeners receive one
// State per committed change, in commit order, and may navigate from
// within the callback.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vitalvas/waypoint/future"
	"github.com/vitalvas/waypoint/loader"
	"github.com/vitalvas/waypoint/route"
)

// ErrListenerActive is returned by Listen while another listener is
// registered.
var ErrListenerActive = errors.New("history: a controller only accepts one active listener")

// State is an immutable snapshot of the navigation. Matches is shared
// between snapshots and must not be modified.
type State struct {
	Action    Action        `json:"action"`
	Location  Location      `json:"location"`
	Matches   []route.Match `json:"matches"`
	IsLoading bool          `json:"isLoading"`
	Pending   *Location     `json:"pending,omitempty"`
}

// Listener receives committed states.
type Listener func(State)

// Controller is the navigation state machine. It is safe for concurrent
// use.
type Controller struct {
	stack  Stack
	routes []*route.Route
	cache  *loader.Cache
	cfg    config
	m      *metrics

	// nav serializes stack changes with the start of their transition, so
	// generations follow stack order. It is never held while delivering.
	nav sync.Mutex

	mu sync.Mutex
	// moving is set while Go moves the stack; moved records a pop seen
	// meanwhile.
	moving      bool
	moved       bool
	state       State
	generation  uint64
	listener    Listener
	listenerID  uint64
	outbox      []State
	delivering  bool
	unsubscribe func()
	closed      bool
}

// New returns a controller over stack and routes. The current stack entry
// is resolved and its loaders are started, but not awaited: the initial
// state is settled with action Pop.
func New(stack Stack, routes []*route.Route, opts ...Option) *Controller {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Controller{
		stack:  stack,
		routes: routes,
		cfg:    cfg,
		m:      newMetrics(cfg.registerer, cfg.namespace),
	}

	cacheOpts := []loader.Option{
		loader.WithLogger(cfg.logger),
		loader.WithObserver(c.m),
	}
	if cfg.tracer != nil {
		cacheOpts = append(cacheOpts, loader.WithTracer(cfg.tracer))
	}
	c.cache = loader.New(cacheOpts...)

	loc := stack.Current()
	matches := c.resolve(loc.Pathname)
	c.cache.Run(context.Background(), matches)
	c.state = State{Action: Pop, Location: loc, Matches: matches}

	c.unsubscribe = stack.OnPop(c.handlePop)

	return c
}

// Routes returns the root routes.
func (c *Controller) Routes() []*route.Route {
	return c.routes
}

// Cache returns the loader cache.
func (c *Controller) Cache() *loader.Cache {
	return c.cache
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resolve resolves path against the controller routes without navigating.
func (c *Controller) Resolve(path string) []route.Match {
	return c.resolve(path)
}

// Data returns the loader result for m. ok is false when the route of m
// has no loader, the result is not cached or it is still pending.
func (c *Controller) Data(m route.Match) (v any, err error, ok bool) { //nolint:revive // (value, error, settled)
	if m.Config == nil || m.Config.Loader == nil {
		return nil, nil, false
	}
	e, found := c.cache.Lookup(m.Config.Loader, m.Params)
	if !found {
		return nil, nil, false
	}
	return e.Value()
}

// Listen registers fn as the listener. It returns a function removing the
// registration, or ErrListenerActive when a listener is already set.
func (c *Controller) Listen(fn Listener) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("history: nil listener")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener != nil {
		return nil, ErrListenerActive
	}

	c.listenerID++
	id := c.listenerID
	c.listener = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.listenerID == id {
				c.listener = nil
				c.outbox = nil
			}
		})
	}, nil
}

// Push pushes loc onto the stack and navigates to it.
func (c *Controller) Push(loc Location) {
	c.finish(c.navigate(Push, loc, c.stack.Push))
}

// Replace replaces the current stack entry with loc and navigates to it.
func (c *Controller) Replace(loc Location) {
	c.finish(c.navigate(Replace, loc, c.stack.Replace))
}

// Go moves through the stack by delta. The move is observed through the
// stack pop signal.
func (c *Controller) Go(delta int) {
	c.finish(c.move(delta))
}

// Close stops following the stack pop signal and drops the listener.
// Loaders already running are not stopped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.listener = nil
	c.outbox = nil
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handlePop follows a pop signal. A pop fired by Go on the calling
// goroutine is left to Go; any other pop starts its own transition.
func (c *Controller) handlePop() {
	c.mu.Lock()
	if c.moving {
		c.moved = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.finish(c.pop())
}

func (c *Controller) resolve(path string) []route.Match {
	return route.Resolve(path, c.routes, route.WithLogger(c.cfg.logger))
}

// step is a started transition. Its delivery and join run once the
// navigation lock is released, so listeners may navigate again.
type step struct {
	started bool
	gen     uint64
	next    State
	awaited []*future.Future
}

func (c *Controller) navigate(action Action, loc Location, apply func(Location)) step {
	c.nav.Lock()
	defer c.nav.Unlock()

	apply(loc)
	return c.begin(action, loc)
}

func (c *Controller) move(delta int) step {
	c.nav.Lock()
	defer c.nav.Unlock()

	if !c.observeMove(func() { c.stack.Go(delta) }) {
		return step{}
	}
	return c.begin(Pop, c.stack.Current())
}

// observeMove runs fn with pop signals recorded instead of followed and
// reports whether one fired.
func (c *Controller) observeMove(fn func()) (moved bool) {
	c.mu.Lock()
	c.moving, c.moved = true, false
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		moved = c.moved
		c.moving, c.moved = false, false
		c.mu.Unlock()
	}()

	fn()
	return false
}

func (c *Controller) pop() step {
	c.nav.Lock()
	defer c.nav.Unlock()

	return c.begin(Pop, c.stack.Current())
}

// begin moves the controller to loc. Resolution and the loader pass run
// under the lock, so the cache sees transitions one at a time.
func (c *Controller) begin(action Action, loc Location) step {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.cfg.logger.Debug("ignoring navigation on closed controller", "path", loc.Path())
		return step{}
	}

	c.generation++
	gen := c.generation

	matches := c.resolve(loc.Pathname)
	awaited := c.cache.Run(context.Background(), matches)

	c.m.transitions.WithLabelValues(action.String()).Inc()

	next := State{Action: action, Location: loc, Matches: matches}

	if len(awaited) == 0 {
		c.commitLocked(next)
		return step{started: true, gen: gen}
	}

	target := loc
	c.commitLocked(State{
		Action:    c.state.Action,
		Location:  c.state.Location,
		Matches:   c.state.Matches,
		IsLoading: true,
		Pending:   &target,
	})

	return step{started: true, gen: gen, next: next, awaited: awaited}
}

// finish delivers what begin committed and waits for the awaited loaders
// in the background.
func (c *Controller) finish(s step) {
	if !s.started {
		return
	}

	c.deliver()

	if len(s.awaited) == 0 {
		return
	}

	c.cfg.logger.Debug("awaiting loaders", "path", s.next.Location.Path(), "generation", s.gen, "count", len(s.awaited))

	go c.join(s.gen, s.next, s.awaited)
}

// join waits for the awaited loaders of generation gen and commits next if
// no newer transition started.
func (c *Controller) join(gen uint64, next State, awaited []*future.Future) {
	outcomes := future.Join(context.Background(), awaited...)
	for _, err := range future.Errors(outcomes) {
		c.cfg.logger.Warn("loader failed", "path", next.Location.Path(), "generation", gen, "error", err)
	}

	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		c.m.staleJoins.Inc()
		c.cfg.logger.Debug("dropping stale transition", "path", next.Location.Path(), "generation", gen)
		return
	}
	c.commitLocked(next)
	c.mu.Unlock()

	c.deliver()
}

// commitLocked swaps the state and queues it for the listener. c.mu must
// be held.
func (c *Controller) commitLocked(s State) {
	c.state = s
	c.m.setLoading(s.IsLoading)
	if c.listener != nil {
		c.outbox = append(c.outbox, s)
	}
}

// deliver drains the outbox. Only one goroutine delivers at a time; a
// commit made while another goroutine delivers, including one made by the
// listener itself, is picked up by that goroutine.
func (c *Controller) deliver() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true

	for len(c.outbox) > 0 {
		s := c.outbox[0]
		c.outbox = c.outbox[1:]
		fn := c.listener
		c.mu.Unlock()

		if fn != nil {
			c.notify(fn, s)
		}

		c.mu.Lock()
	}

	c.delivering = false
	c.mu.Unlock()
}

func (c *Controller) notify(fn Listener, s State) {
	defer func() {
		if err := recover(); err != nil {
			c.cfg.logger.Error("listener panic", "path", s.Location.Path(), "error", err)
		}
	}()
	fn(s)
}
