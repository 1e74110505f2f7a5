package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/waypoint/future"
	"github.com/vitalvas/waypoint/route"
)

// gate hands out pending futures that tests settle by id.
type gate struct {
	mu      sync.Mutex
	futures map[string]*future.Future
}

func newGate() *gate {
	return &gate{futures: map[string]*future.Future{}}
}

func (g *gate) loader() *route.Loader {
	return route.NewLoader("gate", func(_ context.Context, p route.Params) *future.Future {
		g.mu.Lock()
		defer g.mu.Unlock()
		f := future.New()
		g.futures[p["id"]] = f
		return f
	})
}

func (g *gate) get(t *testing.T, id string) *future.Future {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.futures[id]
	require.True(t, ok, "loader for %q was not invoked", id)
	return f
}

// testRoutes returns folder (sync loader), slow (awaited gate loader) and
// document (no loader) routes that may follow each other.
func testRoutes(g *gate) []*route.Route {
	var folder, slow, document *route.Route
	next := func() []*route.Route { return []*route.Route{folder, slow, document} }

	folder = &route.Route{
		Name:    "folder",
		Matcher: route.Pattern("/f/:id"),
		Loader: route.SyncLoader("folder", func(_ context.Context, p route.Params) (any, error) {
			return "folder " + p["id"], nil
		}),
		Next: next,
	}
	slow = &route.Route{
		Name:    "slow",
		Matcher: route.Pattern("/s/:id"),
		Loader:  g.loader(),
		Await:   true,
		Next:    next,
	}
	document = &route.Route{Name: "document", Matcher: route.Pattern("/d/:id"), Next: next}

	return []*route.Route{folder, slow, document}
}

// recorder collects the states delivered to a listener.
type recorder struct {
	ch chan State
}

func listen(t *testing.T, c *Controller) *recorder {
	t.Helper()
	r := &recorder{ch: make(chan State, 64)}
	unlisten, err := c.Listen(func(s State) { r.ch <- s })
	require.NoError(t, err)
	t.Cleanup(unlisten)
	return r
}

func (r *recorder) next(t *testing.T) State {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
		return State{}
	}
}

func (r *recorder) empty(t *testing.T) {
	t.Helper()
	select {
	case s := <-r.ch:
		t.Fatalf("unexpected state for %q", s.Location.Path())
	default:
	}
}

func TestControllerInitialState(t *testing.T) {
	g := newGate()
	c := New(NewMemoryStack("/f/1/s/9"), testRoutes(g))
	t.Cleanup(c.Close)

	s := c.Snapshot()
	assert.Equal(t, Pop, s.Action)
	assert.Equal(t, "/f/1/s/9", s.Location.Pathname)
	assert.Equal(t, DefaultKey, s.Location.Key)
	assert.False(t, s.IsLoading)
	assert.Nil(t, s.Pending)
	require.Len(t, s.Matches, 2)

	// the awaited loader was started but not waited for
	assert.False(t, g.get(t, "9").Settled())

	v, err, ok := c.Data(s.Matches[0])
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "folder 1", v)

	_, _, ok = c.Data(s.Matches[1])
	assert.False(t, ok, "pending")
}

func TestControllerSyncTransition(t *testing.T) {
	c := New(NewMemoryStack("/f/1"), testRoutes(newGate()))
	t.Cleanup(c.Close)
	rec := listen(t, c)

	c.Push(Location{Pathname: "/f/2/d/3", Key: "k1"})

	s := rec.next(t)
	assert.Equal(t, Push, s.Action)
	assert.Equal(t, "/f/2/d/3", s.Location.Pathname)
	assert.Equal(t, "k1", s.Location.Key)
	assert.False(t, s.IsLoading)
	require.Len(t, s.Matches, 2)
	assert.Equal(t, route.Params{"id": "2"}, s.Matches[0].Params)

	assert.Equal(t, s, c.Snapshot())
	rec.empty(t)
}

func TestControllerAwaitedTransition(t *testing.T) {
	g := newGate()
	c := New(NewMemoryStack("/f/1"), testRoutes(g))
	t.Cleanup(c.Close)
	rec := listen(t, c)

	target := Location{Pathname: "/f/1/s/2", Key: "k1"}
	c.Push(target)

	loading := rec.next(t)
	assert.True(t, loading.IsLoading)
	require.NotNil(t, loading.Pending)
	assert.Equal(t, target, *loading.Pending)
	assert.Equal(t, Pop, loading.Action)
	assert.Equal(t, "/f/1", loading.Location.Pathname)
	require.Len(t, loading.Matches, 1)

	assert.True(t, c.Snapshot().IsLoading)

	g.get(t, "2").Resolve("slow 2")

	settled := rec.next(t)
	assert.False(t, settled.IsLoading)
	assert.Nil(t, settled.Pending)
	assert.Equal(t, Push, settled.Action)
	assert.Equal(t, target, settled.Location)
	require.Len(t, settled.Matches, 2)

	v, err, ok := c.Data(settled.Matches[1])
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "slow 2", v)

	rec.empty(t)
}

func TestControllerStaleJoinDropped(t *testing.T) {
	g := newGate()
	c := New(NewMemoryStack("/f/1"), testRoutes(g))
	t.Cleanup(c.Close)
	rec := listen(t, c)

	c.Push(Location{Pathname: "/s/1", Key: "a"})
	assert.True(t, rec.next(t).IsLoading)

	c.Push(Location{Pathname: "/f/2", Key: "b"})
	b := rec.next(t)
	assert.False(t, b.IsLoading)
	assert.Equal(t, "/f/2", b.Location.Pathname)

	g.get(t, "1").Resolve("late")

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(c.m.staleJoins) == 1
	}, time.Second, time.Millisecond)

	rec.empty(t)
	assert.Equal(t, b, c.Snapshot())
}

func TestControllerLoaderFailureSettles(t *testing.T) {
	g := newGate()
	c := New(NewMemoryStack("/f/1"), testRoutes(g))
	t.Cleanup(c.Close)
	rec := listen(t, c)

	c.Push(Location{Pathname: "/s/3"})
	assert.True(t, rec.next(t).IsLoading)

	boom := errors.New("boom")
	g.get(t, "3").Reject(boom)

	settled := rec.next(t)
	assert.False(t, settled.IsLoading)
	assert.Equal(t, "/s/3", settled.Location.Pathname)

	_, err, ok := c.Data(settled.Matches[0])
	require.True(t, ok)
	assert.ErrorIs(t, err, boom)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(c.m.loaderErrors.WithLabelValues("gate")) == 1
	}, time.Second, time.Millisecond)
}

func TestControllerListenerSlot(t *testing.T) {
	c := New(NewMemoryStack("/f/1"), testRoutes(newGate()))
	t.Cleanup(c.Close)

	unlisten, err := c.Listen(func(State) {})
	require.NoError(t, err)

	_, err = c.Listen(func(State) {})
	assert.ErrorIs(t, err, ErrListenerActive)

	unlisten()
	unlisten()

	again, err := c.Listen(func(State) {})
	require.NoError(t, err)

	unlisten()
	_, err = c.Listen(func(State) {})
	assert.ErrorIs(t, err, ErrListenerActive, "a stale unlisten does not remove the new listener")
	again()

	_, err = c.Listen(nil)
	assert.Error(t, err)
}

func TestControllerReentrantNavigation(t *testing.T) {
	c := New(NewMemoryStack("/f/1"), testRoutes(newGate()))
	t.Cleanup(c.Close)

	var (
		mu       sync.Mutex
		received []string
	)
	done := make(chan struct{})

	unlisten, err := c.Listen(func(s State) {
		mu.Lock()
		received = append(received, s.Location.Pathname)
		n := len(received)
		mu.Unlock()

		switch n {
		case 1:
			c.Push(Location{Pathname: "/f/3"})
			mu.Lock()
			assert.Len(t, received, 1, "nested commit is delivered after this call returns")
			mu.Unlock()
		case 2:
			close(done)
		}
	})
	require.NoError(t, err)
	t.Cleanup(unlisten)

	c.Push(Location{Pathname: "/f/2"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested navigation was not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/f/2", "/f/3"}, received)
}

func TestControllerListenerPanicRecovered(t *testing.T) {
	c := New(NewMemoryStack("/f/1"), testRoutes(newGate()))
	t.Cleanup(c.Close)

	calls := 0
	unlisten, err := c.Listen(func(State) {
		calls++
		panic("boom")
	})
	require.NoError(t, err)
	t.Cleanup(unlisten)

	c.Push(Location{Pathname: "/f/2"})
	c.Push(Location{Pathname: "/f/3"})

	assert.Equal(t, 2, calls)
	assert.Equal(t, "/f/3", c.Snapshot().Location.Pathname)
}

func TestControllerNotificationOrder(t *testing.T) {
	c := New(NewMemoryStack("/f/0"), testRoutes(newGate()))
	t.Cleanup(c.Close)

	var (
		mu   sync.Mutex
		last State
		n    int
	)
	unlisten, err := c.Listen(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		last = s
		n++
	})
	require.NoError(t, err)
	t.Cleanup(unlisten)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Replace(Location{Pathname: "/f/" + string(rune('a'+i))})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, n)
	assert.Equal(t, c.Snapshot(), last)
}

// spyStack records the controller snapshot seen when the stack is called.
type spyStack struct {
	*MemoryStack
	ctrl *Controller
	seen []string
}

func (s *spyStack) Push(loc Location) {
	s.seen = append(s.seen, s.ctrl.Snapshot().Location.Pathname)
	s.MemoryStack.Push(loc)
}

func (s *spyStack) Replace(loc Location) {
	s.seen = append(s.seen, s.ctrl.Snapshot().Location.Pathname)
	s.MemoryStack.Replace(loc)
}

func TestControllerCallsStackBeforeSwap(t *testing.T) {
	stack := &spyStack{MemoryStack: NewMemoryStack("/f/1")}
	c := New(stack, testRoutes(newGate()))
	t.Cleanup(c.Close)
	stack.ctrl = c

	c.Push(Location{Pathname: "/f/2"})
	c.Replace(Location{Pathname: "/f/3"})

	assert.Equal(t, []string{"/f/1", "/f/2"}, stack.seen)

	entries, index := stack.Entries()
	assert.Equal(t, 1, index)
	assert.Equal(t, []string{"/f/1", "/f/3"}, pathnames(entries))
}

func TestControllerPop(t *testing.T) {
	stack := NewMemoryStack("/f/1")
	c := New(stack, testRoutes(newGate()))
	t.Cleanup(c.Close)
	rec := listen(t, c)

	c.Push(Location{Pathname: "/f/2"})
	rec.next(t)

	c.Go(-1)

	s := rec.next(t)
	assert.Equal(t, Pop, s.Action)
	assert.Equal(t, "/f/1", s.Location.Pathname)
	assert.Equal(t, DefaultKey, s.Location.Key)

	c.Go(-1)
	rec.empty(t)
}

func TestControllerClose(t *testing.T) {
	stack := NewMemoryStack("/f/1")
	c := New(stack, testRoutes(newGate()))
	rec := listen(t, c)

	c.Push(Location{Pathname: "/f/2"})
	rec.next(t)

	c.Close()
	c.Close()

	c.Go(-1)
	assert.Equal(t, "/f/2", c.Snapshot().Location.Pathname)

	c.Push(Location{Pathname: "/f/3"})
	assert.Equal(t, "/f/2", c.Snapshot().Location.Pathname)
	rec.empty(t)
}

func TestControllerNavigate(t *testing.T) {
	keys := 0
	keyFunc := func() string {
		keys++
		return "key" + string(rune('0'+keys))
	}

	stack := NewMemoryStack("/f/1")
	c := New(stack, testRoutes(newGate()), WithKeyFunc(keyFunc))
	t.Cleanup(c.Close)

	t.Run("relative push", func(t *testing.T) {
		loc := c.Navigate("d/2?q=1", WithState("payload"))
		assert.Equal(t, "/f/1/d/2", loc.Pathname)
		assert.Equal(t, "?q=1", loc.Search)
		assert.Equal(t, "key1", loc.Key)
		assert.Equal(t, "payload", loc.State)

		s := c.Snapshot()
		assert.Equal(t, Push, s.Action)
		assert.Equal(t, loc, s.Location)
		assert.Equal(t, loc, stack.Current())
	})

	t.Run("absolute replace", func(t *testing.T) {
		loc := c.Navigate("/f/9", WithReplace())
		assert.Equal(t, "key2", loc.Key)

		s := c.Snapshot()
		assert.Equal(t, Replace, s.Action)
		assert.Equal(t, "/f/9", s.Location.Pathname)

		_, index := stack.Entries()
		assert.Equal(t, 1, index)
	})

	t.Run("without navigate", func(t *testing.T) {
		loc := c.Navigate("../x", WithoutNavigate())
		assert.Equal(t, "/f/x", loc.Pathname)
		assert.Equal(t, "/f/9", c.Snapshot().Location.Pathname)
	})

	t.Run("within a nested match", func(t *testing.T) {
		c.Navigate("/f/1/d/2")
		matches := c.Snapshot().Matches
		require.Len(t, matches, 2)

		loc := c.NavigateWithin(matches[1], "/d/5")
		assert.Equal(t, "/f/1/d/5", loc.Pathname)
	})
}

func TestControllerDefaultKeys(t *testing.T) {
	c := New(NewMemoryStack("/f/1"), testRoutes(newGate()))
	t.Cleanup(c.Close)

	a := c.Navigate("/f/2")
	b := c.Navigate("/f/3")

	assert.Len(t, a.Key, 36)
	assert.NotEqual(t, a.Key, b.Key)
}

func TestControllerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(NewMemoryStack("/f/1"), testRoutes(newGate()), WithRegisterer(reg), WithNamespace("test"))
	t.Cleanup(c.Close)

	c.Push(Location{Pathname: "/f/1/f/2"})
	c.Replace(Location{Pathname: "/f/1/f/2/d/3"})

	assert.Equal(t, float64(1), testutil.ToFloat64(c.m.transitions.WithLabelValues("PUSH")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.m.transitions.WithLabelValues("REPLACE")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.m.loaderInvocations.WithLabelValues("folder")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.m.loaderReuses.WithLabelValues("folder")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.m.loading))

	count, err := testutil.GatherAndCount(reg, "test_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestControllerLoaderPanic(t *testing.T) {
	broken := &route.Route{
		Name:    "broken",
		Matcher: route.Pattern("/p/:id"),
		Loader: route.SyncLoader("broken", func(context.Context, route.Params) (any, error) {
			panic("no data")
		}),
	}
	routes := append(testRoutes(newGate()), broken)

	c := New(NewMemoryStack("/f/1"), routes)
	t.Cleanup(c.Close)
	rec := listen(t, c)

	require.NotPanics(t, func() { c.Push(Location{Pathname: "/p/1"}) })

	s := rec.next(t)
	assert.Equal(t, "/p/1", s.Location.Pathname)

	done := make(chan State, 1)
	go func() { done <- c.Snapshot() }()

	select {
	case got := <-done:
		assert.Equal(t, s, got)
	case <-time.After(time.Second):
		t.Fatal("controller stayed locked after a loader panic")
	}

	_, err, ok := c.Data(s.Matches[0])
	require.True(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	c.Push(Location{Pathname: "/f/2"})
	assert.Equal(t, "/f/2", rec.next(t).Location.Pathname)
}

func TestControllerConcurrentNavigation(t *testing.T) {
	stack := NewMemoryStack("/f/0")
	c := New(stack, testRoutes(newGate()))
	t.Cleanup(c.Close)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var opts []NavigateOption
			if i%2 == 1 {
				opts = append(opts, WithReplace())
			}
			c.Navigate(fmt.Sprintf("/f/%d", i), opts...)

			if i%8 == 0 {
				c.Go(-1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.False(t, s.IsLoading)
	assert.Equal(t, stack.Current(), s.Location)
	require.Len(t, s.Matches, 1)
	assert.Equal(t, s.Location.Pathname, s.Matches[0].Accumulated)
}

func TestControllerExternalPop(t *testing.T) {
	stack := NewMemoryStack("/f/1")
	c := New(stack, testRoutes(newGate()))
	t.Cleanup(c.Close)
	rec := listen(t, c)

	c.Push(Location{Pathname: "/f/2"})
	rec.next(t)

	stack.Go(-1)

	s := rec.next(t)
	assert.Equal(t, Pop, s.Action)
	assert.Equal(t, "/f/1", s.Location.Pathname)
	assert.Equal(t, stack.Current(), c.Snapshot().Location)
	rec.empty(t)
}
