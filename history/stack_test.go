package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStack(t *testing.T) {
	t.Run("initial entry", func(t *testing.T) {
		s := NewMemoryStack("/f/1?q=1")

		cur := s.Current()
		assert.Equal(t, "/f/1", cur.Pathname)
		assert.Equal(t, "?q=1", cur.Search)
		assert.Equal(t, DefaultKey, cur.Key)
	})

	t.Run("push and replace", func(t *testing.T) {
		s := NewMemoryStack("/a")
		s.Push(Location{Pathname: "/b", Key: "b"})
		s.Replace(Location{Pathname: "/c", Key: "c"})

		entries, index := s.Entries()
		assert.Equal(t, 1, index)
		assert.Equal(t, []string{"/a", "/c"}, pathnames(entries))
	})

	t.Run("push drops forward entries", func(t *testing.T) {
		s := NewMemoryStack("/a")
		s.Push(Location{Pathname: "/b"})
		s.Push(Location{Pathname: "/c"})
		s.Go(-2)
		s.Push(Location{Pathname: "/d"})

		entries, index := s.Entries()
		assert.Equal(t, 1, index)
		assert.Equal(t, []string{"/a", "/d"}, pathnames(entries))
	})

	t.Run("go clamps and signals", func(t *testing.T) {
		s := NewMemoryStack("/a")
		s.Push(Location{Pathname: "/b"})
		s.Push(Location{Pathname: "/c"})

		var pops []string
		unsubscribe := s.OnPop(func() {
			pops = append(pops, s.Current().Pathname)
		})

		s.Go(-1)
		s.Go(-10)
		s.Go(-1)
		s.Go(10)
		s.Go(0)

		assert.Equal(t, []string{"/b", "/a", "/c"}, pops)

		unsubscribe()
		s.Go(-1)
		assert.Len(t, pops, 3)
		assert.Equal(t, "/b", s.Current().Pathname)
	})

	t.Run("callbacks run in registration order", func(t *testing.T) {
		s := NewMemoryStack("/a")
		s.Push(Location{Pathname: "/b"})

		var order []int
		s.OnPop(func() { order = append(order, 1) })
		s.OnPop(func() { order = append(order, 2) })

		s.Go(-1)
		assert.Equal(t, []int{1, 2}, order)
	})
}

func pathnames(locs []Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.Pathname
	}
	return out
}
