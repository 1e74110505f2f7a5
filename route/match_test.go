package route

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Params
		want bool
	}{
		{name: "both nil", want: true},
		{name: "nil and empty", a: nil, b: Params{}, want: true},
		{name: "same", a: Params{"id": "1"}, b: Params{"id": "1"}, want: true},
		{name: "different value", a: Params{"id": "1"}, b: Params{"id": "2"}},
		{name: "different keys", a: Params{"id": "1"}, b: Params{"slug": "1"}},
		{name: "subset", a: Params{"id": "1"}, b: Params{"id": "1", "slug": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestParamsClone(t *testing.T) {
	p := Params{"id": "1"}
	c := p.Clone()
	c["id"] = "2"

	assert.Equal(t, "1", p["id"])
	assert.NotNil(t, Params(nil).Clone())
}

func TestMatchBase(t *testing.T) {
	g := newGraph()

	matches := Resolve("/f/folder1/d/document1", g.routes())
	require.Len(t, matches, 2)

	assert.Equal(t, "", matches[0].Base())
	assert.Equal(t, "/f/folder1", matches[1].Base())
	assert.Equal(t, "document", matches[1].RouteName())
	assert.Equal(t, "", Match{}.RouteName())
}

func TestLeaf(t *testing.T) {
	_, ok := Leaf(nil)
	assert.False(t, ok)

	m, ok := Leaf([]Match{{Segment: "/a"}, {Segment: "/b"}})
	require.True(t, ok)
	assert.Equal(t, "/b", m.Segment)
}

func TestWalk(t *testing.T) {
	g := newGraph()
	matches := Resolve("/~/f/a/~/d/b", []*Route{g.panel()})

	t.Run("pre-order with ancestors", func(t *testing.T) {
		var visited []string
		var depths []int

		err := Walk(matches, func(m Match, ancestors []Match) error {
			visited = append(visited, m.Segment)
			depths = append(depths, len(ancestors))
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"/~/f/a", "/~", "/f/a", "/~/d/b", "/~", "/d/b"}, visited)
		assert.Equal(t, []int{0, 1, 1, 0, 1, 1}, depths)
	})

	t.Run("ancestors are the parent chain", func(t *testing.T) {
		err := Walk(matches, func(m Match, ancestors []Match) error {
			if m.Segment == "/d/b" {
				require.Len(t, ancestors, 1)
				assert.Equal(t, "/~/d/b", ancestors[0].Segment)
			}
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("skip children", func(t *testing.T) {
		var visited []string

		err := Walk(matches, func(m Match, _ []Match) error {
			visited = append(visited, m.Segment)
			if m.Index == 0 && len(m.Children) > 0 {
				return SkipChildren
			}
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"/~/f/a", "/~/d/b", "/~", "/d/b"}, visited)
	})

	t.Run("error stops walk", func(t *testing.T) {
		boom := errors.New("boom")
		count := 0

		err := Walk(matches, func(Match, []Match) error {
			count++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, count)
	})
}

func TestHasNotFound(t *testing.T) {
	g := newGraph()
	panel := g.panel()

	assert.False(t, HasNotFound(Resolve("/~/f/a", []*Route{panel})))
	assert.True(t, HasNotFound(Resolve("/~/x", []*Route{panel})))
	assert.True(t, HasNotFound(Resolve("/x", nil)))
	assert.False(t, HasNotFound(nil))
}
