package region

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// coverage paints rects onto a w×h grid and returns the covered pixels.
func coverage(w, h int, rects []Rect) map[[2]int]bool {
	bounds := Rect{Width: w, Height: h}
	out := make(map[[2]int]bool)
	for _, r := range rects {
		r = r.Intersect(bounds)
		for y := r.Y; y < r.Bottom(); y++ {
			for x := r.X; x < r.Right(); x++ {
				out[[2]int{x, y}] = true
			}
		}
	}
	return out
}

func TestShatterCoversExactlyTheDifference(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	hole := Rect{X: 3, Y: 4, Width: 2, Height: 2}

	pieces := r.Shatter(hole)
	require.Len(t, pieces, 4)

	set := Set{rects: pieces}
	require.NoError(t, set.Check())
	assert.Equal(t, 100-4, set.Area())
	assert.False(t, set.Contains(3, 4))
	assert.True(t, set.Contains(0, 0))
}

func TestShatterWithoutOverlapReturnsOriginal(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	pieces := r.Shatter(Rect{X: 20, Y: 20, Width: 5, Height: 5})
	assert.Equal(t, []Rect{r}, pieces)
}

func TestAddCoalescesRepeatedAndAdjacentRects(t *testing.T) {
	var s Set
	for i := 0; i < 50; i++ {
		s.Add(Rect{X: 10, Y: 10, Width: 20, Height: 20})
	}
	assert.Equal(t, 1, s.Len())

	s.Add(Rect{X: 30, Y: 10, Width: 5, Height: 20})
	assert.Equal(t, []Rect{{X: 10, Y: 10, Width: 25, Height: 20}}, s.Rects())

	s.Add(Rect{X: 10, Y: 30, Width: 25, Height: 5})
	assert.Equal(t, []Rect{{X: 10, Y: 10, Width: 25, Height: 25}}, s.Rects())
}

func TestSubtractAndIntersect(t *testing.T) {
	s := NewSet(Rect{X: 0, Y: 0, Width: 100, Height: 100})
	s.Subtract(Rect{X: 25, Y: 25, Width: 50, Height: 50})
	require.NoError(t, s.Check())
	assert.Equal(t, 100*100-50*50, s.Area())
	assert.False(t, s.Intersects(Rect{X: 30, Y: 30, Width: 10, Height: 10}))

	clipped := s.Intersect(Rect{X: 0, Y: 0, Width: 30, Height: 30})
	require.NoError(t, clipped.Check())
	assert.Equal(t, 30*30-5*5, clipped.Area())
}

func TestContainsRect(t *testing.T) {
	s := NewSet(
		Rect{X: 0, Y: 0, Width: 10, Height: 10},
		Rect{X: 10, Y: 0, Width: 10, Height: 5},
	)
	assert.True(t, s.ContainsRect(Rect{X: 5, Y: 0, Width: 10, Height: 5}))
	assert.False(t, s.ContainsRect(Rect{X: 5, Y: 0, Width: 10, Height: 6}))
}

func TestCopiesDoNotShareMutations(t *testing.T) {
	s := NewSet(Rect{X: 0, Y: 0, Width: 10, Height: 10})
	snapshot := s
	s.Add(Rect{X: 50, Y: 50, Width: 10, Height: 10})
	s.Subtract(Rect{X: 0, Y: 0, Width: 5, Height: 5})

	assert.Equal(t, 100, snapshot.Area())
	assert.Equal(t, []Rect{{X: 0, Y: 0, Width: 10, Height: 10}}, snapshot.Rects())
}

func TestRandomInvalidationStaysDisjointAndExact(t *testing.T) {
	const w, h = 64, 48
	screen := Rect{Width: w, Height: h}
	rng := rand.New(rand.NewPCG(7, 11))

	for round := 0; round < 40; round++ {
		var s Set
		var added []Rect
		for i := 0; i < 25; i++ {
			r := Rect{
				X:      rng.IntN(w+20) - 10,
				Y:      rng.IntN(h+20) - 10,
				Width:  rng.IntN(30),
				Height: rng.IntN(30),
			}
			clipped := r.Intersect(screen)
			s.Add(clipped)
			added = append(added, r)
		}

		require.NoError(t, s.Check(), "round %d", round)
		want := coverage(w, h, added)
		got := coverage(w, h, s.Rects())
		require.Equal(t, len(want), len(got), "round %d", round)
		require.Equal(t, len(want), s.Area(), "round %d", round)
		for p := range want {
			require.True(t, got[p], "round %d missing pixel %v", round, p)
		}
	}
}

func TestRandomSubtractMatchesPixelModel(t *testing.T) {
	const w, h = 40, 40
	rng := rand.New(rand.NewPCG(3, 5))

	s := NewSet(Rect{Width: w, Height: h})
	model := coverage(w, h, []Rect{{Width: w, Height: h}})
	for i := 0; i < 30; i++ {
		hole := Rect{X: rng.IntN(w), Y: rng.IntN(h), Width: rng.IntN(12) + 1, Height: rng.IntN(12) + 1}
		s.Subtract(hole)
		for p := range coverage(w, h, []Rect{hole}) {
			delete(model, p)
		}
		require.NoError(t, s.Check())
	}
	assert.Equal(t, len(model), s.Area())
	for p := range model {
		assert.True(t, s.Contains(p[0], p[1]))
	}
}

func TestEqual(t *testing.T) {
	a := NewSet(Rect{Width: 10, Height: 10})
	b := NewSet(Rect{Width: 5, Height: 10}, Rect{X: 5, Width: 5, Height: 10})
	assert.True(t, a.Equal(b))
	b.Subtract(Rect{Width: 1, Height: 1})
	assert.False(t, a.Equal(b))
}

func TestQueriesOnReturnedSets(t *testing.T) {
	a := NewSet(Rect{Width: 10, Height: 10})
	b := NewSet(Rect{X: 5, Y: 5, Width: 10, Height: 10})

	assert.Equal(t, 25, a.IntersectSet(b).Area())
	assert.True(t, a.Intersect(Rect{Width: 4, Height: 4}).ContainsRect(Rect{X: 1, Y: 1, Width: 2, Height: 2}))
	assert.True(t, a.Translate(5, 5).Equal(NewSet(Rect{X: 5, Y: 5, Width: 10, Height: 10})))
	require.NoError(t, a.IntersectSet(b).Check())
	assert.Equal(t, "[[5,5 5x5]]", a.IntersectSet(b).String())
}

func TestPlaceAvoidingPicksFreeCorner(t *testing.T) {
	bounds := Rect{X: 0, Y: 0, Width: 800, Height: 600}
	avoid := []Rect{{X: 568, Y: 12, Width: 220, Height: 80}}

	got := PlaceAvoiding(bounds, avoid, 220, 80, 12)
	assert.False(t, got.Intersects(avoid[0]), "placed over avoid rect: %v", got)
	assert.True(t, bounds.ContainsRect(got), "escaped bounds: %v", got)
}

func TestPlaceAvoidingClampsOversizedBox(t *testing.T) {
	bounds := Rect{X: 100, Y: 200, Width: 140, Height: 90}
	got := PlaceAvoiding(bounds, nil, 260, 160, 12)
	assert.Equal(t, bounds.X, got.X)
	assert.Equal(t, bounds.Y, got.Y)
}
