package region

import (
	"fmt"
	"slices"
)

// Set is a union of rectangles kept pairwise disjoint. Every mutating
// operation renormalizes the set: new area is shattered around existing
// rects and neighbours with identical spans are coalesced, so repeated
// invalidation of the same area never grows the set.
//
// The zero value is an empty set ready for use. Mutations never write into
// a backing array shared with an earlier copy of the set.
type Set struct {
	rects []Rect
}

// NewSet returns a set covering the union of rects.
func NewSet(rects ...Rect) Set {
	var s Set
	for _, r := range rects {
		s.Add(r)
	}
	return s
}

// Rects returns a copy of the rectangles in the set, ordered top to bottom
// and left to right.
func (s Set) Rects() []Rect {
	return slices.Clone(s.rects)
}

// Len returns the number of rectangles in the set.
func (s Set) Len() int { return len(s.rects) }

// IsEmpty reports whether the set covers no pixels.
func (s Set) IsEmpty() bool { return len(s.rects) == 0 }

// Clear empties the set.
func (s *Set) Clear() { s.rects = nil }

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	return Set{rects: slices.Clone(s.rects)}
}

// Area returns the number of pixels covered.
func (s Set) Area() int {
	total := 0
	for _, r := range s.rects {
		total += r.Area()
	}
	return total
}

// Bounds returns the bounding rectangle of the set.
func (s Set) Bounds() Rect {
	b, _ := Bounds(s.rects)
	return b
}

// Add merges r into the set.
func (s *Set) Add(r Rect) {
	if r.Empty() {
		return
	}
	pieces := []Rect{r}
	for _, existing := range s.rects {
		if !existing.Intersects(r) {
			continue
		}
		var next []Rect
		for _, p := range pieces {
			next = append(next, p.Shatter(existing)...)
		}
		pieces = next
		if len(pieces) == 0 {
			return
		}
	}
	s.rects = append(slices.Clip(s.rects), pieces...)
	s.normalize()
}

// AddSet merges every rect of o into the set.
func (s *Set) AddSet(o Set) {
	for _, r := range o.rects {
		s.Add(r)
	}
}

// Subtract removes r from the set.
func (s *Set) Subtract(r Rect) {
	if r.Empty() || len(s.rects) == 0 {
		return
	}
	changed := false
	out := make([]Rect, 0, len(s.rects))
	for _, existing := range s.rects {
		if !existing.Intersects(r) {
			out = append(out, existing)
			continue
		}
		changed = true
		out = append(out, existing.Shatter(r)...)
	}
	if !changed {
		return
	}
	s.rects = out
	s.normalize()
}

// SubtractSet removes every rect of o from the set.
func (s *Set) SubtractSet(o Set) {
	for _, r := range o.rects {
		s.Subtract(r)
	}
}

// Intersect returns the part of the set that lies inside r.
func (s Set) Intersect(r Rect) Set {
	var out Set
	for _, existing := range s.rects {
		if clipped := existing.Intersect(r); !clipped.Empty() {
			out.rects = append(out.rects, clipped)
		}
	}
	out.normalize()
	return out
}

// IntersectSet returns the area covered by both s and o.
func (s Set) IntersectSet(o Set) Set {
	var out Set
	for _, a := range s.rects {
		for _, b := range o.rects {
			if clipped := a.Intersect(b); !clipped.Empty() {
				out.rects = append(out.rects, clipped)
			}
		}
	}
	out.normalize()
	return out
}

// Intersects reports whether any pixel of r is in the set.
func (s Set) Intersects(r Rect) bool {
	for _, existing := range s.rects {
		if existing.Intersects(r) {
			return true
		}
	}
	return false
}

// Contains reports whether the pixel (x, y) is in the set.
func (s Set) Contains(x, y int) bool {
	for _, existing := range s.rects {
		if existing.Contains(x, y) {
			return true
		}
	}
	return false
}

// ContainsRect reports whether r is fully covered by the set.
func (s Set) ContainsRect(r Rect) bool {
	if r.Empty() {
		return true
	}
	rest := NewSet(r)
	rest.SubtractSet(s)
	return rest.IsEmpty()
}

// Translate returns the set moved by (dx, dy).
func (s Set) Translate(dx, dy int) Set {
	out := Set{rects: make([]Rect, len(s.rects))}
	for i, r := range s.rects {
		out.rects[i] = r.Translate(dx, dy)
	}
	return out
}

// Equal reports whether s and o cover exactly the same pixels.
func (s Set) Equal(o Set) bool {
	if s.Area() != o.Area() {
		return false
	}
	return s.IntersectSet(o).Area() == s.Area()
}

// Check verifies the disjointness invariant.
func (s Set) Check() error {
	for i, a := range s.rects {
		if a.Empty() {
			return fmt.Errorf("region: empty rect %v at index %d", a, i)
		}
		for j := i + 1; j < len(s.rects); j++ {
			if b := s.rects[j]; a.Intersects(b) {
				return fmt.Errorf("region: rects %v and %v overlap", a, b)
			}
		}
	}
	return nil
}

func (s Set) String() string {
	return fmt.Sprint(s.rects)
}

// normalize coalesces neighbours sharing a full edge and sorts the rects.
// Merging two disjoint, edge-adjacent rects yields exactly their union, so
// disjointness is preserved.
func (s *Set) normalize() {
	for merged := true; merged; {
		merged = false
		for i := 0; i < len(s.rects) && !merged; i++ {
			for j := i + 1; j < len(s.rects); j++ {
				if m, ok := coalesce(s.rects[i], s.rects[j]); ok {
					s.rects[i] = m
					s.rects = slices.Delete(s.rects, j, j+1)
					merged = true
					break
				}
			}
		}
	}
	slices.SortFunc(s.rects, func(a, b Rect) int {
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})
}

func coalesce(a, b Rect) (Rect, bool) {
	if a.Y == b.Y && a.Height == b.Height {
		if a.Right() == b.X {
			return Rect{X: a.X, Y: a.Y, Width: a.Width + b.Width, Height: a.Height}, true
		}
		if b.Right() == a.X {
			return Rect{X: b.X, Y: a.Y, Width: a.Width + b.Width, Height: a.Height}, true
		}
	}
	if a.X == b.X && a.Width == b.Width {
		if a.Bottom() == b.Y {
			return Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height + b.Height}, true
		}
		if b.Bottom() == a.Y {
			return Rect{X: a.X, Y: b.Y, Width: a.Width, Height: a.Height + b.Height}, true
		}
	}
	return Rect{}, false
}
