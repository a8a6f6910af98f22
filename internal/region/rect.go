// Package region implements integer rectangle arithmetic and the disjoint
// rectangle set used to describe damage and occlusion.
package region

import (
	"fmt"
	"image"
)

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// FromImage converts an image.Rectangle to a Rect.
func FromImage(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Image returns r as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Area returns the number of pixels covered by r.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Intersects reports whether r and o share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.Right() &&
		r.Right() > o.X &&
		r.Y < o.Bottom() &&
		r.Bottom() > o.Y
}

// Intersect returns the overlap of r and o, or the zero Rect.
func (r Rect) Intersect(o Rect) Rect {
	if !r.Intersects(o) {
		return Rect{}
	}
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.Right(), o.Right())
	y1 := min(r.Bottom(), o.Bottom())
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Contains reports whether the pixel (x, y) lies in r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// ContainsRect reports whether o lies entirely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	if o.Empty() {
		return true
	}
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Inflate grows r by dx on the left and right and dy on the top and bottom.
func (r Rect) Inflate(dx, dy int) Rect {
	return Rect{X: r.X - dx, Y: r.Y - dy, Width: r.Width + 2*dx, Height: r.Height + 2*dy}
}

// Shatter returns the parts of r not covered by hole. The pieces are
// disjoint and at most four: a full-width band above and below the hole and
// the left and right remainders between them.
func (r Rect) Shatter(hole Rect) []Rect {
	if !r.Intersects(hole) {
		if r.Empty() {
			return nil
		}
		return []Rect{r}
	}

	pieces := make([]Rect, 0, 4)
	if hole.Y > r.Y {
		pieces = append(pieces, Rect{X: r.X, Y: r.Y, Width: r.Width, Height: hole.Y - r.Y})
	}
	if hole.Bottom() < r.Bottom() {
		pieces = append(pieces, Rect{X: r.X, Y: hole.Bottom(), Width: r.Width, Height: r.Bottom() - hole.Bottom()})
	}

	midTop := max(r.Y, hole.Y)
	midBottom := min(r.Bottom(), hole.Bottom())
	if hole.X > r.X {
		pieces = append(pieces, Rect{X: r.X, Y: midTop, Width: hole.X - r.X, Height: midBottom - midTop})
	}
	if hole.Right() < r.Right() {
		pieces = append(pieces, Rect{X: hole.Right(), Y: midTop, Width: r.Right() - hole.Right(), Height: midBottom - midTop})
	}
	return pieces
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.X, r.Y, r.Width, r.Height)
}

// Bounds returns the smallest rectangle containing every rect, and false
// when rects holds no non-empty rectangle.
func Bounds(rects []Rect) (Rect, bool) {
	found := false
	var minX, minY, maxX, maxY int
	for _, rect := range rects {
		if rect.Empty() {
			continue
		}
		if !found {
			minX, minY = rect.X, rect.Y
			maxX, maxY = rect.Right(), rect.Bottom()
			found = true
			continue
		}
		minX = min(minX, rect.X)
		minY = min(minY, rect.Y)
		maxX = max(maxX, rect.Right())
		maxY = max(maxY, rect.Bottom())
	}
	if !found {
		return Rect{}, false
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// PlaceAvoiding picks an origin for a width×height box inside bounds, inset
// by margin. The corners are tried clockwise from the top right; the first
// one that does not cover any avoid rect wins. The result is clamped so the
// box stays inside bounds whenever it fits.
func PlaceAvoiding(bounds Rect, avoid []Rect, width, height, margin int) Rect {
	width = max(width, 1)
	height = max(height, 1)

	left := bounds.X + margin
	right := max(bounds.Right()-margin-width, left)
	top := bounds.Y + margin
	bottom := max(bounds.Bottom()-margin-height, top)

	candidates := []Rect{
		{X: right, Y: top, Width: width, Height: height},
		{X: left, Y: top, Width: width, Height: height},
		{X: right, Y: bottom, Width: width, Height: height},
		{X: left, Y: bottom, Width: width, Height: height},
	}

	chosen := candidates[0]
	for _, candidate := range candidates {
		covers := false
		for _, a := range avoid {
			if candidate.Intersects(a) {
				covers = true
				break
			}
		}
		if !covers {
			chosen = candidate
			break
		}
	}
	chosen.X, chosen.Y = clampOrigin(chosen.X, chosen.Y, bounds, width, height, margin)
	return chosen
}

func clampOrigin(x, y int, bounds Rect, width, height, margin int) (int, int) {
	left := bounds.X + margin
	right := bounds.Right() - margin - width
	if right < left {
		left = bounds.X
		right = bounds.Right() - width
	}
	right = max(right, left)

	top := bounds.Y + margin
	bottom := bounds.Bottom() - margin - height
	if bottom < top {
		top = bounds.Y
		bottom = bounds.Bottom() - height
	}
	bottom = max(bottom, top)

	return min(max(x, left), right), min(max(y, top), bottom)
}
