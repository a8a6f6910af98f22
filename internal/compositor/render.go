package compositor

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
)

// renderRect repaints r of the back buffer: wallpaper where exposed, then
// visible window content back to front, then overlays.
func (c *Compositor) renderRect(s *screenData, r region.Rect) {
	exposed := c.occ.wallpaper.Intersect(r)
	for _, wr := range exposed.Rects() {
		c.paintWallpaper(s, wr)
	}

	for _, wv := range c.occ.windows {
		vis := wv.visible.Intersect(r)
		for _, vr := range vis.Rects() {
			c.paintWindow(s.back, wv.window, vr)
		}
	}

	c.overlays.visit(r, func(o Overlay, clip region.Rect) {
		ir := clip.Image()
		draw.Draw(s.temp, ir, image.Transparent, image.Point{}, draw.Src)
		o.Render(s.temp, clip)
		draw.Draw(s.back, ir, s.temp, ir.Min, draw.Over)
	})
	c.stats.RenderedPixels += uint64(r.Area())
}

func (c *Compositor) paintWindow(dst *image.RGBA, w platform.Window, r region.Rect) {
	ir := r.Image()
	op := draw.Over
	face := c.theme.WindowFace
	if w.Opaque {
		op = draw.Src
	} else {
		face = translucent(face)
	}
	draw.Draw(dst, ir, image.NewUniform(face), image.Point{}, op)

	if w.Content == nil {
		return
	}
	cb := w.Content.Bounds()
	origin := image.Pt(w.Bounds.X, w.Bounds.Y)
	sp := cb.Min.Add(ir.Min.Sub(origin))
	draw.Draw(dst, ir, w.Content, sp, op)
}

func translucent(c color.RGBA) color.RGBA {
	return color.RGBA{R: c.R / 2, G: c.G / 2, B: c.B / 2, A: c.A / 2}
}

// addFlushClassified splits area into the flush sets: drag remnants are
// special, area under transparent windows or overlays is transparent, the
// rest is opaque.
func (c *Compositor) addFlushClassified(s *screenData, area region.Set) {
	special := area.Intersect(c.lastDndRect)
	rest := area.Clone()
	rest.SubtractSet(special)

	under := c.occ.transparent.Clone()
	under.AddSet(c.overlays.rects)
	transparent := rest.IntersectSet(under)
	rest.SubtractSet(transparent)

	if !rest.IsEmpty() {
		s.addFlush(flushOpaque, rest)
	}
	if !transparent.IsEmpty() {
		s.addFlush(flushTransparent, transparent)
	}
	if !special.IsEmpty() {
		s.addFlush(flushSpecial, special)
	}
}
