package compositor

import (
	"image"
	"image/draw"

	"github.com/1broseidon/tilecomp/internal/region"
)

// FrontBitmapForScreenshot returns a copy of what the screen shows,
// including the pointer sprite. The image bounds are the screen bounds in
// desktop coordinates.
func (c *Compositor) FrontBitmapForScreenshot(token Capability, screenID int) (*image.RGBA, error) {
	if err := token.require(PermScreenshot); err != nil {
		return nil, err
	}
	s, err := c.screen(screenID)
	if err != nil {
		return nil, err
	}
	out := image.NewRGBA(s.front.Bounds())
	copy(out.Pix, s.front.Pix)
	return out, nil
}

// CursorBitmapForScreenshot returns the current cursor frame and the
// desktop rect it occupies, if the sprite overlaps the given screen.
func (c *Compositor) CursorBitmapForScreenshot(token Capability, screenID int) (*image.RGBA, region.Rect, bool, error) {
	if err := token.require(PermScreenshot); err != nil {
		return nil, region.Rect{}, false, err
	}
	s, err := c.screen(screenID)
	if err != nil {
		return nil, region.Rect{}, false, err
	}
	sprite := c.cursor.image()
	if sprite == nil || !c.cursor.rect().Intersects(s.screen.Bounds) {
		return nil, region.Rect{}, false, nil
	}
	out := image.NewRGBA(sprite.Bounds())
	draw.Draw(out, out.Bounds(), sprite, sprite.Bounds().Min, draw.Src)
	return out, c.cursor.rect(), true, nil
}
