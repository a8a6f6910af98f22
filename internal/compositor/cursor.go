package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"time"

	"github.com/1broseidon/tilecomp/internal/region"
)

// Cursor is a pointer sprite with one or more animation frames.
type Cursor struct {
	Name          string
	Frames        []*image.RGBA
	Hotspot       image.Point
	FrameInterval time.Duration
}

// Size returns the frame size.
func (c *Cursor) Size() image.Point {
	if c == nil || len(c.Frames) == 0 {
		return image.Point{}
	}
	return c.Frames[0].Bounds().Size()
}

// Animated reports whether the cursor has more than one frame.
func (c *Cursor) Animated() bool {
	return c != nil && len(c.Frames) > 1 && c.FrameInterval > 0
}

var arrowShape = []string{
	"X...........",
	"XX..........",
	"XoX.........",
	"XooX........",
	"XoooX.......",
	"XooooX......",
	"XoooooX.....",
	"XooooooX....",
	"XoooooooX...",
	"XooooooooX..",
	"XoooooooooX.",
	"XooooooXXXXX",
	"XoooXooX....",
	"XooX.XooX...",
	"XoX..XooX...",
	"XX....XooX..",
	"X.....XooX..",
	".......XooX.",
	".......XXX..",
}

// DefaultCursor returns the built-in arrow.
func DefaultCursor() *Cursor {
	img := image.NewRGBA(image.Rect(0, 0, len(arrowShape[0]), len(arrowShape)))
	for y, row := range arrowShape {
		for x, ch := range row {
			switch ch {
			case 'X':
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
			case 'o':
				img.SetRGBA(x, y, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
			}
		}
	}
	return &Cursor{Name: "arrow", Frames: []*image.RGBA{img}}
}

// LoadCursor decodes a cursor image. A horizontal strip is split into
// frames equal-width frames.
func LoadCursor(path string, frames int, hotspot image.Point, interval time.Duration) (*Cursor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cursor: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode cursor %s: %w", path, err)
	}

	frames = max(frames, 1)
	b := img.Bounds()
	if b.Dx()%frames != 0 {
		return nil, fmt.Errorf("cursor %s: width %d not divisible into %d frames", path, b.Dx(), frames)
	}
	fw := b.Dx() / frames
	if fw == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("cursor %s: empty image", path)
	}

	c := &Cursor{Name: path, Hotspot: hotspot, FrameInterval: interval}
	for i := 0; i < frames; i++ {
		frame := image.NewRGBA(image.Rect(0, 0, fw, b.Dy()))
		draw.Draw(frame, frame.Bounds(), img, image.Pt(b.Min.X+i*fw, b.Min.Y), draw.Src)
		c.Frames = append(c.Frames, frame)
	}
	return c, nil
}

// cursorState is the compositor's view of the pointer.
type cursorState struct {
	asset       *Cursor
	pos         image.Point
	frame       int
	lastStep    time.Time
	invalidated bool
}

func (s *cursorState) rect() region.Rect {
	if s.asset == nil {
		return region.Rect{}
	}
	sz := s.asset.Size()
	return region.Rect{
		X:      s.pos.X - s.asset.Hotspot.X,
		Y:      s.pos.Y - s.asset.Hotspot.Y,
		Width:  sz.X,
		Height: sz.Y,
	}
}

func (s *cursorState) image() *image.RGBA {
	if s.asset == nil || len(s.asset.Frames) == 0 {
		return nil
	}
	return s.asset.Frames[s.frame%len(s.asset.Frames)]
}

// MoveCursor moves the pointer sprite to (x, y).
func (c *Compositor) MoveCursor(x, y int) {
	p := image.Pt(x, y)
	if p == c.cursor.pos {
		return
	}
	c.cursor.pos = p
	if c.drag != nil {
		c.drag.Overlay().(*DragOverlay).MoveTo(p)
	}
	c.refreshGeometryOverlay()
	c.InvalidateCursor(false)
}

// CursorPosition returns the pointer position.
func (c *Compositor) CursorPosition() image.Point { return c.cursor.pos }

// SetCursor changes the cursor asset. A nil cursor hides the pointer.
func (c *Compositor) SetCursor(cursor *Cursor) {
	if cursor == c.cursor.asset {
		return
	}
	c.cursor.asset = cursor
	c.cursor.frame = 0
	c.cursor.lastStep = time.Time{}
	c.InvalidateCursor(false)
}

// CurrentCursor returns the active cursor asset.
func (c *Compositor) CurrentCursor() *Cursor { return c.cursor.asset }

// CurrentCursorFrame returns the index of the displayed animation frame.
func (c *Compositor) CurrentCursorFrame() int { return c.cursor.frame }

// CurrentCursorRect returns the desktop rect covered by the sprite.
func (c *Compositor) CurrentCursorRect() region.Rect { return c.cursor.rect() }

// InvalidateCursor forces the sprite to be restored and redrawn. With
// compose set the pass runs now instead of on the next immediate tick.
func (c *Compositor) InvalidateCursor(compose bool) {
	c.cursor.invalidated = true
	if compose {
		c.Compose()
		return
	}
	c.scheduleCompose()
}

// StepAnimations advances the cursor frame and animated overlays. It is
// called once per steady tick.
func (c *Compositor) StepAnimations(now time.Time) {
	if a := c.cursor.asset; a.Animated() {
		if c.cursor.lastStep.IsZero() {
			c.cursor.lastStep = now
		} else if now.Sub(c.cursor.lastStep) >= a.FrameInterval {
			c.cursor.lastStep = now
			c.cursor.frame = (c.cursor.frame + 1) % len(a.Frames)
			c.cursor.invalidated = true
		}
	}
	if c.overlays.step(now) {
		c.scheduleCompose()
	}
}

// restoreCursor copies the saved pixels back over the last sprite rect.
// It reports the restored rect, or false when nothing was restored.
func (c *Compositor) restoreCursor(s *screenData, dirty *region.Set) (region.Rect, bool) {
	if !s.cursorBackValid {
		return region.Rect{}, false
	}
	if !c.cursor.invalidated && !dirty.Intersects(s.lastCursorRect) {
		return region.Rect{}, false
	}
	r := s.lastCursorRect
	draw.Draw(s.back, r.Image(), s.cursorBack, r.Image().Min, draw.Src)
	s.cursorBackValid = false
	return r, true
}

// drawCursor saves the pixels under the sprite and draws it into the back
// buffer, clipped to the screen. A sprite straddling two screens is drawn
// on both. It reports the drawn rect, or false when the sprite does not
// overlap the screen or is already drawn.
func (c *Compositor) drawCursor(s *screenData) (region.Rect, bool) {
	if s.cursorBackValid {
		return region.Rect{}, false
	}
	sprite := c.cursor.image()
	if sprite == nil {
		return region.Rect{}, false
	}
	full := c.cursor.rect()
	r := full.Intersect(s.screen.Bounds)
	if r.Empty() {
		return region.Rect{}, false
	}
	ir := r.Image()
	draw.Draw(s.cursorBack, ir, s.back, ir.Min, draw.Src)
	draw.Draw(s.back, ir, sprite, ir.Min.Sub(image.Pt(full.X, full.Y)), draw.Over)
	s.lastCursorRect = r
	s.cursorBackValid = true
	return r, true
}
