package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/1broseidon/tilecomp/internal/region"
)

var flashColor = color.RGBA{R: 0xff, G: 0xff, A: 0xff}

// flush transmits pending, which is exactly the union of the three flush
// sets. Screens that can select a scan-out buffer flip; the rest copy the
// changed rects from back to front. The flush sets survive a failed flush
// and are retried by the next pass.
func (c *Compositor) flush(s *screenData, pending region.Set) error {
	rects := pending.Rects()

	if c.flashFlush {
		for _, r := range rects {
			draw.Draw(s.temp, r.Image(), image.NewUniform(flashColor), image.Point{}, draw.Src)
		}
		if err := c.display.Flush(s.screen.ID, s.temp, rects); err != nil {
			return fmt.Errorf("flash screen %d: %w", s.screen.ID, err)
		}
	}

	if s.canSetBuffer {
		s.front, s.back = s.back, s.front
		s.buffersFlipped = !s.buffersFlipped
		if err := c.display.SetBuffer(s.screen.ID, s.bufferIndex()); err != nil {
			s.front, s.back = s.back, s.front
			s.buffersFlipped = !s.buffersFlipped
			return fmt.Errorf("set buffer on screen %d: %w", s.screen.ID, err)
		}
		err := c.display.Flush(s.screen.ID, s.front, rects)
		// The new back buffer must match the front before the next render.
		copyRects(s.back, s.front, rects)
		if err != nil {
			return fmt.Errorf("flush screen %d: %w", s.screen.ID, err)
		}
	} else {
		copyRects(s.front, s.back, rects)
		if err := c.display.Flush(s.screen.ID, s.front, rects); err != nil {
			return fmt.Errorf("flush screen %d: %w", s.screen.ID, err)
		}
	}

	s.clearFlush()
	s.state = ScreenClean
	c.stats.Flushes++
	c.stats.FlushedRects += uint64(len(rects))
	c.stats.FlushedPixels += uint64(pending.Area())
	return nil
}

func (s *screenData) bufferIndex() int {
	if s.buffersFlipped {
		return 1
	}
	return 0
}

func copyRects(dst, src *image.RGBA, rects []region.Rect) {
	for _, r := range rects {
		ir := r.Image()
		draw.Draw(dst, ir, src, ir.Min, draw.Src)
	}
}
