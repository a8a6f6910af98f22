package compositor

import (
	"fmt"
	"image"

	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
)

// ScreenState tracks a screen through a compose pass.
type ScreenState int

const (
	ScreenClean ScreenState = iota
	ScreenDamaged
	ScreenRendered
)

func (s ScreenState) String() string {
	switch s {
	case ScreenClean:
		return "clean"
	case ScreenDamaged:
		return "damaged"
	case ScreenRendered:
		return "rendered"
	default:
		return fmt.Sprintf("ScreenState(%d)", int(s))
	}
}

const defaultMaxBufferPixels = 8192 * 8192

// screenData is the per-display surface: four full-size buffers in desktop
// coordinates and the pending flush sets of the current frame.
type screenData struct {
	screen platform.Screen

	front      *image.RGBA
	back       *image.RGBA
	temp       *image.RGBA
	cursorBack *image.RGBA

	buffersFlipped  bool
	canSetBuffer    bool
	cursorBackValid bool
	lastCursorRect  region.Rect

	// Mutually disjoint at flush time.
	flushOpaque      region.Set
	flushTransparent region.Set
	flushSpecial     region.Set

	state     ScreenState
	stretched *image.RGBA
}

func newScreenData(screen platform.Screen, maxPixels int) (*screenData, error) {
	b := screen.Bounds
	if b.Empty() {
		return nil, fmt.Errorf("%w: screen %d has empty bounds %v", ErrAllocation, screen.ID, b)
	}
	if maxPixels > 0 && b.Width*b.Height > maxPixels {
		return nil, fmt.Errorf("%w: screen %d (%dx%d) exceeds %d pixels",
			ErrAllocation, screen.ID, b.Width, b.Height, maxPixels)
	}

	r := b.Image()
	return &screenData{
		screen:       screen,
		front:        image.NewRGBA(r),
		back:         image.NewRGBA(r),
		temp:         image.NewRGBA(r),
		cursorBack:   image.NewRGBA(r),
		canSetBuffer: screen.CanSetBuffer,
	}, nil
}

// addFlush merges area into the flush set of the given kind. Special wins
// over transparent, which wins over opaque, so the sets stay disjoint.
func (s *screenData) addFlush(kind flushKind, area region.Set) {
	switch kind {
	case flushSpecial:
		s.flushTransparent.SubtractSet(area)
		s.flushOpaque.SubtractSet(area)
		s.flushSpecial.AddSet(area)
	case flushTransparent:
		area.SubtractSet(s.flushSpecial)
		s.flushOpaque.SubtractSet(area)
		s.flushTransparent.AddSet(area)
	default:
		area.SubtractSet(s.flushSpecial)
		area.SubtractSet(s.flushTransparent)
		s.flushOpaque.AddSet(area)
	}
}

// pendingFlush returns the union of the three flush sets.
func (s *screenData) pendingFlush() region.Set {
	out := s.flushOpaque.Clone()
	out.AddSet(s.flushTransparent)
	out.AddSet(s.flushSpecial)
	return out
}

func (s *screenData) clearFlush() {
	s.flushOpaque.Clear()
	s.flushTransparent.Clear()
	s.flushSpecial.Clear()
}

type flushKind int

const (
	flushOpaque flushKind = iota
	flushTransparent
	flushSpecial
)

// ScreenResolutionChanged reallocates every screen surface from the
// display's current layout and invalidates the whole desktop. On error the
// previous surfaces are kept.
func (c *Compositor) ScreenResolutionChanged() error {
	screens, err := c.display.Screens()
	if err != nil {
		return fmt.Errorf("query screens: %w", err)
	}
	if len(screens) == 0 {
		return fmt.Errorf("%w: display reports no screens", ErrAllocation)
	}

	data := make([]*screenData, 0, len(screens))
	var desktop region.Set
	for _, screen := range screens {
		sd, err := newScreenData(screen, c.maxBufferPixels)
		if err != nil {
			return err
		}
		data = append(data, sd)
		desktop.Add(screen.Bounds)
	}

	c.screens = data
	c.desktop = desktop
	c.damage.Clear()
	c.lastDndRect = region.Rect{}
	c.logger.Info("screen buffers allocated", "screens", len(data), "desktop", desktop.Bounds())

	if c.screenNumbers.total > 0 {
		c.showScreenNumbers()
	}
	c.InvalidateOcclusions()
	c.InvalidateScreen()
	return nil
}

// Screens returns the screen layout the buffers were allocated for.
func (c *Compositor) Screens() []platform.Screen {
	out := make([]platform.Screen, len(c.screens))
	for i, s := range c.screens {
		out[i] = s.screen
	}
	return out
}

// ScreenState returns the compose state of a screen.
func (c *Compositor) ScreenState(screenID int) (ScreenState, error) {
	s, err := c.screen(screenID)
	if err != nil {
		return 0, err
	}
	return s.state, nil
}

// CursorBackingValid reports whether the pixels under the sprite on the
// given screen are saved.
func (c *Compositor) CursorBackingValid(screenID int) bool {
	s, err := c.screen(screenID)
	return err == nil && s.cursorBackValid
}

func (c *Compositor) screen(screenID int) (*screenData, error) {
	for _, s := range c.screens {
		if s.screen.ID == screenID {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownScreen, screenID)
}
