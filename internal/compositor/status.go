package compositor

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/1broseidon/tilecomp/internal/region"
)

// Stats are cumulative compose counters.
type Stats struct {
	Frames          uint64        `json:"frames"`
	Flushes         uint64        `json:"flushes"`
	FlushErrors     uint64        `json:"flush_errors"`
	FlushedRects    uint64        `json:"flushed_rects"`
	FlushedPixels   uint64        `json:"flushed_pixels"`
	RenderedPixels  uint64        `json:"rendered_pixels"`
	OcclusionPasses uint64        `json:"occlusion_passes"`
	LastCompose     time.Duration `json:"last_compose_ns"`
}

// ScreenStatus describes one screen surface.
type ScreenStatus struct {
	ID                 int         `json:"id"`
	Name               string      `json:"name"`
	Bounds             region.Rect `json:"bounds"`
	State              string      `json:"state"`
	CanSetBuffer       bool        `json:"can_set_buffer"`
	BuffersFlipped     bool        `json:"buffers_flipped"`
	CursorBackingValid bool        `json:"cursor_backing_valid"`
	PendingFlushRects  int         `json:"pending_flush_rects"`
}

// Status is a snapshot of the compositor state.
type Status struct {
	Frame           uint64         `json:"frame"`
	Screens         []ScreenStatus `json:"screens"`
	OcclusionsStale bool           `json:"occlusions_stale"`
	DamageArea      int            `json:"damage_area"`
	VisibleWindows  int            `json:"visible_windows"`
	Overlays        int            `json:"overlays"`
	Background      string         `json:"background"`
	WallpaperPath   string         `json:"wallpaper_path"`
	WallpaperMode   string         `json:"wallpaper_mode"`
	Cursor          region.Rect    `json:"cursor"`
	CursorName      string         `json:"cursor_name"`
	CursorFrame     int            `json:"cursor_frame"`
	Dragging        bool           `json:"dragging"`
	DisplayLinks    int            `json:"display_links"`
	ScreenNumbers   int            `json:"screen_numbers"`
	Stats           Stats          `json:"stats"`
	LastError       string         `json:"last_error,omitempty"`
}

// Status returns a snapshot of the compositor state.
func (c *Compositor) Status() Status {
	st := Status{
		Frame:           c.frame,
		OcclusionsStale: c.occlusionsStale,
		DamageArea:      c.damage.Area(),
		VisibleWindows:  len(c.occ.windows),
		Overlays:        c.overlays.Len(),
		Background:      c.BackgroundColor(),
		WallpaperPath:   c.wallpaperPath,
		WallpaperMode:   c.wallpaperMode.String(),
		Cursor:          c.cursor.rect(),
		CursorFrame:     c.cursor.frame,
		Dragging:        c.drag != nil,
		DisplayLinks:    c.displayLinks.total,
		ScreenNumbers:   c.screenNumbers.total,
		Stats:           c.stats,
	}
	if c.cursor.asset != nil {
		st.CursorName = c.cursor.asset.Name
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	for _, s := range c.screens {
		pending := s.pendingFlush()
		st.Screens = append(st.Screens, ScreenStatus{
			ID:                 s.screen.ID,
			Name:               s.screen.Name,
			Bounds:             s.screen.Bounds,
			State:              s.state.String(),
			CanSetBuffer:       s.canSetBuffer,
			BuffersFlipped:     s.buffersFlipped,
			CursorBackingValid: s.cursorBackValid,
			PendingFlushRects:  pending.Len(),
		})
	}
	return st
}

// CheckInvariants validates the region bookkeeping: every set is disjoint,
// the flush sets of each screen are mutually disjoint and every buffer
// matches its screen.
func (c *Compositor) CheckInvariants() error {
	var errs []error
	check := func(name string, s region.Set) {
		if err := s.Check(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	check("damage", c.damage)
	check("wallpaper", c.occ.wallpaper)
	check("opaque", c.occ.opaque)
	for _, wv := range c.occ.windows {
		check(fmt.Sprintf("window %d", wv.window.ID), wv.visible)
	}
	if overlap := c.occ.opaque.IntersectSet(c.occ.wallpaper); !overlap.IsEmpty() {
		errs = append(errs, fmt.Errorf("wallpaper overlaps opaque windows at %s", overlap.String()))
	}

	for _, s := range c.screens {
		id := s.screen.ID
		check(fmt.Sprintf("screen %d opaque", id), s.flushOpaque)
		check(fmt.Sprintf("screen %d transparent", id), s.flushTransparent)
		check(fmt.Sprintf("screen %d special", id), s.flushSpecial)
		pairs := []struct {
			name string
			a, b region.Set
		}{
			{"opaque/transparent", s.flushOpaque, s.flushTransparent},
			{"opaque/special", s.flushOpaque, s.flushSpecial},
			{"transparent/special", s.flushTransparent, s.flushSpecial},
		}
		for _, p := range pairs {
			if overlap := p.a.IntersectSet(p.b); !overlap.IsEmpty() {
				errs = append(errs, fmt.Errorf("screen %d flush sets %s overlap at %s", id, p.name, overlap.String()))
			}
		}
		want := s.screen.Bounds.Image()
		buffers := map[string]*image.RGBA{
			"front":  s.front,
			"back":   s.back,
			"temp":   s.temp,
			"cursor": s.cursorBack,
		}
		for name, buf := range buffers {
			if buf.Bounds() != want {
				errs = append(errs, fmt.Errorf("screen %d %s buffer bounds %v, want %v", id, name, buf.Bounds(), want))
			}
		}
	}
	return errors.Join(errs...)
}
