package compositor

import (
	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
)

type windowVisibility struct {
	window  platform.Window
	visible region.Set
}

// occlusion is the resolved visibility of the window stack.
type occlusion struct {
	// windows holds the visible windows back to front.
	windows []windowVisibility
	// opaque is the union of visible opaque window area.
	opaque region.Set
	// transparent is the union of visible non-opaque window area.
	transparent region.Set
	// wallpaper is the desktop minus opaque.
	wallpaper region.Set
}

// resolveOcclusion walks the stack front to back. A window's visible region
// is its rect minus the opaque area of every visible window above it.
func resolveOcclusion(desktop region.Set, stack []platform.Window) occlusion {
	var occ occlusion
	visible := make([]windowVisibility, 0, len(stack))

	for i := len(stack) - 1; i >= 0; i-- {
		w := stack[i]
		if !w.Visible || w.Bounds.Empty() {
			continue
		}
		vis := desktop.Intersect(w.Bounds)
		vis.SubtractSet(occ.opaque)
		if vis.IsEmpty() {
			continue
		}
		if w.Opaque {
			occ.opaque.AddSet(vis)
		} else {
			occ.transparent.AddSet(vis)
		}
		visible = append(visible, windowVisibility{window: w, visible: vis})
	}

	occ.windows = make([]windowVisibility, len(visible))
	for i, wv := range visible {
		occ.windows[len(visible)-1-i] = wv
	}
	occ.wallpaper = desktop.Clone()
	occ.wallpaper.SubtractSet(occ.opaque)
	return occ
}

// recomputeOcclusions rebuilds visibility from the window source and marks
// it fresh.
func (c *Compositor) recomputeOcclusions() {
	var stack []platform.Window
	if c.windows != nil {
		stack = c.windows.Windows()
	}
	c.occ = resolveOcclusion(c.desktop, stack)
	c.occlusionsStale = false
	c.stats.OcclusionPasses++
}

// InvalidateOcclusions marks the visibility data stale; the next compose
// pass recomputes it.
func (c *Compositor) InvalidateOcclusions() {
	c.occlusionsStale = true
	c.scheduleCompose()
}

// OcclusionsStale reports whether visibility must be recomputed.
func (c *Compositor) OcclusionsStale() bool { return c.occlusionsStale }

// VisibleRegion returns the visible part of a window as of the last
// occlusion pass.
func (c *Compositor) VisibleRegion(id platform.WindowID) (region.Set, bool) {
	for _, wv := range c.occ.windows {
		if wv.window.ID == id {
			return wv.visible.Clone(), true
		}
	}
	return region.Set{}, false
}

// WallpaperVisibleRegion returns the desktop area not covered by an opaque
// window as of the last occlusion pass.
func (c *Compositor) WallpaperVisibleRegion() region.Set {
	return c.occ.wallpaper.Clone()
}

// WindowsChanged reports a change to the window stack. The damage rects are
// repainted and occlusions recomputed on the next pass.
func (c *Compositor) WindowsChanged(damage ...region.Rect) {
	c.occlusionsStale = true
	for _, r := range damage {
		c.addDamage(r)
	}
	c.scheduleCompose()
}
