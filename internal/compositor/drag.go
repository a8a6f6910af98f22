package compositor

import (
	"fmt"

	"github.com/1broseidon/tilecomp/internal/platform"
)

// BeginDrag shows a drag indicator carrying label next to the pointer. A
// drag already in progress is replaced.
func (c *Compositor) BeginDrag(label string) {
	c.EndDrag()
	c.drag = c.overlays.Create(NewDragOverlay(label, c.cursor.pos, c.theme))
}

// EndDrag removes the drag indicator. Its last rect is flushed as special
// content by the next pass.
func (c *Compositor) EndDrag() {
	if c.drag == nil {
		return
	}
	c.lastDndRect = c.drag.entry.lastRect
	c.drag.Release()
	c.drag = nil
}

// Dragging reports whether a drag indicator is shown.
func (c *Compositor) Dragging() bool { return c.drag != nil }

// ShowWindowGeometry shows the size and position of a window inside it.
func (c *Compositor) ShowWindowGeometry(id platform.WindowID) error {
	w, ok := c.findWindow(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWindow, id)
	}
	c.HideWindowGeometry()
	c.geometry = c.overlays.Create(NewWindowGeometryOverlay(w, c.cursor.rect(), c.theme))
	return nil
}

// HideWindowGeometry removes the geometry badge.
func (c *Compositor) HideWindowGeometry() {
	if c.geometry == nil {
		return
	}
	c.geometry.Release()
	c.geometry = nil
}

// refreshGeometryOverlay follows the described window, dropping the badge
// once the window is gone.
func (c *Compositor) refreshGeometryOverlay() {
	if c.geometry == nil {
		return
	}
	o := c.geometry.Overlay().(*WindowGeometryOverlay)
	w, ok := c.findWindow(o.WindowID())
	if !ok || !w.Visible {
		c.HideWindowGeometry()
		return
	}
	o.Update(w, c.cursor.rect())
}

func (c *Compositor) findWindow(id platform.WindowID) (platform.Window, bool) {
	if c.windows == nil {
		return platform.Window{}, false
	}
	for _, w := range c.windows.Windows() {
		if w.ID == id {
			return w, true
		}
	}
	return platform.Window{}, false
}
