package compositor

import (
	"image/draw"
	"iter"
	"slices"
	"time"

	"github.com/1broseidon/tilecomp/internal/region"
)

// Overlay is transient content composited above every window.
//
// Rect is in desktop coordinates. Render paints the part of the overlay
// inside clip into dst, which is transparent there beforehand.
type Overlay interface {
	Rect() region.Rect
	Render(dst draw.Image, clip region.Rect)
	ThemeChanged(theme Theme)
}

// Animated overlays are stepped once per steady tick. Step reports whether
// the overlay needs repainting.
type Animated interface {
	Overlay
	Step(now time.Time) bool
}

type overlayEntry struct {
	overlay  Overlay
	lastRect region.Rect
	dirty    bool
}

// OverlayManager is the ordered overlay registry. Overlays are added only
// through Create and removed only through the returned handle.
type OverlayManager struct {
	entries []*overlayEntry
	pending region.Set
	rects   region.Set
	changed func()
}

// OverlayHandle scopes an overlay's membership in its manager.
type OverlayHandle struct {
	m     *OverlayManager
	entry *overlayEntry
}

func newOverlayManager(changed func()) *OverlayManager {
	return &OverlayManager{changed: changed}
}

// Create registers o on top of the existing overlays.
func (m *OverlayManager) Create(o Overlay) *OverlayHandle {
	e := &overlayEntry{overlay: o, dirty: true}
	m.entries = append(m.entries, e)
	m.notify()
	return &OverlayHandle{m: m, entry: e}
}

// All iterates the active overlays in render order.
func (m *OverlayManager) All() iter.Seq[Overlay] {
	return func(yield func(Overlay) bool) {
		for _, e := range m.entries {
			if !yield(e.overlay) {
				return
			}
		}
	}
}

// Find returns the first overlay matching pred.
func (m *OverlayManager) Find(pred func(Overlay) bool) (Overlay, bool) {
	for o := range m.All() {
		if pred(o) {
			return o, true
		}
	}
	return nil, false
}

// Len returns the number of active overlays.
func (m *OverlayManager) Len() int { return len(m.entries) }

// Rects returns the union of overlay rects as of the last recompute.
func (m *OverlayManager) Rects() region.Set { return m.rects.Clone() }

// recompute refreshes every overlay rect and returns the damage: old and
// new rects of overlays that moved, resized or asked for a repaint, plus
// the last rects of released overlays.
func (m *OverlayManager) recompute() region.Set {
	damage := m.pending
	m.pending = region.Set{}

	var rects region.Set
	for _, e := range m.entries {
		r := e.overlay.Rect()
		if e.dirty || r != e.lastRect {
			damage.Add(e.lastRect)
			damage.Add(r)
			e.lastRect = r
			e.dirty = false
		}
		rects.Add(r)
	}
	m.rects = rects
	return damage
}

// step advances animated overlays and reports whether any changed.
func (m *OverlayManager) step(now time.Time) bool {
	stepped := false
	for _, e := range m.entries {
		if a, ok := e.overlay.(Animated); ok && a.Step(now) {
			e.dirty = true
			stepped = true
		}
	}
	return stepped
}

func (m *OverlayManager) themeChanged(theme Theme) {
	for _, e := range m.entries {
		e.overlay.ThemeChanged(theme)
		e.dirty = true
	}
}

// visit calls each for every overlay intersecting clip, in render order,
// with the intersection.
func (m *OverlayManager) visit(clip region.Rect, each func(o Overlay, r region.Rect)) {
	for _, e := range m.entries {
		r := e.lastRect.Intersect(clip)
		if r.Empty() {
			continue
		}
		each(e.overlay, r)
	}
}

func (m *OverlayManager) notify() {
	if m.changed != nil {
		m.changed()
	}
}

// Overlay returns the overlay the handle manages.
func (h *OverlayHandle) Overlay() Overlay { return h.entry.overlay }

// Active reports whether the overlay is still registered.
func (h *OverlayHandle) Active() bool {
	return h.m != nil && slices.Contains(h.m.entries, h.entry)
}

// Invalidate schedules a repaint of the overlay at its current rect.
func (h *OverlayHandle) Invalidate() {
	if !h.Active() {
		return
	}
	h.entry.dirty = true
	h.m.notify()
}

// Release removes the overlay. Its last painted rect is damaged and it is
// never rendered again. Releasing twice is a no-op.
func (h *OverlayHandle) Release() {
	if h.m == nil {
		return
	}
	m := h.m
	h.m = nil
	i := slices.Index(m.entries, h.entry)
	if i < 0 {
		return
	}
	m.entries = slices.Delete(m.entries, i, i+1)
	m.pending.Add(h.entry.lastRect)
	m.notify()
}
