package platform

import (
	"image"
	"slices"

	"github.com/1broseidon/tilecomp/internal/region"
)

// Stack is a mutable window stack ordered back to front. It is the
// WindowSource the daemon hands to the compositor; the window-manager side
// (IPC requests, the X11 reconciler) mutates it.
//
// Stack is not safe for concurrent use. Mutations happen on the compositor
// loop, the same goroutine that reads it.
type Stack struct {
	windows []Window

	// OnChange, if set, receives the screen area affected by each mutation.
	OnChange func(damage ...region.Rect)
}

var _ WindowSource = (*Stack)(nil)

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Windows returns a snapshot of the stack, back to front.
func (s *Stack) Windows() []Window {
	return slices.Clone(s.windows)
}

// Len returns the number of windows in the stack.
func (s *Stack) Len() int { return len(s.windows) }

// Get returns the window with the given ID.
func (s *Stack) Get(id WindowID) (Window, bool) {
	if i := s.index(id); i >= 0 {
		return s.windows[i], true
	}
	return Window{}, false
}

// Put inserts w on top of the stack, or updates it in place when a window
// with the same ID already exists.
func (s *Stack) Put(w Window) {
	if i := s.index(w.ID); i >= 0 {
		old := s.windows[i]
		s.windows[i] = w
		s.changed(old.Bounds, w.Bounds)
		return
	}
	s.windows = append(s.windows, w)
	s.changed(w.Bounds)
}

// Remove deletes the window with the given ID. It reports whether the
// window existed.
func (s *Stack) Remove(id WindowID) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	old := s.windows[i]
	s.windows = slices.Delete(s.windows, i, i+1)
	s.changed(old.Bounds)
	return true
}

// Raise moves the window to the top of the stack.
func (s *Stack) Raise(id WindowID) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	if i == len(s.windows)-1 {
		return true
	}
	w := s.windows[i]
	s.windows = append(slices.Delete(s.windows, i, i+1), w)
	s.changed(w.Bounds)
	return true
}

// Replace swaps the whole stack for windows. Only windows whose geometry,
// flags or content changed, or that moved relative to the other surviving
// windows, contribute damage. Inserting or removing a window does not
// count as moving the ones around it.
func (s *Stack) Replace(windows []Window) {
	var damage []region.Rect

	before := make(map[WindowID]Window, len(s.windows))
	for _, w := range s.windows {
		before[w.ID] = w
	}
	after := make(map[WindowID]bool, len(windows))
	for _, w := range windows {
		after[w.ID] = true
	}

	var oldOrder, newOrder []WindowID
	for _, w := range s.windows {
		if after[w.ID] {
			oldOrder = append(oldOrder, w.ID)
		}
	}
	for _, w := range windows {
		if _, ok := before[w.ID]; ok {
			newOrder = append(newOrder, w.ID)
		}
	}
	kept := commonOrder(oldOrder, newOrder)

	for _, w := range windows {
		old, ok := before[w.ID]
		if !ok {
			damage = append(damage, w.Bounds)
			continue
		}
		if !kept[w.ID] || !sameWindow(old, w) {
			damage = append(damage, old.Bounds, w.Bounds)
		}
	}
	for _, w := range s.windows {
		if !after[w.ID] {
			damage = append(damage, w.Bounds)
		}
	}

	s.windows = slices.Clone(windows)
	if len(damage) > 0 {
		s.changed(damage...)
	}
}

// commonOrder returns the IDs of a longest common subsequence of a and b.
// Windows outside it changed their stacking relative to the rest.
func commonOrder(a, b []WindowID) map[WindowID]bool {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}
	kept := make(map[WindowID]bool, lcs[0][0])
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case a[i] == b[j]:
			kept[a[i]] = true
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			i++
		default:
			j++
		}
	}
	return kept
}

func (s *Stack) index(id WindowID) int {
	return slices.IndexFunc(s.windows, func(w Window) bool { return w.ID == id })
}

func (s *Stack) changed(damage ...region.Rect) {
	if s.OnChange != nil {
		s.OnChange(damage...)
	}
}

func sameWindow(a, b Window) bool {
	return a.Bounds == b.Bounds &&
		a.Opaque == b.Opaque &&
		a.Visible == b.Visible &&
		a.Title == b.Title &&
		sameContent(a.Content, b.Content)
}

func sameContent(a, b image.Image) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	// Images are compared by identity; a new snapshot is a new image.
	ra, okA := a.(*image.RGBA)
	rb, okB := b.(*image.RGBA)
	if okA && okB {
		return ra == rb
	}
	return false
}
