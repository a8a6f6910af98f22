package platform

import (
	"image"

	"github.com/1broseidon/tilecomp/internal/region"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Screen describes a physical display as seen by the compositor.
type Screen struct {
	ID     int
	Name   string
	Bounds region.Rect
	// CanSetBuffer reports whether the device can scan out either of two
	// buffers, allowing the compositor to flip instead of copy.
	CanSetBuffer bool
}

// Window contains the geometry and content of a top-level window. Content
// is in window-local coordinates; a nil Content paints the window face.
type Window struct {
	ID      WindowID
	Title   string
	Bounds  region.Rect
	Opaque  bool
	Visible bool
	Content image.Image
}

// Display abstracts the output side of a display server.
//
// Flush transmits rects of src to the screen. Both src and rects use global
// desktop coordinates. SetBuffer selects which of the two device buffers is
// scanned out and is only called for screens with CanSetBuffer.
type Display interface {
	Screens() ([]Screen, error)
	Flush(screenID int, src *image.RGBA, rects []region.Rect) error
	SetBuffer(screenID int, index int) error
}

// WindowSource yields the current window stack ordered back to front.
type WindowSource interface {
	Windows() []Window
}

// WindowLister enumerates windows known to a backend, back to front.
type WindowLister interface {
	ListWindows() ([]Window, error)
}
