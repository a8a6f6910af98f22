package x11

import (
	"fmt"
	"image"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xgraphics"
)

// ClientWindow is a managed top-level window in stacking order.
type ClientWindow struct {
	ID     xproto.Window
	Title  string
	X      int
	Y      int
	Width  int
	Height int
	Hidden bool
}

// StackingOrder returns the normal client windows on the current desktop,
// bottom to top, using _NET_CLIENT_LIST_STACKING.
func (c *Connection) StackingOrder() ([]ClientWindow, error) {
	clients, err := ewmh.ClientListStackingGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client stacking list: %w", err)
	}

	currentDesktop, desktopErr := ewmh.CurrentDesktopGet(c.XUtil)
	hasCurrentDesktop := desktopErr == nil

	windows := make([]ClientWindow, 0, len(clients))
	for _, windowID := range clients {
		if !c.IsNormalWindow(windowID) {
			continue
		}

		if hasCurrentDesktop {
			desktop, err := ewmh.WmDesktopGet(c.XUtil, windowID)
			if err == nil && desktop != uint(0xFFFFFFFF) && desktop != currentDesktop {
				continue
			}
		}

		x, y, w, h, ok := c.windowGeometry(windowID)
		if !ok {
			continue
		}

		windows = append(windows, ClientWindow{
			ID:     windowID,
			Title:  c.WindowTitle(windowID),
			X:      x,
			Y:      y,
			Width:  w,
			Height: h,
			Hidden: c.isHidden(windowID),
		})
	}
	return windows, nil
}

// Capture reads the current contents of a window. The returned image has
// its origin at (0, 0).
func (c *Connection) Capture(windowID xproto.Window) (image.Image, error) {
	img, err := xgraphics.NewDrawable(c.XUtil, xproto.Drawable(windowID))
	if err != nil {
		return nil, fmt.Errorf("capture window 0x%x: %w", windowID, err)
	}
	return img, nil
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_NORMAL" {
			return true
		}
		// Reject desktop, dock, splash, etc.
		if t == "_NET_WM_WINDOW_TYPE_DESKTOP" ||
			t == "_NET_WM_WINDOW_TYPE_DOCK" ||
			t == "_NET_WM_WINDOW_TYPE_SPLASH" ||
			t == "_NET_WM_WINDOW_TYPE_NOTIFICATION" {
			return false
		}
	}

	// If no specific type is set, assume it's normal
	return len(types) == 0
}

// WindowTitle returns _NET_WM_NAME, falling back to WM_NAME.
func (c *Connection) WindowTitle(windowID xproto.Window) string {
	title, err := ewmh.WmNameGet(c.XUtil, windowID)
	if err == nil {
		title = strings.TrimSpace(title)
		if title != "" {
			return title
		}
	}

	title, err = icccm.WmNameGet(c.XUtil, windowID)
	if err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

func (c *Connection) isHidden(windowID xproto.Window) bool {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_HIDDEN" {
			return true
		}
	}
	return false
}

func (c *Connection) windowGeometry(windowID xproto.Window) (x, y, w, h int, ok bool) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return 0, 0, 0, 0, false
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return 0, 0, 0, 0, false
	}

	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), true
}
