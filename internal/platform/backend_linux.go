//go:build linux

package platform

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/1broseidon/tilecomp/internal/region"
	"github.com/1broseidon/tilecomp/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend presents the composited desktop on X11. Each RandR monitor
// gets an output window; the managed client windows are mirrored through
// ListWindows.
type LinuxBackend struct {
	conn   *x11.Connection
	logger *slog.Logger

	// CaptureContent enables reading window pixels on every ListWindows.
	CaptureContent bool

	mu      sync.Mutex
	outputs map[int]*x11.Output
}

var (
	_ Display      = (*LinuxBackend)(nil)
	_ WindowLister = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection, logger *slog.Logger) *LinuxBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinuxBackend{
		conn:    conn,
		logger:  logger,
		outputs: make(map[int]*x11.Output),
	}
}

// NewLinuxBackendFromDisplay opens a fresh X11 connection to display
// ($DISPLAY when empty).
func NewLinuxBackendFromDisplay(display string, logger *slog.Logger) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn, logger), nil
}

// Disconnect destroys the output windows and closes the X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b == nil || b.conn == nil {
		return
	}
	b.mu.Lock()
	for id, out := range b.outputs {
		out.Destroy()
		delete(b.outputs, id)
	}
	b.mu.Unlock()
	b.conn.Close()
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// Connection exposes the X11 connection for event subscriptions.
func (b *LinuxBackend) Connection() *x11.Connection {
	return b.conn
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Screens returns one screen per active monitor. Output windows for
// monitors that disappeared are destroyed and new ones are created lazily
// on the first flush.
func (b *LinuxBackend) Screens() ([]Screen, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, out := range b.outputs {
		out.Destroy()
		delete(b.outputs, id)
	}

	screens := make([]Screen, 0, len(monitors))
	for _, m := range monitors {
		screens = append(screens, screenFromMonitor(m))
	}
	return screens, nil
}

// Flush paints rects of src onto the monitor's output window.
func (b *LinuxBackend) Flush(screenID int, src *image.RGBA, rects []region.Rect) error {
	out, err := b.output(screenID)
	if err != nil {
		return err
	}
	irects := make([]image.Rectangle, len(rects))
	for i, r := range rects {
		irects[i] = r.Image()
	}
	out.Paint(src, irects)
	return nil
}

// SetBuffer is unsupported; X11 screens report CanSetBuffer false.
func (b *LinuxBackend) SetBuffer(screenID int, index int) error {
	return fmt.Errorf("x11: screen %d cannot select scan-out buffer", screenID)
}

// ListWindows mirrors the managed client windows, bottom to top.
func (b *LinuxBackend) ListWindows() ([]Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	clients, err := conn.StackingOrder()
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, len(clients))
	for _, c := range clients {
		w := Window{
			ID:      WindowID(c.ID),
			Title:   c.Title,
			Bounds:  region.Rect{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height},
			Opaque:  true,
			Visible: !c.Hidden,
		}
		if b.CaptureContent && w.Visible {
			content, err := conn.Capture(c.ID)
			if err != nil {
				b.logger.Debug("window capture failed", "window", c.ID, "error", err)
			} else {
				w.Content = content
			}
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func (b *LinuxBackend) output(screenID int) (*x11.Output, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if out, ok := b.outputs[screenID]; ok {
		return out, nil
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}
	for _, m := range monitors {
		if m.ID != screenID {
			continue
		}
		out, err := conn.NewOutput(m)
		if err != nil {
			return nil, err
		}
		b.outputs[screenID] = out
		return out, nil
	}
	return nil, fmt.Errorf("display with id %d not found", screenID)
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func screenFromMonitor(m x11.Monitor) Screen {
	return Screen{
		ID:   m.ID,
		Name: m.Name,
		Bounds: region.Rect{
			X:      m.X,
			Y:      m.Y,
			Width:  m.Width,
			Height: m.Height,
		},
	}
}
