package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/tilecomp/internal/region"
	"github.com/1broseidon/tilecomp/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
	// Name identifies the caller for reference-counted requests. Defaults to
	// the server's shared CLI holder.
	Name string
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientWithSocket(socketPath)
}

// NewClientWithSocket creates a client for an explicit socket path.
func NewClientWithSocket(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		// Wallpaper decoding can outlast the request timeout.
		timeout: wallpaperDeadline + time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// send marshals payload (if any) and decodes the response data into out
// (if non-nil).
func (c *Client) send(cmd CommandType, payload interface{}, out interface{}) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.send(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.send(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Compose runs a compose pass immediately.
func (c *Client) Compose() (*ComposeData, error) {
	var data ComposeData
	if err := c.send(CommandCompose, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// InvalidateScreen damages the whole desktop.
func (c *Client) InvalidateScreen() error {
	return c.send(CommandInvalidate, InvalidatePayload{}, nil)
}

// InvalidateRect damages one rect.
func (c *Client) InvalidateRect(r region.Rect) error {
	return c.send(CommandInvalidate, InvalidatePayload{Rect: &r}, nil)
}

// InvalidateWindows repaints every visible window.
func (c *Client) InvalidateWindows() error {
	return c.send(CommandInvalidate, InvalidatePayload{Window: true}, nil)
}

// InvalidateCursor redraws the pointer sprite.
func (c *Client) InvalidateCursor() error {
	return c.send(CommandInvalidate, InvalidatePayload{Cursor: true}, nil)
}

// SetBackground sets the desktop colour.
func (c *Client) SetBackground(color string) error {
	return c.send(CommandSetBackground, BackgroundPayload{Color: color}, nil)
}

// SetWallpaper loads a wallpaper and waits for the decode result. An empty
// path clears the wallpaper.
func (c *Client) SetWallpaper(path, mode string) error {
	return c.send(CommandSetWallpaper, WallpaperPayload{Path: path, Mode: mode}, nil)
}

// SetWallpaperMode selects tile, center or stretch.
func (c *Client) SetWallpaperMode(mode string) error {
	return c.send(CommandSetWallpaperMode, WallpaperModePayload{Mode: mode}, nil)
}

// Screenshot writes the screen's front buffer to path as PNG. When
// cursorPath is set the cursor sprite is written there too.
func (c *Client) Screenshot(screen int, path, cursorPath string) (*ScreenshotData, error) {
	var data ScreenshotData
	payload := ScreenshotPayload{Screen: screen, Path: path, CursorPath: cursorPath, Client: c.Name}
	if err := c.send(CommandScreenshot, payload, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DisplayLink acquires or releases one display-link reference and returns
// the resulting subscriber count.
func (c *Client) DisplayLink(enable bool) (int, error) {
	var data CountData
	if err := c.send(CommandDisplayLink, TogglePayload{Client: c.Name, Enable: enable}, &data); err != nil {
		return 0, err
	}
	return data.Count, nil
}

// ScreenNumbers acquires or releases one screen-number reference.
func (c *Client) ScreenNumbers(enable bool) (int, error) {
	var data CountData
	if err := c.send(CommandScreenNumbers, TogglePayload{Client: c.Name, Enable: enable}, &data); err != nil {
		return 0, err
	}
	return data.Count, nil
}

// MoveCursor moves the pointer and returns the sprite rect.
func (c *Client) MoveCursor(x, y int) (region.Rect, error) {
	var rect region.Rect
	if err := c.send(CommandMoveCursor, CursorPayload{X: x, Y: y}, &rect); err != nil {
		return region.Rect{}, err
	}
	return rect, nil
}

// PutWindow inserts or updates a window in the daemon's stack.
func (c *Client) PutWindow(w WindowPayload) error {
	return c.send(CommandPutWindow, w, nil)
}

// RemoveWindow deletes a window from the stack.
func (c *Client) RemoveWindow(id uint32) error {
	return c.send(CommandRemoveWindow, WindowIDPayload{ID: id}, nil)
}

// RaiseWindow moves a window to the top of the stack.
func (c *Client) RaiseWindow(id uint32) error {
	return c.send(CommandRaiseWindow, WindowIDPayload{ID: id}, nil)
}

// BeginDrag shows the drag preview following the pointer.
func (c *Client) BeginDrag(label string) error {
	return c.send(CommandBeginDrag, DragPayload{Label: label}, nil)
}

// EndDrag removes the drag preview.
func (c *Client) EndDrag() error {
	return c.send(CommandEndDrag, nil, nil)
}

// WindowGeometry shows or hides the geometry badge for a window.
func (c *Client) WindowGeometry(id uint32, show bool) error {
	return c.send(CommandWindowGeometry, GeometryPayload{ID: id, Show: show}, nil)
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
