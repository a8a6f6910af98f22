package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/region"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload           CommandType = "RELOAD"
	CommandGetStatus        CommandType = "GET_STATUS"
	CommandCompose          CommandType = "COMPOSE"
	CommandInvalidate       CommandType = "INVALIDATE"
	CommandSetBackground    CommandType = "SET_BACKGROUND"
	CommandSetWallpaper     CommandType = "SET_WALLPAPER"
	CommandSetWallpaperMode CommandType = "SET_WALLPAPER_MODE"
	CommandScreenshot       CommandType = "SCREENSHOT"
	CommandDisplayLink      CommandType = "DISPLAY_LINK"
	CommandScreenNumbers    CommandType = "SCREEN_NUMBERS"
	CommandMoveCursor       CommandType = "MOVE_CURSOR"
	CommandPutWindow        CommandType = "PUT_WINDOW"
	CommandRemoveWindow     CommandType = "REMOVE_WINDOW"
	CommandRaiseWindow      CommandType = "RAISE_WINDOW"
	CommandBeginDrag        CommandType = "BEGIN_DRAG"
	CommandEndDrag          CommandType = "END_DRAG"
	CommandWindowGeometry   CommandType = "WINDOW_GEOMETRY"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	UptimeSeconds int64             `json:"uptime_seconds"`
	DaemonRunning bool              `json:"daemon_running"`
	Backend       string            `json:"backend"`
	Windows       int               `json:"windows"`
	Compositor    compositor.Status `json:"compositor"`
}

type ComposeData struct {
	Flushed bool   `json:"flushed"`
	Frame   uint64 `json:"frame"`
}

// InvalidatePayload selects what to repaint. With nothing set the whole
// desktop is invalidated.
type InvalidatePayload struct {
	Rect   *region.Rect `json:"rect,omitempty"`
	Window bool         `json:"window,omitempty"`
	Cursor bool         `json:"cursor,omitempty"`
}

type BackgroundPayload struct {
	Color string `json:"color"`
}

type WallpaperPayload struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

type WallpaperModePayload struct {
	Mode string `json:"mode"`
}

type ScreenshotPayload struct {
	Screen int    `json:"screen"`
	Path   string `json:"path"`
	// CursorPath, when set, also receives the cursor sprite.
	CursorPath string `json:"cursor_path,omitempty"`
	Client     string `json:"client,omitempty"`
}

type ScreenshotData struct {
	Path       string      `json:"path"`
	Bounds     region.Rect `json:"bounds"`
	CursorPath string      `json:"cursor_path,omitempty"`
	Cursor     region.Rect `json:"cursor,omitempty"`
}

// TogglePayload acquires (Enable) or releases one reference held by Client.
type TogglePayload struct {
	Client string `json:"client,omitempty"`
	Enable bool   `json:"enable"`
}

type CountData struct {
	Count int `json:"count"`
}

type CursorPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// WindowPayload describes a window for PUT_WINDOW. Color fills the window
// content; without it the theme's window face is used.
type WindowPayload struct {
	ID      uint32      `json:"id"`
	Title   string      `json:"title,omitempty"`
	Bounds  region.Rect `json:"bounds"`
	Opaque  *bool       `json:"opaque,omitempty"`
	Visible *bool       `json:"visible,omitempty"`
	Color   string      `json:"color,omitempty"`
}

type WindowIDPayload struct {
	ID uint32 `json:"id"`
}

type DragPayload struct {
	Label string `json:"label"`
}

type GeometryPayload struct {
	ID   uint32 `json:"id"`
	Show bool   `json:"show"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
