package mcp

import "github.com/1broseidon/tilecomp/internal/compositor"

// EmptyInput is the input for tools without arguments.
type EmptyInput struct{}

// StatusOutput is the output for the get_status tool.
type StatusOutput struct {
	UptimeSeconds int64             `json:"uptime_seconds"`
	Backend       string            `json:"backend"`
	Windows       int               `json:"windows"`
	Compositor    compositor.Status `json:"compositor"`
}

// ComposeOutput is the output for the compose tool.
type ComposeOutput struct {
	Flushed bool   `json:"flushed"`
	Frame   uint64 `json:"frame"`
}

// InvalidateInput is the input for the invalidate tool.
type InvalidateInput struct {
	X      *int `json:"x,omitempty" jsonschema:"Left edge of the rect to repaint. Omit all four coordinates to repaint the whole desktop."`
	Y      *int `json:"y,omitempty" jsonschema:"Top edge of the rect to repaint"`
	Width  *int `json:"width,omitempty" jsonschema:"Width of the rect to repaint"`
	Height *int `json:"height,omitempty" jsonschema:"Height of the rect to repaint"`
}

// SetBackgroundInput is the input for the set_background tool.
type SetBackgroundInput struct {
	Color string `json:"color" jsonschema:"required,Colour as #rgb, #rrggbb, #rrggbbaa or a CSS colour name"`
}

// SetWallpaperInput is the input for the set_wallpaper tool.
type SetWallpaperInput struct {
	Path string `json:"path" jsonschema:"Image file (png, jpeg, gif, bmp, webp). Empty removes the wallpaper."`
	Mode string `json:"mode,omitempty" jsonschema:"tile, center or stretch (default: keep the current mode)"`
}

// ScreenshotInput is the input for the screenshot tool.
type ScreenshotInput struct {
	Screen int    `json:"screen,omitempty" jsonschema:"Screen ID (default: 0)"`
	Path   string `json:"path,omitempty" jsonschema:"Where to write the PNG (default: a temporary file)"`
	Cursor bool   `json:"cursor,omitempty" jsonschema:"Also capture the pointer sprite"`
	Inline bool   `json:"inline,omitempty" jsonschema:"Return the PNG as image content in addition to the file path"`
}

// ScreenshotOutput is the output for the screenshot tool.
type ScreenshotOutput struct {
	Path       string `json:"path"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	CursorPath string `json:"cursor_path,omitempty"`
}

// ToggleInput is the input for reference-counted toggles.
type ToggleInput struct {
	Enable bool `json:"enable" jsonschema:"true acquires a reference, false releases one"`
}

// CountOutput reports a reference count after a toggle.
type CountOutput struct {
	Count int `json:"count"`
}

// WindowGeometryInput is the input for the window_geometry tool.
type WindowGeometryInput struct {
	ID   uint32 `json:"id,omitempty" jsonschema:"Window ID (required when show is true)"`
	Show bool   `json:"show" jsonschema:"Show or hide the geometry badge"`
}
