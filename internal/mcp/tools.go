package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tilecomp/internal/region"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		UptimeSeconds: status.UptimeSeconds,
		Backend:       status.Backend,
		Windows:       status.Windows,
		Compositor:    status.Compositor,
	}, nil
}

func (s *Server) handleCompose(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ComposeOutput, error) {
	data, err := s.daemon.Compose()
	if err != nil {
		return nil, ComposeOutput{}, err
	}
	return nil, ComposeOutput{Flushed: data.Flushed, Frame: data.Frame}, nil
}

func (s *Server) handleInvalidate(_ context.Context, _ *mcpsdk.CallToolRequest, args InvalidateInput) (*mcpsdk.CallToolResult, any, error) {
	set := 0
	for _, p := range []*int{args.X, args.Y, args.Width, args.Height} {
		if p != nil {
			set++
		}
	}

	var err error
	text := "Invalidated the whole desktop"
	switch set {
	case 0:
		err = s.daemon.InvalidateScreen()
	case 4:
		r := region.Rect{X: *args.X, Y: *args.Y, Width: *args.Width, Height: *args.Height}
		if r.Empty() {
			return nil, nil, fmt.Errorf("rect %s is empty", r)
		}
		err = s.daemon.InvalidateRect(r)
		text = fmt.Sprintf("Invalidated %s", r)
	default:
		return nil, nil, fmt.Errorf("x, y, width and height must be given together")
	}
	if err != nil {
		return nil, nil, err
	}
	return textResult(text), nil, nil
}

func (s *Server) handleSetBackground(_ context.Context, _ *mcpsdk.CallToolRequest, args SetBackgroundInput) (*mcpsdk.CallToolResult, any, error) {
	if args.Color == "" {
		return nil, nil, fmt.Errorf("color is required")
	}
	if err := s.daemon.SetBackground(args.Color); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Background set to %s", args.Color)), nil, nil
}

func (s *Server) handleSetWallpaper(_ context.Context, _ *mcpsdk.CallToolRequest, args SetWallpaperInput) (*mcpsdk.CallToolResult, any, error) {
	path := args.Path
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve wallpaper path: %w", err)
		}
		path = abs
	}
	if err := s.daemon.SetWallpaper(path, args.Mode); err != nil {
		return nil, nil, err
	}
	if path == "" {
		return textResult("Wallpaper removed"), nil, nil
	}
	return textResult(fmt.Sprintf("Wallpaper set to %s", path)), nil, nil
}

func (s *Server) handleScreenshot(_ context.Context, _ *mcpsdk.CallToolRequest, args ScreenshotInput) (*mcpsdk.CallToolResult, ScreenshotOutput, error) {
	path := args.Path
	if path == "" {
		dir, err := s.screenshotDir()
		if err != nil {
			return nil, ScreenshotOutput{}, err
		}
		path = filepath.Join(dir, fmt.Sprintf("screen-%d.png", args.Screen))
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, ScreenshotOutput{}, fmt.Errorf("resolve screenshot path: %w", err)
	}
	cursorPath := ""
	if args.Cursor {
		cursorPath = path[:len(path)-len(filepath.Ext(path))] + "-cursor.png"
	}

	data, err := s.daemon.Screenshot(args.Screen, path, cursorPath)
	if err != nil {
		return nil, ScreenshotOutput{}, err
	}
	out := ScreenshotOutput{
		Path:       data.Path,
		Width:      data.Bounds.Width,
		Height:     data.Bounds.Height,
		CursorPath: data.CursorPath,
	}
	s.logger.Debug("screenshot captured", "path", out.Path, "screen", args.Screen)

	if !args.Inline {
		return nil, out, nil
	}
	png, err := os.ReadFile(data.Path)
	if err != nil {
		return nil, ScreenshotOutput{}, fmt.Errorf("read screenshot: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: fmt.Sprintf("Screen %d (%dx%d) saved to %s", args.Screen, out.Width, out.Height, out.Path)},
			&mcpsdk.ImageContent{Data: png, MIMEType: "image/png"},
		},
	}, out, nil
}

// screenshotDir lazily creates one temporary directory per server.
func (s *Server) screenshotDir() (string, error) {
	if s.tempDir != "" {
		return s.tempDir, nil
	}
	dir, err := os.MkdirTemp("", "tilecomp-mcp-")
	if err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	s.tempDir = dir
	return dir, nil
}

func (s *Server) handleScreenNumbers(_ context.Context, _ *mcpsdk.CallToolRequest, args ToggleInput) (*mcpsdk.CallToolResult, CountOutput, error) {
	n, err := s.daemon.ScreenNumbers(args.Enable)
	if err != nil {
		return nil, CountOutput{}, err
	}
	return nil, CountOutput{Count: n}, nil
}

func (s *Server) handleDisplayLink(_ context.Context, _ *mcpsdk.CallToolRequest, args ToggleInput) (*mcpsdk.CallToolResult, CountOutput, error) {
	n, err := s.daemon.DisplayLink(args.Enable)
	if err != nil {
		return nil, CountOutput{}, err
	}
	return nil, CountOutput{Count: n}, nil
}

func (s *Server) handleWindowGeometry(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowGeometryInput) (*mcpsdk.CallToolResult, any, error) {
	if args.Show && args.ID == 0 {
		return nil, nil, fmt.Errorf("id is required to show the geometry badge")
	}
	if err := s.daemon.WindowGeometry(args.ID, args.Show); err != nil {
		return nil, nil, err
	}
	if !args.Show {
		return textResult("Geometry badge hidden"), nil, nil
	}
	return textResult(fmt.Sprintf("Showing geometry of window %d", args.ID)), nil, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}
