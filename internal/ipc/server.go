package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
	"github.com/1broseidon/tilecomp/internal/runtimepath"
)

const (
	defaultClient     = "cli"
	requestTimeout    = 5 * time.Second
	wallpaperDeadline = 30 * time.Second
)

// ServerOptions wires the server to the compositor loop.
type ServerOptions struct {
	// SocketPath defaults to runtimepath.SocketPath.
	SocketPath string
	Scheduler  *compositor.Scheduler
	// Stack receives PUT_WINDOW/REMOVE_WINDOW/RAISE_WINDOW. Without it those
	// commands fail.
	Stack   *platform.Stack
	Backend string
	Logger  *slog.Logger
	// Reload re-reads the config file and applies it. RELOAD fails without it.
	Reload func() error
}

// Server handles IPC requests from clients. Every compositor or stack
// access is posted to the scheduler, so handlers never race the loop.
type Server struct {
	socketPath string
	listener   net.Listener
	sched      *compositor.Scheduler
	stack      *platform.Stack
	backend    string
	logger     *slog.Logger
	reload     func() error
	startTime  time.Time

	// capabilities are only touched on the compositor loop.
	capabilities map[string]compositor.Capability

	shuttingDown bool
	shutdownMu   sync.Mutex
	conns        sync.WaitGroup
}

// NewServer creates a new IPC server
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("ipc: scheduler is required")
	}
	socketPath := opts.SocketPath
	if socketPath == "" {
		p, err := runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
		socketPath = p
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath:   socketPath,
		sched:        opts.Scheduler,
		stack:        opts.Stack,
		backend:      opts.Backend,
		logger:       logger,
		reload:       opts.Reload,
		startTime:    time.Now(),
		capabilities: make(map[string]compositor.Capability),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", "error", err)
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal IPC response", "command", req.Command, "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send IPC response", "command", req.Command, "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command)

	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandCompose:
		return s.handleCompose()
	case CommandInvalidate:
		return s.handleInvalidate(req.Payload)
	case CommandSetBackground:
		return s.handleSetBackground(req.Payload)
	case CommandSetWallpaper:
		return s.handleSetWallpaper(req.Payload)
	case CommandSetWallpaperMode:
		return s.handleSetWallpaperMode(req.Payload)
	case CommandScreenshot:
		return s.handleScreenshot(req.Payload)
	case CommandDisplayLink:
		return s.handleDisplayLink(req.Payload)
	case CommandScreenNumbers:
		return s.handleScreenNumbers(req.Payload)
	case CommandMoveCursor:
		return s.handleMoveCursor(req.Payload)
	case CommandPutWindow:
		return s.handlePutWindow(req.Payload)
	case CommandRemoveWindow:
		return s.handleRemoveWindow(req.Payload)
	case CommandRaiseWindow:
		return s.handleRaiseWindow(req.Payload)
	case CommandBeginDrag:
		return s.handleBeginDrag(req.Payload)
	case CommandEndDrag:
		return s.handleEndDrag()
	case CommandWindowGeometry:
		return s.handleWindowGeometry(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// call runs fn on the compositor loop with the request timeout.
func (s *Server) call(fn func(*compositor.Compositor) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return s.sched.Call(ctx, fn)
}

// capability returns the token held by client, creating one on first use.
// Must run on the compositor loop.
func (s *Server) capability(client string) compositor.Capability {
	if client == "" {
		client = defaultClient
	}
	token, ok := s.capabilities[client]
	if !ok {
		token = compositor.NewCapability(
			compositor.PermScreenshot,
			compositor.PermDisplayLink,
			compositor.PermScreenNumbers,
		)
		s.capabilities[client] = token
	}
	return token
}

func decodePayload(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func ok(data interface{}) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleReload() *Response {
	if s.reload == nil {
		return NewErrorResponse("reload is not supported")
	}
	if err := s.reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	s.logger.Info("config reloaded via IPC")
	return ok(nil)
}

func (s *Server) handleGetStatus() *Response {
	status := StatusData{
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		DaemonRunning: true,
		Backend:       s.backend,
	}
	err := s.call(func(c *compositor.Compositor) error {
		status.Compositor = c.Status()
		if s.stack != nil {
			status.Windows = s.stack.Len()
		}
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get status: %v", err))
	}
	return ok(status)
}

func (s *Server) handleCompose() *Response {
	var data ComposeData
	err := s.call(func(c *compositor.Compositor) error {
		data.Flushed = c.Compose()
		data.Frame = c.Frame()
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to compose: %v", err))
	}
	return ok(data)
}

func (s *Server) handleInvalidate(payload json.RawMessage) *Response {
	var req InvalidatePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid invalidate payload: %v", err))
		}
	}
	err := s.call(func(c *compositor.Compositor) error {
		switch {
		case req.Window:
			c.InvalidateWindow()
		case req.Cursor:
			c.InvalidateCursor(true)
		case req.Rect != nil:
			c.InvalidateScreenRect(*req.Rect)
		default:
			c.InvalidateScreen()
		}
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to invalidate: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleSetBackground(payload json.RawMessage) *Response {
	var req BackgroundPayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	err := s.call(func(c *compositor.Compositor) error {
		if !c.SetBackgroundColor(req.Color) {
			return fmt.Errorf("invalid color %q", req.Color)
		}
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set background: %v", err))
	}
	return ok(nil)
}

// handleSetWallpaper waits for the decode to finish so the client learns
// whether the image was accepted.
func (s *Server) handleSetWallpaper(payload json.RawMessage) *Response {
	var req WallpaperPayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}

	done := make(chan bool, 1)
	err := s.call(func(c *compositor.Compositor) error {
		if req.Mode != "" && !c.SetWallpaperMode(req.Mode) {
			return fmt.Errorf("invalid wallpaper mode %q", req.Mode)
		}
		c.SetWallpaper(req.Path, func(loaded bool) { done <- loaded })
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set wallpaper: %v", err))
	}

	select {
	case loaded := <-done:
		if !loaded {
			return NewErrorResponse(fmt.Sprintf("Failed to load wallpaper %q", req.Path))
		}
	case <-time.After(wallpaperDeadline):
		return NewErrorResponse("timed out waiting for wallpaper")
	}
	return ok(nil)
}

func (s *Server) handleSetWallpaperMode(payload json.RawMessage) *Response {
	var req WallpaperModePayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	err := s.call(func(c *compositor.Compositor) error {
		if !c.SetWallpaperMode(req.Mode) {
			return fmt.Errorf("invalid wallpaper mode %q", req.Mode)
		}
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set wallpaper mode: %v", err))
	}
	return ok(nil)
}

// handleScreenshot copies the bitmaps on the loop and encodes them after.
func (s *Server) handleScreenshot(payload json.RawMessage) *Response {
	var req ScreenshotPayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	if req.Path == "" {
		return NewErrorResponse("path is required")
	}

	var (
		front      *image.RGBA
		sprite     *image.RGBA
		cursorRect region.Rect
	)
	err := s.call(func(c *compositor.Compositor) error {
		token := s.capability(req.Client)
		var err error
		front, err = c.FrontBitmapForScreenshot(token, req.Screen)
		if err != nil {
			return err
		}
		if req.CursorPath != "" {
			var onScreen bool
			sprite, cursorRect, onScreen, err = c.CursorBitmapForScreenshot(token, req.Screen)
			if err != nil {
				return err
			}
			if !onScreen {
				sprite = nil
			}
		}
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to take screenshot: %v", err))
	}

	if err := writePNG(req.Path, front); err != nil {
		return NewErrorResponse(err.Error())
	}
	data := ScreenshotData{Path: req.Path, Bounds: region.FromImage(front.Bounds())}
	if sprite != nil {
		if err := writePNG(req.CursorPath, sprite); err != nil {
			return NewErrorResponse(err.Error())
		}
		data.CursorPath = req.CursorPath
		data.Cursor = cursorRect
	}
	return ok(data)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func (s *Server) handleDisplayLink(payload json.RawMessage) *Response {
	var req TogglePayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	var data CountData
	err := s.call(func(c *compositor.Compositor) error {
		token := s.capability(req.Client)
		var err error
		if req.Enable {
			err = c.IncrementDisplayLinkCount(token)
		} else {
			err = c.DecrementDisplayLinkCount(token)
		}
		data.Count = c.DisplayLinkCount()
		return err
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to update display link: %v", err))
	}
	return ok(data)
}

func (s *Server) handleScreenNumbers(payload json.RawMessage) *Response {
	var req TogglePayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	var data CountData
	err := s.call(func(c *compositor.Compositor) error {
		token := s.capability(req.Client)
		var err error
		if req.Enable {
			err = c.IncrementShowScreenNumber(token)
		} else {
			err = c.DecrementShowScreenNumber(token)
		}
		data.Count = c.ShowScreenNumberCount()
		return err
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to update screen numbers: %v", err))
	}
	return ok(data)
}

func (s *Server) handleMoveCursor(payload json.RawMessage) *Response {
	var req CursorPayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	var rect region.Rect
	err := s.call(func(c *compositor.Compositor) error {
		c.MoveCursor(req.X, req.Y)
		rect = c.CurrentCursorRect()
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to move cursor: %v", err))
	}
	return ok(rect)
}

func (s *Server) handlePutWindow(payload json.RawMessage) *Response {
	if s.stack == nil {
		return NewErrorResponse("window stack is managed by the backend")
	}
	var req WindowPayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	if req.ID == 0 {
		return NewErrorResponse("id is required")
	}
	if req.Bounds.Empty() {
		return NewErrorResponse("bounds must be non-empty")
	}

	w := platform.Window{
		ID:      platform.WindowID(req.ID),
		Title:   req.Title,
		Bounds:  req.Bounds,
		Opaque:  req.Opaque == nil || *req.Opaque,
		Visible: req.Visible == nil || *req.Visible,
	}
	if req.Color != "" {
		col, err := compositor.ParseColor(req.Color)
		if err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid window color: %v", err))
		}
		w.Content = image.NewUniform(col)
	}

	err := s.call(func(*compositor.Compositor) error {
		s.stack.Put(w)
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to put window: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleRemoveWindow(payload json.RawMessage) *Response {
	return s.stackOp(payload, "remove", (*platform.Stack).Remove)
}

func (s *Server) handleRaiseWindow(payload json.RawMessage) *Response {
	return s.stackOp(payload, "raise", (*platform.Stack).Raise)
}

func (s *Server) stackOp(payload json.RawMessage, verb string, op func(*platform.Stack, platform.WindowID) bool) *Response {
	if s.stack == nil {
		return NewErrorResponse("window stack is managed by the backend")
	}
	var req WindowIDPayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	err := s.call(func(*compositor.Compositor) error {
		if !op(s.stack, platform.WindowID(req.ID)) {
			return fmt.Errorf("%w: %d", compositor.ErrUnknownWindow, req.ID)
		}
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to %s window: %v", verb, err))
	}
	return ok(nil)
}

func (s *Server) handleBeginDrag(payload json.RawMessage) *Response {
	var req DragPayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	err := s.call(func(c *compositor.Compositor) error {
		c.BeginDrag(req.Label)
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to begin drag: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleEndDrag() *Response {
	err := s.call(func(c *compositor.Compositor) error {
		c.EndDrag()
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to end drag: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleWindowGeometry(payload json.RawMessage) *Response {
	var req GeometryPayload
	if err := decodePayload(payload, &req); err != nil {
		return NewErrorResponse(err.Error())
	}
	err := s.call(func(c *compositor.Compositor) error {
		if !req.Show {
			c.HideWindowGeometry()
			return nil
		}
		return c.ShowWindowGeometry(platform.WindowID(req.ID))
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to update window geometry: %v", err))
	}
	return ok(nil)
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server and waits for in-flight
// requests.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.conns.Wait()
	os.Remove(s.socketPath)
}
