package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tilecomp/internal/ipc"
	"github.com/1broseidon/tilecomp/internal/region"
)

const (
	ServerName    = "tilecomp"
	ServerVersion = "0.1.0"
	// ClientName identifies MCP sessions to the daemon's reference counts.
	ClientName = "mcp"
)

// Daemon is the subset of the IPC client the tools use.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	Compose() (*ipc.ComposeData, error)
	InvalidateScreen() error
	InvalidateRect(r region.Rect) error
	SetBackground(color string) error
	SetWallpaper(path, mode string) error
	Screenshot(screen int, path, cursorPath string) (*ipc.ScreenshotData, error)
	ScreenNumbers(enable bool) (int, error)
	DisplayLink(enable bool) (int, error)
	WindowGeometry(id uint32, show bool) error
}

var _ Daemon = (*ipc.Client)(nil)

// Server exposes compositor diagnostics as MCP tools. All state lives in
// the daemon; the server only translates tool calls into IPC requests.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
	tempDir   string
}

// NewServer creates a new MCP server talking to the daemon over IPC.
func NewServer(daemon Daemon, logger *slog.Logger) *Server {
	if daemon == nil {
		client := ipc.NewClient()
		client.Name = ClientName
		daemon = client
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		daemon: daemon,
		logger: logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the compositor state: screens and their render state, damage, occlusion staleness, overlays, cursor, wallpaper and cumulative compose statistics.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "compose",
		Description: "Run one compose pass immediately and report whether anything was transmitted to the display.",
	}, s.handleCompose)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "invalidate",
		Description: "Mark a rect (or the whole desktop) as damaged so the next compose pass repaints it.",
	}, s.handleInvalidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_background",
		Description: "Set the colour painted where no window or wallpaper covers the desktop.",
	}, s.handleSetBackground)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_wallpaper",
		Description: "Load a wallpaper image. Fails, keeping the previous wallpaper, when the file cannot be decoded.",
	}, s.handleSetWallpaper)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "screenshot",
		Description: "Capture what a screen currently shows (front buffer, including the pointer) to a PNG file.",
	}, s.handleScreenshot)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "screen_numbers",
		Description: "Acquire or release a reference on the per-screen number badges. Badges show while any reference is held.",
	}, s.handleScreenNumbers)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "display_link",
		Description: "Acquire or release a frame-tick subscription. Only releases what this session acquired.",
	}, s.handleDisplayLink)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_geometry",
		Description: "Show a badge with a window's position and size, or hide it.",
	}, s.handleWindowGeometry)
}
