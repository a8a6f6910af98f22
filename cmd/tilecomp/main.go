package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/config"
	"github.com/1broseidon/tilecomp/internal/daemon"
	"github.com/1broseidon/tilecomp/internal/ipc"
	"github.com/1broseidon/tilecomp/internal/logging"
	"github.com/1broseidon/tilecomp/internal/tui"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(args))
	case "status":
		os.Exit(runStatus(args))
	case "compose":
		os.Exit(runCompose(args))
	case "invalidate":
		os.Exit(runInvalidate(args))
	case "background":
		os.Exit(runBackground(args))
	case "wallpaper":
		os.Exit(runWallpaper(args))
	case "wallpaper-mode":
		os.Exit(runWallpaperMode(args))
	case "screenshot":
		os.Exit(runScreenshot(args))
	case "screen-numbers":
		os.Exit(runToggle("screen-numbers", args, (*ipc.Client).ScreenNumbers))
	case "display-link":
		os.Exit(runToggle("display-link", args, (*ipc.Client).DisplayLink))
	case "cursor":
		os.Exit(runCursor(args))
	case "window":
		os.Exit(runWindow(args))
	case "drag":
		os.Exit(runDrag(args))
	case "geometry":
		os.Exit(runGeometry(args))
	case "config":
		os.Exit(runConfig(args))
	case "tui":
		os.Exit(runTUI(args))
	case "mcp":
		os.Exit(runMCP(args))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tilecomp <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the compositor daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon and compositor status")
	fmt.Fprintln(w, "  compose             Run a compose pass now")
	fmt.Fprintln(w, "  invalidate          Damage the desktop, a rect, the windows or the cursor")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  background          Set the desktop colour")
	fmt.Fprintln(w, "  wallpaper           Load or clear the wallpaper")
	fmt.Fprintln(w, "  wallpaper-mode      Select tile, center or stretch")
	fmt.Fprintln(w, "  screenshot          Write a screen's front buffer as PNG")
	fmt.Fprintln(w, "  screen-numbers      Hold or release the screen-number badges")
	fmt.Fprintln(w, "  display-link        Hold or release a display-link subscription")
	fmt.Fprintln(w, "  cursor              Move the pointer")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  window put          Insert or update a window (headless backend)")
	fmt.Fprintln(w, "  window remove       Remove a window")
	fmt.Fprintln(w, "  window raise        Raise a window to the top")
	fmt.Fprintln(w, "  drag begin|end      Show or hide the drag preview")
	fmt.Fprintln(w, "  geometry            Show or hide a window's geometry badge")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open the status dashboard")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'tilecomp <command> --help' for command-specific options.")
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/tilecomp/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tilecomp daemon [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the compositor in the foreground. SIGHUP reloads the config.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := res.Config

	logger, closer, err := logging.New(cfg.GetLoggingConfig(), os.Stderr)
	if err != nil {
		log.Fatalf("Failed to open log: %v", err)
	}
	defer closer.Close()

	log.Printf("Configuration loaded (backend: %s, refresh: %dHz)", cfg.Backend, cfg.Compositor.RefreshHz)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = daemon.Run(ctx, daemon.Options{
		Config:     cfg,
		ConfigPath: *path,
		Logger:     logger,
	})
	switch {
	case err == nil:
		log.Println("tilecomp daemon stopped")
		return 0
	case errors.Is(err, daemon.ErrAlreadyRunning):
		fmt.Fprintln(os.Stderr, err)
		return 1
	case errors.Is(err, compositor.ErrAllocation):
		log.Fatalf("Screen buffers could not be allocated: %v", err)
	default:
		log.Fatalf("Daemon failed: %v", err)
	}
	return 1
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asYAML := fs.Bool("yaml", false, "Print the full status as YAML")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tilecomp status [--yaml]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asYAML {
		out, err := yaml.Marshal(status)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(out))
		return 0
	}

	c := status.Compositor
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("backend:        %s\n", status.Backend)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	fmt.Printf("windows:        %d (%d visible)\n", status.Windows, c.VisibleWindows)
	fmt.Printf("frame:          %d\n", c.Frame)
	fmt.Printf("background:     %s\n", c.Background)
	if c.WallpaperPath != "" {
		fmt.Printf("wallpaper:      %s (%s)\n", c.WallpaperPath, c.WallpaperMode)
	}
	fmt.Printf("display_links:  %d\n", c.DisplayLinks)
	fmt.Printf("screen_numbers: %d\n", c.ScreenNumbers)
	for _, s := range c.Screens {
		b := s.Bounds
		fmt.Printf("screen %d:       %s %dx%d+%d+%d %s\n", s.ID, s.Name, b.Width, b.Height, b.X, b.Y, s.State)
	}
	if c.LastError != "" {
		fmt.Printf("last_error:     %s\n", c.LastError)
	}
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  tilecomp config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  tilecomp config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  tilecomp config explain [--path PATH] <yaml.path>")
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/tilecomp/config.yaml)")

	switch args[0] {
	case "validate":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		_ = fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	default:
		return string(src.Kind)
	}
}

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/tilecomp/config.yaml)")

	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: tilecomp tui [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Status dashboard and settings editor. Settings can be edited")
		fmt.Fprintln(os.Stderr, "and saved while the daemon is not running.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  1-3, tab  Switch tabs")
		fmt.Fprintln(os.Stderr, "  n         Toggle screen numbers (status tab)")
		fmt.Fprintln(os.Stderr, "  r         Repaint the desktop (status tab)")
		fmt.Fprintln(os.Stderr, "  c         Compose now (status tab)")
		fmt.Fprintln(os.Stderr, "  e         Edit settings (settings tab)")
		fmt.Fprintln(os.Stderr, "  a, x, s   Add, remove, toggle native swap (screens tab)")
		fmt.Fprintln(os.Stderr, "  Ctrl+S    Save config and reload the daemon")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C Quit")
		return 0
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := tui.Run(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
