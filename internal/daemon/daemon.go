// Package daemon wires the compositor to its collaborators: the display
// backend, the IPC server, the config watcher and the window reconciler.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/config"
	"github.com/1broseidon/tilecomp/internal/ipc"
	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/runtimepath"
)

// ErrAlreadyRunning is returned when the pid file names a live process.
var ErrAlreadyRunning = errors.New("daemon already running")

// Options configures Run.
type Options struct {
	Config *config.Config
	// ConfigPath is watched for changes and re-read on RELOAD and SIGHUP.
	// Defaults to config.DefaultConfigPath.
	ConfigPath string
	SocketPath string
	PIDPath    string
	Logger     *slog.Logger
}

// backend is an opened display backend.
type backend struct {
	display platform.Display
	// lister is nil when the window stack is driven over IPC.
	lister platform.WindowLister
	// attach hooks display events to the scheduler before it starts.
	attach func(sched *compositor.Scheduler) error
	loop   func()
	quit   func()
	close  func()
}

func openBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendHeadless:
		screens := ScreensFromConfig(cfg.Headless)
		logger.Info("using headless backend", "screens", len(screens))
		return &backend{display: platform.NewHeadless(screens...)}, nil
	case config.BackendX11, "":
		return openX11(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Run starts the compositor and serves until ctx is cancelled. It returns
// an error wrapping compositor.ErrAllocation when the screens can no longer
// be backed by buffers.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	configPath := opts.ConfigPath
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	pidPath := opts.PIDPath
	if pidPath == "" {
		p, err := runtimepath.PIDPath()
		if err != nil {
			return err
		}
		pidPath = p
	}
	if err := writePIDFile(pidPath); err != nil {
		return err
	}
	defer os.Remove(pidPath)

	be, err := openBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open display backend: %w", err)
	}
	if be.close != nil {
		defer be.close()
	}

	theme, err := ThemeFromConfig(cfg.Theme)
	if err != nil {
		logger.Warn("theme not fully applied, using fallbacks", "error", err)
	}
	cursor, err := CursorFromConfig(cfg.Cursor)
	if err != nil {
		logger.Warn("cursor image not loaded, using built-in arrow", "error", err)
		cursor = compositor.DefaultCursor()
	}

	stack := platform.NewStack()
	c, err := compositor.New(compositor.Options{
		Display:         be.display,
		Windows:         stack,
		Logger:          logger.With("component", "compositor"),
		BackgroundColor: cfg.Background.Color,
		WallpaperMode:   cfg.Background.Mode,
		Theme:           &theme,
		Cursor:          cursor,
		FlashFlush:      cfg.Compositor.FlashFlush,
		DebugInvariants: cfg.Compositor.DebugInvariants,
		MaxBufferPixels: cfg.Compositor.MaxBufferPixels,
	})
	if err != nil {
		return fmt.Errorf("failed to create compositor: %w", err)
	}
	stack.OnChange = c.WindowsChanged

	sched := compositor.NewScheduler(c, compositor.SchedulerConfig{
		Interval:       cfg.RefreshInterval(),
		ImmediateDelay: cfg.ImmediateDelay(),
		Logger:         logger.With("component", "scheduler"),
	})
	if cfg.Background.Wallpaper != "" {
		path := cfg.Background.Wallpaper
		sched.Do(func(c *compositor.Compositor) { c.SetWallpaper(path, nil) })
	}

	syncer := NewSynchronizer(sched, cfg, logger.With("component", "sync"))

	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()

	reload := func() error {
		res, err := config.LoadFromPath(configPath)
		if err != nil {
			return err
		}
		return syncer.Apply(workCtx, res.Config)
	}

	serverStack := stack
	if be.lister != nil {
		serverStack = nil
	}
	server, err := ipc.NewServer(ipc.ServerOptions{
		SocketPath: opts.SocketPath,
		Scheduler:  sched,
		Stack:      serverStack,
		Backend:    cfg.Backend,
		Logger:     logger.With("component", "ipc"),
		Reload:     reload,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	watcher := &config.Watcher{
		Path:   configPath,
		Logger: logger.With("component", "watcher"),
		OnChange: func(next *config.Config) {
			if err := syncer.Apply(workCtx, next); err != nil {
				logger.Warn("config change not applied", "error", err)
			}
		},
	}
	go func() {
		if err := watcher.Run(workCtx); err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	if be.lister != nil {
		reconciler := NewReconciler(ReconcilerConfig{
			Interval: cfg.ReconcileInterval(),
			Logger:   logger.With("component", "reconciler"),
		}, be.lister, stack, sched)
		go func() {
			reconciler.ReconcileNow(workCtx)
			reconciler.Run(workCtx)
		}()
	}

	if be.attach != nil {
		if err := be.attach(sched); err != nil {
			return err
		}
	}
	if be.loop != nil {
		go be.loop()
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	schedDone := make(chan error, 1)
	go func() { schedDone <- sched.Run(schedCtx) }()

	logger.Info("tilecomp daemon started", "backend", cfg.Backend, "socket", server.SocketPath())

	var runErr error
	schedRunning := true
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-sighup:
			logger.Info("received SIGHUP, reloading config")
			if err := reload(); err != nil {
				logger.Warn("config reload failed", "error", err)
			}
		case runErr = <-schedDone:
			schedRunning = false
			break loop
		}
	}

	logger.Info("shutting down tilecomp daemon")
	// Connections in flight still need the loop, so the server stops first.
	stopWork()
	server.Stop()
	if be.quit != nil {
		be.quit()
	}
	stopSched()
	if schedRunning {
		runErr = <-schedDone
	}
	return runErr
}

// writePIDFile records the daemon pid, refusing to start when another live
// daemon owns the file.
func writePIDFile(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && pid != os.Getpid() && processAlive(pid) {
			return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, path)
		}
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	return pid, nil
}
