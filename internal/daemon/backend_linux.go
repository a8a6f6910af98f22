//go:build linux

package daemon

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/config"
	"github.com/1broseidon/tilecomp/internal/hotkeys"
	"github.com/1broseidon/tilecomp/internal/platform"
)

func openX11(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	if cfg.XAuthority != "" {
		os.Setenv("XAUTHORITY", cfg.XAuthority)
	}

	lb, err := platform.NewLinuxBackendFromDisplay(cfg.Display, logger.With("component", "x11"))
	if err != nil {
		return nil, err
	}
	lb.CaptureContent = cfg.Compositor.CaptureContent

	conn := lb.Connection()
	attach := func(sched *compositor.Scheduler) error {
		if err := conn.OnScreenChange(sched.ResolutionChanged); err != nil {
			return fmt.Errorf("failed to watch screen changes: %w", err)
		}
		if err := conn.OnPointerMotion(func(x, y int) {
			sched.Do(func(c *compositor.Compositor) { c.MoveCursor(x, y) })
		}); err != nil {
			return fmt.Errorf("failed to watch pointer: %w", err)
		}
		if x, y, err := conn.Pointer(); err == nil {
			sched.Do(func(c *compositor.Compositor) { c.MoveCursor(x, y) })
		}

		handler := hotkeys.NewHandler(lb.XUtil(), lb.RootWindow(), sched, logger.With("component", "hotkeys"))
		if seq := cfg.Hotkeys.ToggleScreenNumbers; seq != "" {
			if err := handler.RegisterScreenNumbers(seq); err != nil {
				logger.Warn("hotkey not registered", "hotkey", seq, "error", err)
			}
		}
		if seq := cfg.Hotkeys.Repaint; seq != "" {
			if err := handler.RegisterRepaint(seq); err != nil {
				logger.Warn("hotkey not registered", "hotkey", seq, "error", err)
			}
		}
		return nil
	}

	return &backend{
		display: lb,
		lister:  lb,
		attach:  attach,
		loop:    lb.EventLoop,
		quit:    conn.Quit,
		close:   lb.Disconnect,
	}, nil
}
