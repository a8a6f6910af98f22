package daemon

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/config"
	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
)

// Synchronizer pushes configuration changes into the running compositor.
// Only the parts that differ from the last applied config are touched, so a
// reload that changes the theme does not reload the wallpaper.
type Synchronizer struct {
	sched  *compositor.Scheduler
	logger *slog.Logger

	mu      sync.Mutex
	current *config.Config
}

// NewSynchronizer creates a synchronizer. initial is the config the
// compositor was built from.
func NewSynchronizer(sched *compositor.Scheduler, initial *config.Config, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		sched:   sched,
		logger:  logger,
		current: initial,
	}
}

// Current returns the last applied config.
func (s *Synchronizer) Current() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Apply brings the compositor in line with cfg. Assets (fonts, cursor
// images) are loaded on the calling goroutine; only the swap happens on the
// compositor loop.
func (s *Synchronizer) Apply(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current

	var (
		theme  *compositor.Theme
		cursor *compositor.Cursor
	)
	if prev == nil || prev.Theme != cfg.Theme {
		t, err := ThemeFromConfig(cfg.Theme)
		if err != nil {
			return err
		}
		theme = &t
	}
	if prev == nil || prev.Cursor != cfg.Cursor {
		c, err := CursorFromConfig(cfg.Cursor)
		if err != nil {
			return err
		}
		cursor = c
	}
	bg := cfg.Background
	bgChanged := prev == nil || prev.Background.Color != bg.Color
	modeChanged := prev == nil || prev.Background.Mode != bg.Mode
	wallpaperChanged := prev == nil || prev.Background.Wallpaper != bg.Wallpaper

	err := s.sched.Call(ctx, func(c *compositor.Compositor) error {
		if bgChanged && !c.SetBackgroundColor(bg.Color) {
			return fmt.Errorf("invalid background color %q", bg.Color)
		}
		if modeChanged && !c.SetWallpaperMode(bg.Mode) {
			return fmt.Errorf("invalid wallpaper mode %q", bg.Mode)
		}
		if wallpaperChanged {
			path := bg.Wallpaper
			c.SetWallpaper(path, func(ok bool) {
				if !ok {
					s.logger.Warn("wallpaper from config not applied", "path", path)
				}
			})
		}
		if theme != nil {
			c.InvalidateAfterThemeOrFontChange(*theme)
		}
		if cursor != nil {
			c.SetCursor(cursor)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if prev != nil && restartRequired(prev, cfg) {
		s.logger.Warn("some configuration changes take effect after a daemon restart")
	}
	s.current = cfg
	return nil
}

// restartRequired reports changes that are baked into the compositor,
// scheduler or backend at startup.
func restartRequired(prev, next *config.Config) bool {
	if prev.Backend != next.Backend || prev.Display != next.Display {
		return true
	}
	if prev.Compositor != next.Compositor || prev.Hotkeys != next.Hotkeys {
		return true
	}
	if prev.ReconcileIntervalMs != next.ReconcileIntervalMs {
		return true
	}
	if len(prev.Headless.Screens) != len(next.Headless.Screens) {
		return true
	}
	for i := range prev.Headless.Screens {
		if prev.Headless.Screens[i] != next.Headless.Screens[i] {
			return true
		}
	}
	return false
}

// ThemeFromConfig resolves colours and loads the font.
func ThemeFromConfig(tc config.ThemeConfig) (compositor.Theme, error) {
	theme := compositor.DefaultTheme()
	theme.FontPath = tc.Font
	if tc.FontSize > 0 {
		theme.FontSize = tc.FontSize
	}
	for _, c := range []struct {
		name string
		src  string
		dst  *color.RGBA
	}{
		{"badge_background", tc.BadgeBackground, &theme.BadgeBackground},
		{"badge_foreground", tc.BadgeForeground, &theme.BadgeForeground},
		{"window_face", tc.WindowFace, &theme.WindowFace},
	} {
		if c.src == "" {
			continue
		}
		col, err := compositor.ParseColor(c.src)
		if err != nil {
			return theme, fmt.Errorf("theme.%s: %w", c.name, err)
		}
		*c.dst = col
	}
	return theme.LoadFont()
}

// CursorFromConfig loads the configured sprite, or the built-in arrow.
func CursorFromConfig(cc config.CursorConfig) (*compositor.Cursor, error) {
	if cc.Image == "" {
		return compositor.DefaultCursor(), nil
	}
	return compositor.LoadCursor(
		cc.Image,
		cc.Frames,
		image.Pt(cc.HotspotX, cc.HotspotY),
		time.Duration(cc.FrameMs)*time.Millisecond,
	)
}

// ScreensFromConfig lays out the headless screens.
func ScreensFromConfig(hc config.HeadlessConfig) []platform.Screen {
	screens := make([]platform.Screen, 0, len(hc.Screens))
	for i, sc := range hc.Screens {
		screens = append(screens, platform.Screen{
			ID:           i,
			Name:         sc.Name,
			Bounds:       region.Rect{X: sc.X, Y: sc.Y, Width: sc.Width, Height: sc.Height},
			CanSetBuffer: sc.NativeSwap,
		})
	}
	return screens
}
