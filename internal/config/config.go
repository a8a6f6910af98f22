package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"gopkg.in/yaml.v3"
)

const (
	BackendX11      = "x11"
	BackendHeadless = "headless"
)

// CompositorConfig tunes the compose loop.
type CompositorConfig struct {
	RefreshHz        int  `yaml:"refresh_hz"`
	ImmediateDelayMs int  `yaml:"immediate_delay_ms"`
	FlashFlush       bool `yaml:"flash_flush"`
	DebugInvariants  bool `yaml:"debug_invariants"`
	MaxBufferPixels  int  `yaml:"max_buffer_pixels"`
	// CaptureContent mirrors client window pixels instead of flat faces (X11 only).
	CaptureContent bool `yaml:"capture_content"`
}

// BackgroundConfig is what is painted where no window covers the desktop.
type BackgroundConfig struct {
	Color     string `yaml:"color"`
	Wallpaper string `yaml:"wallpaper,omitempty"`
	Mode      string `yaml:"mode"`
}

// CursorConfig selects the pointer sprite. An empty image uses the built-in arrow.
type CursorConfig struct {
	Image    string `yaml:"image,omitempty"`
	Frames   int    `yaml:"frames"`
	FrameMs  int    `yaml:"frame_ms"`
	HotspotX int    `yaml:"hotspot_x"`
	HotspotY int    `yaml:"hotspot_y"`
}

// ThemeConfig styles overlay badges and content-less windows.
type ThemeConfig struct {
	Font            string  `yaml:"font,omitempty"`
	FontSize        float64 `yaml:"font_size"`
	BadgeBackground string  `yaml:"badge_background"`
	BadgeForeground string  `yaml:"badge_foreground"`
	WindowFace      string  `yaml:"window_face"`
}

// ScreenConfig describes one screen of the headless backend.
type ScreenConfig struct {
	Name       string `yaml:"name"`
	X          int    `yaml:"x"`
	Y          int    `yaml:"y"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	NativeSwap bool   `yaml:"native_swap,omitempty"`
}

type HeadlessConfig struct {
	Screens []ScreenConfig `yaml:"screens"`
}

// HotkeyConfig binds X11 key chords, e.g. "Mod4-Mod1-n".
type HotkeyConfig struct {
	ToggleScreenNumbers string `yaml:"toggle_screen_numbers"`
	Repaint             string `yaml:"repaint"`
}

// LoggingConfig configures the daemon log.
type LoggingConfig struct {
	// Level controls logging verbosity: debug, info, warn, error
	Level string `yaml:"level,omitempty"`
	// File, when set, receives the log instead of stderr.
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxFiles is the number of rotated files to keep (default: 3)
	MaxFiles int `yaml:"max_files,omitempty"`
}

// Config holds the application configuration.
type Config struct {
	Backend             string           `yaml:"backend"`
	Display             string           `yaml:"display,omitempty"`
	XAuthority          string           `yaml:"xauthority,omitempty"`
	ReconcileIntervalMs int              `yaml:"reconcile_interval_ms"`
	Compositor          CompositorConfig `yaml:"compositor"`
	Background          BackgroundConfig `yaml:"background"`
	Cursor              CursorConfig     `yaml:"cursor"`
	Theme               ThemeConfig      `yaml:"theme"`
	Headless            HeadlessConfig   `yaml:"headless"`
	Hotkeys             HotkeyConfig     `yaml:"hotkeys"`
	Logging             LoggingConfig    `yaml:"logging,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:             BackendX11,
		ReconcileIntervalMs: 100,
		Compositor: CompositorConfig{
			RefreshHz:        60,
			ImmediateDelayMs: 4,
			MaxBufferPixels:  8192 * 8192,
		},
		Background: BackgroundConfig{
			Color: "#408080",
			Mode:  "center",
		},
		Cursor: CursorConfig{
			Frames:  1,
			FrameMs: 100,
		},
		Theme: ThemeConfig{
			FontSize:        13,
			BadgeBackground: "#202028e0",
			BadgeForeground: "#f0f0f0",
			WindowFace:      "#d4d0c8",
		},
		Headless: HeadlessConfig{
			Screens: []ScreenConfig{{Name: "headless-0", Width: 1920, Height: 1080}},
		},
		Hotkeys: HotkeyConfig{
			ToggleScreenNumbers: "Mod4-Mod1-n",
			Repaint:             "Mod4-Mod1-r",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "tilecomp", "config.yaml"), nil
}

// RefreshInterval is the steady compose period.
func (c *Config) RefreshInterval() time.Duration {
	if c == nil || c.Compositor.RefreshHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.Compositor.RefreshHz)
}

func (c *Config) ImmediateDelay() time.Duration {
	return time.Duration(c.Compositor.ImmediateDelayMs) * time.Millisecond
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMs) * time.Millisecond
}

// GetLoggingConfig returns the logging configuration with defaults applied.
func (c *Config) GetLoggingConfig() LoggingConfig {
	if c == nil {
		return LoggingConfig{Level: "info"}
	}
	cfg := c.Logging
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 3
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	return cfg
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo validates the configuration and writes it to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendX11, BackendHeadless:
	default:
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: x11, headless")}
	}
	if c.ReconcileIntervalMs <= 0 {
		return &ValidationError{Path: "reconcile_interval_ms", Err: fmt.Errorf("reconcile_interval_ms must be > 0")}
	}

	if c.Compositor.RefreshHz < 1 || c.Compositor.RefreshHz > 240 {
		return &ValidationError{Path: "compositor.refresh_hz", Err: fmt.Errorf("refresh_hz must be between 1 and 240")}
	}
	if c.Compositor.ImmediateDelayMs < 0 {
		return &ValidationError{Path: "compositor.immediate_delay_ms", Err: fmt.Errorf("immediate_delay_ms must be >= 0")}
	}
	if c.Compositor.MaxBufferPixels <= 0 {
		return &ValidationError{Path: "compositor.max_buffer_pixels", Err: fmt.Errorf("max_buffer_pixels must be > 0")}
	}

	if _, err := compositor.ParseColor(c.Background.Color); err != nil {
		return &ValidationError{Path: "background.color", Err: err}
	}
	if _, ok := compositor.ParseWallpaperMode(c.Background.Mode); !ok {
		return &ValidationError{Path: "background.mode", Err: fmt.Errorf("mode must be one of: tile, center, stretch")}
	}

	if c.Cursor.Frames < 1 {
		return &ValidationError{Path: "cursor.frames", Err: fmt.Errorf("frames must be >= 1")}
	}
	if c.Cursor.Frames > 1 && c.Cursor.FrameMs <= 0 {
		return &ValidationError{Path: "cursor.frame_ms", Err: fmt.Errorf("frame_ms must be > 0 for animated cursors")}
	}
	if c.Cursor.HotspotX < 0 || c.Cursor.HotspotY < 0 {
		return &ValidationError{Path: "cursor", Err: fmt.Errorf("hotspot must be >= 0")}
	}

	if c.Theme.FontSize <= 0 {
		return &ValidationError{Path: "theme.font_size", Err: fmt.Errorf("font_size must be > 0")}
	}
	colors := []struct{ path, value string }{
		{"theme.badge_background", c.Theme.BadgeBackground},
		{"theme.badge_foreground", c.Theme.BadgeForeground},
		{"theme.window_face", c.Theme.WindowFace},
	}
	for _, col := range colors {
		if _, err := compositor.ParseColor(col.value); err != nil {
			return &ValidationError{Path: col.path, Err: err}
		}
	}

	if c.Backend == BackendHeadless && len(c.Headless.Screens) == 0 {
		return &ValidationError{Path: "headless.screens", Err: fmt.Errorf("headless backend needs at least one screen")}
	}
	for i, s := range c.Headless.Screens {
		if s.Width <= 0 || s.Height <= 0 {
			return &ValidationError{Path: fmt.Sprintf("headless.screens.%d", i), Err: fmt.Errorf("width and height must be > 0")}
		}
		for j := 0; j < i; j++ {
			o := c.Headless.Screens[j]
			if s.X < o.X+o.Width && o.X < s.X+s.Width && s.Y < o.Y+o.Height && o.Y < s.Y+s.Height {
				return &ValidationError{Path: fmt.Sprintf("headless.screens.%d", i), Err: fmt.Errorf("overlaps screen %d", j)}
			}
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("level must be one of: debug, info, warn, error")}
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging", Err: fmt.Errorf("max_size_mb and max_files must be >= 0")}
	}

	if warnings := c.validationWarnings(); len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
	}
	return nil
}

func (c *Config) validationWarnings() []string {
	var warnings []string
	if c.Backend == BackendX11 && strings.TrimSpace(c.Hotkeys.ToggleScreenNumbers) == "" && strings.TrimSpace(c.Hotkeys.Repaint) == "" {
		warnings = append(warnings, "no hotkeys configured")
	}
	if c.Cursor.Image == "" && c.Cursor.Frames > 1 {
		warnings = append(warnings, "cursor.frames is ignored without cursor.image")
	}
	return warnings
}
