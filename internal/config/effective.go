package config

import (
	"fmt"
	"slices"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// set copies *p into dst when p is non-nil.
func set[T any](dst *T, p *T) {
	if p != nil {
		*dst = *p
	}
}

// BuildEffectiveConfig applies raw on top of the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	set(&cfg.Backend, raw.Backend)
	set(&cfg.Display, raw.Display)
	set(&cfg.XAuthority, raw.XAuthority)
	set(&cfg.ReconcileIntervalMs, raw.ReconcileIntervalMs)

	if r := raw.Compositor; r != nil {
		set(&cfg.Compositor.RefreshHz, r.RefreshHz)
		set(&cfg.Compositor.ImmediateDelayMs, r.ImmediateDelayMs)
		set(&cfg.Compositor.FlashFlush, r.FlashFlush)
		set(&cfg.Compositor.DebugInvariants, r.DebugInvariants)
		set(&cfg.Compositor.MaxBufferPixels, r.MaxBufferPixels)
		set(&cfg.Compositor.CaptureContent, r.CaptureContent)
	}
	if r := raw.Background; r != nil {
		set(&cfg.Background.Color, r.Color)
		set(&cfg.Background.Wallpaper, r.Wallpaper)
		set(&cfg.Background.Mode, r.Mode)
	}
	if r := raw.Cursor; r != nil {
		set(&cfg.Cursor.Image, r.Image)
		set(&cfg.Cursor.Frames, r.Frames)
		set(&cfg.Cursor.FrameMs, r.FrameMs)
		set(&cfg.Cursor.HotspotX, r.HotspotX)
		set(&cfg.Cursor.HotspotY, r.HotspotY)
	}
	if r := raw.Theme; r != nil {
		set(&cfg.Theme.Font, r.Font)
		set(&cfg.Theme.FontSize, r.FontSize)
		set(&cfg.Theme.BadgeBackground, r.BadgeBackground)
		set(&cfg.Theme.BadgeForeground, r.BadgeForeground)
		set(&cfg.Theme.WindowFace, r.WindowFace)
	}
	if r := raw.Headless; r != nil && r.Screens != nil {
		cfg.Headless.Screens = slices.Clone(r.Screens)
		for i := range cfg.Headless.Screens {
			if cfg.Headless.Screens[i].Name == "" {
				cfg.Headless.Screens[i].Name = fmt.Sprintf("headless-%d", i)
			}
		}
	}
	if r := raw.Hotkeys; r != nil {
		set(&cfg.Hotkeys.ToggleScreenNumbers, r.ToggleScreenNumbers)
		set(&cfg.Hotkeys.Repaint, r.Repaint)
	}
	if r := raw.Logging; r != nil {
		set(&cfg.Logging.Level, r.Level)
		set(&cfg.Logging.File, r.File)
		set(&cfg.Logging.MaxSizeMB, r.MaxSizeMB)
		set(&cfg.Logging.MaxFiles, r.MaxFiles)
	}

	if cfg.Background.Wallpaper != "" {
		path, err := expandHome(cfg.Background.Wallpaper)
		if err != nil {
			return nil, &ValidationError{Path: "background.wallpaper", Err: err}
		}
		cfg.Background.Wallpaper = path
	}
	if cfg.Cursor.Image != "" {
		path, err := expandHome(cfg.Cursor.Image)
		if err != nil {
			return nil, &ValidationError{Path: "cursor.image", Err: err}
		}
		cfg.Cursor.Image = path
	}
	return cfg, nil
}
