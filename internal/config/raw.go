package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// The Raw* types mirror the file layout with pointer fields, so a later file
// only overrides the keys it actually sets.

type RawCompositorConfig struct {
	RefreshHz        *int  `yaml:"refresh_hz"`
	ImmediateDelayMs *int  `yaml:"immediate_delay_ms"`
	FlashFlush       *bool `yaml:"flash_flush"`
	DebugInvariants  *bool `yaml:"debug_invariants"`
	MaxBufferPixels  *int  `yaml:"max_buffer_pixels"`
	CaptureContent   *bool `yaml:"capture_content"`
}

type RawBackgroundConfig struct {
	Color     *string `yaml:"color"`
	Wallpaper *string `yaml:"wallpaper"`
	Mode      *string `yaml:"mode"`
}

type RawCursorConfig struct {
	Image    *string `yaml:"image"`
	Frames   *int    `yaml:"frames"`
	FrameMs  *int    `yaml:"frame_ms"`
	HotspotX *int    `yaml:"hotspot_x"`
	HotspotY *int    `yaml:"hotspot_y"`
}

type RawThemeConfig struct {
	Font            *string  `yaml:"font"`
	FontSize        *float64 `yaml:"font_size"`
	BadgeBackground *string  `yaml:"badge_background"`
	BadgeForeground *string  `yaml:"badge_foreground"`
	WindowFace      *string  `yaml:"window_face"`
}

type RawHeadlessConfig struct {
	// Screens replaces the whole list when present.
	Screens []ScreenConfig `yaml:"screens"`
}

type RawHotkeyConfig struct {
	ToggleScreenNumbers *string `yaml:"toggle_screen_numbers"`
	Repaint             *string `yaml:"repaint"`
}

type RawLoggingConfig struct {
	Level     *string `yaml:"level"`
	File      *string `yaml:"file"`
	MaxSizeMB *int    `yaml:"max_size_mb"`
	MaxFiles  *int    `yaml:"max_files"`
}

type RawConfig struct {
	Include             IncludeList          `yaml:"include"`
	Backend             *string              `yaml:"backend"`
	Display             *string              `yaml:"display"`
	XAuthority          *string              `yaml:"xauthority"`
	ReconcileIntervalMs *int                 `yaml:"reconcile_interval_ms"`
	Compositor          *RawCompositorConfig `yaml:"compositor"`
	Background          *RawBackgroundConfig `yaml:"background"`
	Cursor              *RawCursorConfig     `yaml:"cursor"`
	Theme               *RawThemeConfig      `yaml:"theme"`
	Headless            *RawHeadlessConfig   `yaml:"headless"`
	Hotkeys             *RawHotkeyConfig     `yaml:"hotkeys"`
	Logging             *RawLoggingConfig    `yaml:"logging"`
}

// pick returns overlay when it is set.
func pick[T any](base, overlay *T) *T {
	if overlay != nil {
		return overlay
	}
	return base
}

// mergeSection merges two optional sections with fn, keeping whichever side
// is present when the other is not.
func mergeSection[T any](base, overlay *T, fn func(T, T) T) *T {
	switch {
	case overlay == nil:
		return base
	case base == nil:
		out := *overlay
		return &out
	}
	out := fn(*base, *overlay)
	return &out
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c
	out.Include = nil

	out.Backend = pick(c.Backend, overlay.Backend)
	out.Display = pick(c.Display, overlay.Display)
	out.XAuthority = pick(c.XAuthority, overlay.XAuthority)
	out.ReconcileIntervalMs = pick(c.ReconcileIntervalMs, overlay.ReconcileIntervalMs)

	out.Compositor = mergeSection(c.Compositor, overlay.Compositor, func(b, o RawCompositorConfig) RawCompositorConfig {
		return RawCompositorConfig{
			RefreshHz:        pick(b.RefreshHz, o.RefreshHz),
			ImmediateDelayMs: pick(b.ImmediateDelayMs, o.ImmediateDelayMs),
			FlashFlush:       pick(b.FlashFlush, o.FlashFlush),
			DebugInvariants:  pick(b.DebugInvariants, o.DebugInvariants),
			MaxBufferPixels:  pick(b.MaxBufferPixels, o.MaxBufferPixels),
			CaptureContent:   pick(b.CaptureContent, o.CaptureContent),
		}
	})
	out.Background = mergeSection(c.Background, overlay.Background, func(b, o RawBackgroundConfig) RawBackgroundConfig {
		return RawBackgroundConfig{
			Color:     pick(b.Color, o.Color),
			Wallpaper: pick(b.Wallpaper, o.Wallpaper),
			Mode:      pick(b.Mode, o.Mode),
		}
	})
	out.Cursor = mergeSection(c.Cursor, overlay.Cursor, func(b, o RawCursorConfig) RawCursorConfig {
		return RawCursorConfig{
			Image:    pick(b.Image, o.Image),
			Frames:   pick(b.Frames, o.Frames),
			FrameMs:  pick(b.FrameMs, o.FrameMs),
			HotspotX: pick(b.HotspotX, o.HotspotX),
			HotspotY: pick(b.HotspotY, o.HotspotY),
		}
	})
	out.Theme = mergeSection(c.Theme, overlay.Theme, func(b, o RawThemeConfig) RawThemeConfig {
		return RawThemeConfig{
			Font:            pick(b.Font, o.Font),
			FontSize:        pick(b.FontSize, o.FontSize),
			BadgeBackground: pick(b.BadgeBackground, o.BadgeBackground),
			BadgeForeground: pick(b.BadgeForeground, o.BadgeForeground),
			WindowFace:      pick(b.WindowFace, o.WindowFace),
		}
	})
	out.Headless = mergeSection(c.Headless, overlay.Headless, func(b, o RawHeadlessConfig) RawHeadlessConfig {
		if o.Screens != nil {
			return o
		}
		return b
	})
	out.Hotkeys = mergeSection(c.Hotkeys, overlay.Hotkeys, func(b, o RawHotkeyConfig) RawHotkeyConfig {
		return RawHotkeyConfig{
			ToggleScreenNumbers: pick(b.ToggleScreenNumbers, o.ToggleScreenNumbers),
			Repaint:             pick(b.Repaint, o.Repaint),
		}
	})
	out.Logging = mergeSection(c.Logging, overlay.Logging, func(b, o RawLoggingConfig) RawLoggingConfig {
		return RawLoggingConfig{
			Level:     pick(b.Level, o.Level),
			File:      pick(b.File, o.File),
			MaxSizeMB: pick(b.MaxSizeMB, o.MaxSizeMB),
			MaxFiles:  pick(b.MaxFiles, o.MaxFiles),
		}
	})
	return out
}
