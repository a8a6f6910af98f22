package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if got := cfg.RefreshInterval(); got != time.Second/60 {
		t.Fatalf("expected 60Hz interval, got %v", got)
	}
	if got := cfg.ImmediateDelay(); got != 4*time.Millisecond {
		t.Fatalf("expected 4ms immediate delay, got %v", got)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Background.Color != "#408080" {
		t.Fatalf("expected default background, got %q", res.Config.Background.Color)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no loaded files, got %v", res.Files)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Backend != BackendX11 {
		t.Fatalf("expected backend %q, got %q", BackendX11, res.Config.Backend)
	}
}

func TestLoadFromPath_AllSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
backend: headless
display: ":1"
reconcile_interval_ms: 250
compositor:
  refresh_hz: 30
  immediate_delay_ms: 2
  flash_flush: true
  debug_invariants: true
  max_buffer_pixels: 4000000
background:
  color: navy
  wallpaper: /tmp/wall.png
  mode: stretch
cursor:
  image: /tmp/busy.png
  frames: 4
  frame_ms: 50
  hotspot_x: 3
  hotspot_y: 5
theme:
  font_size: 16
  badge_background: "#000000c0"
  badge_foreground: white
  window_face: "#ccc"
headless:
  screens:
    - width: 800
      height: 600
    - name: right
      x: 800
      width: 1024
      height: 768
      native_swap: true
hotkeys:
  toggle_screen_numbers: Mod4-F1
  repaint: ""
logging:
  level: debug
  file: /tmp/tilecomp.log
  max_size_mb: 2
  max_files: 5
`)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config

	if cfg.Backend != BackendHeadless || cfg.Display != ":1" || cfg.ReconcileInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected top level: %#v", cfg)
	}
	if cfg.RefreshInterval() != time.Second/30 || !cfg.Compositor.FlashFlush || !cfg.Compositor.DebugInvariants {
		t.Fatalf("unexpected compositor section: %#v", cfg.Compositor)
	}
	if cfg.Background.Color != "navy" || cfg.Background.Mode != "stretch" || cfg.Background.Wallpaper != "/tmp/wall.png" {
		t.Fatalf("unexpected background section: %#v", cfg.Background)
	}
	if cfg.Cursor.Frames != 4 || cfg.Cursor.FrameMs != 50 || cfg.Cursor.HotspotX != 3 || cfg.Cursor.HotspotY != 5 {
		t.Fatalf("unexpected cursor section: %#v", cfg.Cursor)
	}
	if cfg.Theme.FontSize != 16 || cfg.Theme.BadgeForeground != "white" {
		t.Fatalf("unexpected theme section: %#v", cfg.Theme)
	}
	if got := len(cfg.Headless.Screens); got != 2 {
		t.Fatalf("expected 2 screens, got %d", got)
	}
	if cfg.Headless.Screens[0].Name != "headless-0" {
		t.Fatalf("expected generated screen name, got %q", cfg.Headless.Screens[0].Name)
	}
	if !cfg.Headless.Screens[1].NativeSwap || cfg.Headless.Screens[1].X != 800 {
		t.Fatalf("unexpected second screen: %#v", cfg.Headless.Screens[1])
	}
	if cfg.Hotkeys.ToggleScreenNumbers != "Mod4-F1" || cfg.Hotkeys.Repaint != "" {
		t.Fatalf("unexpected hotkeys: %#v", cfg.Hotkeys)
	}
	logging := cfg.GetLoggingConfig()
	if logging.Level != "debug" || logging.MaxSizeMB != 2 || logging.MaxFiles != 5 {
		t.Fatalf("unexpected logging: %#v", logging)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "compositor:\n  unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "background:\n  mode: unchecked\n")

	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "background.mode" {
		t.Fatalf("expected background.mode, got %q", verr.Path)
	}
	if verr.Source.Line != 2 {
		t.Fatalf("expected source line 2, got %#v", verr.Source)
	}
	if !strings.Contains(err.Error(), path+":2:") {
		t.Fatalf("expected file:line prefix, got %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"backend", func(c *Config) { c.Backend = "wayland" }, "backend"},
		{"refresh", func(c *Config) { c.Compositor.RefreshHz = 0 }, "compositor.refresh_hz"},
		{"color", func(c *Config) { c.Background.Color = "#12" }, "background.color"},
		{"badge", func(c *Config) { c.Theme.BadgeForeground = "nope" }, "theme.badge_foreground"},
		{"frames", func(c *Config) { c.Cursor.Frames = 0 }, "cursor.frames"},
		{"animated", func(c *Config) { c.Cursor.Frames = 2; c.Cursor.FrameMs = 0 }, "cursor.frame_ms"},
		{"no screens", func(c *Config) { c.Backend = BackendHeadless; c.Headless.Screens = nil }, "headless.screens"},
		{"overlap", func(c *Config) {
			c.Headless.Screens = []ScreenConfig{{Width: 100, Height: 100}, {X: 50, Width: 100, Height: 100}}
		}, "headless.screens.1"},
		{"level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tc.path {
				t.Fatalf("expected path %q, got %q (%v)", tc.path, verr.Path, err)
			}
		})
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	// config.d loaded first, in sorted order.
	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfig(t, filepath.Join(configD, "10-base.yaml"), "compositor:\n  refresh_hz: 30\n  flash_flush: true\n")
	writeConfig(t, filepath.Join(configD, "20-override.yaml"), "compositor:\n  refresh_hz: 45\n")

	// Main file overrides includes.
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, strings.Join([]string{
		"include:",
		"  - config.d",
		"compositor:",
		"  refresh_hz: 50",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Compositor.RefreshHz != 50 {
		t.Fatalf("expected refresh_hz 50, got %d", res.Config.Compositor.RefreshHz)
	}
	if !res.Config.Compositor.FlashFlush {
		t.Fatalf("expected flash_flush from include to survive")
	}
	if got := len(res.Files); got != 3 {
		t.Fatalf("expected 3 loaded files, got %v", res.Files)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
	if !strings.Contains(err.Error(), path+":") {
		t.Fatalf("expected error to include file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeConfig(t, a, "include: b.yaml\n")
	writeConfig(t, b, "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadFromPath_AssetPathsRelativeToSettingFile(t *testing.T) {
	dir := t.TempDir()
	themeDir := filepath.Join(dir, "theme")
	if err := os.MkdirAll(themeDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfig(t, filepath.Join(themeDir, "cursor.yaml"), "cursor:\n  image: busy.png\n")
	main := filepath.Join(dir, "config.yaml")
	writeConfig(t, main, "include: theme/cursor.yaml\nbackground:\n  wallpaper: walls/sea.png\n")

	res, err := LoadFromPath(main)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	realDir, _ := filepath.EvalSymlinks(dir)
	if got, want := res.Config.Background.Wallpaper, filepath.Join(realDir, "walls", "sea.png"); got != want {
		t.Fatalf("wallpaper = %q, want %q", got, want)
	}
	if got, want := res.Config.Cursor.Image, filepath.Join(realDir, "theme", "busy.png"); got != want {
		t.Fatalf("cursor image = %q, want %q", got, want)
	}
}

func TestExplain_FileAndDefaultSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "background:\n  color: red\nheadless:\n  screens:\n    - width: 640\n      height: 480\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	val, src, err := Explain(res, "background.color")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "red" {
		t.Fatalf("expected red, got %#v", val)
	}
	if src.Kind != SourceFile || src.Line != 2 {
		t.Fatalf("expected file source at line 2, got %#v", src)
	}

	val, src, err = Explain(res, "headless.screens.0.width")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != 640 {
		t.Fatalf("expected 640, got %#v", val)
	}
	if src.Kind != SourceFile {
		t.Fatalf("expected screens to come from the file, got %#v", src)
	}

	val, src, err = Explain(res, "compositor.refresh_hz")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != 60 || src.Kind != SourceDefault {
		t.Fatalf("expected default 60, got %#v from %#v", val, src)
	}

	if _, _, err := Explain(res, "compositor.nope"); err == nil {
		t.Fatalf("expected unknown path error")
	}
}

func TestSaveTo_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Background.Color = "#102030"
	cfg.Compositor.RefreshHz = 75
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load saved: %v", err)
	}
	if res.Config.Background.Color != "#102030" || res.Config.Compositor.RefreshHz != 75 {
		t.Fatalf("saved values lost: %#v", res.Config)
	}

	cfg.Background.Mode = "bogus"
	if err := cfg.SaveTo(path); err == nil {
		t.Fatalf("expected invalid config to be refused")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "background:\n  color: red\n")

	got := make(chan *Config, 4)
	w := &Watcher{
		Path:     path,
		Debounce: 10 * time.Millisecond,
		OnChange: func(cfg *Config) { got <- cfg },
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, "background:\n  color: blue\n")

	select {
	case cfg := <-got:
		if cfg.Background.Color != "blue" {
			t.Fatalf("expected blue, got %q", cfg.Background.Color)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload observed")
	}
}
