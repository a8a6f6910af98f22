package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/config"
)

// SettingsTab views and edits the hot-reloadable settings.
type SettingsTab struct {
	cfg *config.Config

	width  int
	height int

	editing bool
	form    *huh.Form

	// Form-bound values (strings for huh, converted on submit)
	fBackground     string
	fWallpaper      string
	fMode           string
	fRefreshHz      string
	fImmediateDelay string
	fCursorImage    string
	fFontSize       string
	fBadgeBG        string
	fBadgeFG        string
	fWindowFace     string
	fLogLevel       string
}

// NewSettingsTab creates a SettingsTab over cfg.
func NewSettingsTab(cfg *config.Config) SettingsTab {
	return SettingsTab{cfg: cfg}
}

// Update implements tea.Model.
func (g SettingsTab) Update(msg tea.Msg) (SettingsTab, tea.Cmd) {
	if g.editing {
		return g.updateEditing(msg)
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "e" {
			g.startEditing()
			return g, g.form.Init()
		}
	case tea.WindowSizeMsg:
		g.width = msg.Width
		g.height = msg.Height
	}
	return g, nil
}

func (g SettingsTab) updateEditing(msg tea.Msg) (SettingsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			g.editing = false
			g.form = nil
			return g, nil
		}
	case tea.WindowSizeMsg:
		g.width = msg.Width
		g.height = msg.Height
	}

	form, cmd := g.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		g.form = f
	}

	if g.form.State == huh.StateCompleted {
		g.applyForm()
		g.editing = false
		g.form = nil
		return g, nil
	}
	return g, cmd
}

func (g *SettingsTab) loadFields() {
	cfg := g.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	g.fBackground = cfg.Background.Color
	g.fWallpaper = cfg.Background.Wallpaper
	g.fMode = cfg.Background.Mode
	g.fRefreshHz = strconv.Itoa(cfg.Compositor.RefreshHz)
	g.fImmediateDelay = strconv.Itoa(cfg.Compositor.ImmediateDelayMs)
	g.fCursorImage = cfg.Cursor.Image
	g.fFontSize = strconv.FormatFloat(cfg.Theme.FontSize, 'f', -1, 64)
	g.fBadgeBG = cfg.Theme.BadgeBackground
	g.fBadgeFG = cfg.Theme.BadgeForeground
	g.fWindowFace = cfg.Theme.WindowFace
	g.fLogLevel = displayOrDefault(cfg.Logging.Level, "info")
}

func (g *SettingsTab) startEditing() {
	g.loadFields()

	modeOpts := []huh.Option[string]{
		huh.NewOption("center", "center"),
		huh.NewOption("tile", "tile"),
		huh.NewOption("stretch", "stretch"),
	}
	levelOpts := []huh.Option[string]{
		huh.NewOption("debug", "debug"),
		huh.NewOption("info", "info"),
		huh.NewOption("warn", "warn"),
		huh.NewOption("error", "error"),
	}

	w := g.width - 4
	if w < 40 {
		w = 40
	}

	g.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("background").
				Title("Background Color").
				Description("#rrggbb painted where nothing else covers").
				Validate(validateColor).
				Value(&g.fBackground),
			huh.NewInput().
				Key("wallpaper").
				Title("Wallpaper").
				Description("Image path, empty for none").
				Value(&g.fWallpaper),
			huh.NewSelect[string]().
				Key("mode").
				Title("Wallpaper Mode").
				Options(modeOpts...).
				Value(&g.fMode),
			huh.NewInput().
				Key("cursor_image").
				Title("Cursor Image").
				Description("Sprite strip path, empty for the built-in arrow").
				Value(&g.fCursorImage),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("refresh_hz").
				Title("Refresh Rate (Hz)").
				Description("Applied on daemon restart").
				Validate(validateIntRange(1, 240)).
				Value(&g.fRefreshHz),
			huh.NewInput().
				Key("immediate_delay_ms").
				Title("Immediate Compose Delay (ms)").
				Description("Applied on daemon restart").
				Validate(validateIntRange(0, 1000)).
				Value(&g.fImmediateDelay),
			huh.NewSelect[string]().
				Key("log_level").
				Title("Log Level").
				Options(levelOpts...).
				Value(&g.fLogLevel),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("font_size").
				Title("Badge Font Size").
				Validate(validatePositiveFloat).
				Value(&g.fFontSize),
			huh.NewInput().
				Key("badge_background").
				Title("Badge Background").
				Validate(validateColor).
				Value(&g.fBadgeBG),
			huh.NewInput().
				Key("badge_foreground").
				Title("Badge Foreground").
				Validate(validateColor).
				Value(&g.fBadgeFG),
			huh.NewInput().
				Key("window_face").
				Title("Window Face").
				Description("Fill for windows without captured content").
				Validate(validateColor).
				Value(&g.fWindowFace),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)

	g.editing = true
}

// applyForm copies the bound values into the config. Invalid numbers keep
// the previous value.
func (g *SettingsTab) applyForm() {
	if g.cfg == nil {
		return
	}
	cfg := g.cfg

	if validateColor(g.fBackground) == nil {
		cfg.Background.Color = strings.TrimSpace(g.fBackground)
	}
	cfg.Background.Wallpaper = strings.TrimSpace(g.fWallpaper)
	if g.fMode != "" {
		cfg.Background.Mode = g.fMode
	}
	cfg.Cursor.Image = strings.TrimSpace(g.fCursorImage)

	if v, err := strconv.Atoi(g.fRefreshHz); err == nil && v >= 1 && v <= 240 {
		cfg.Compositor.RefreshHz = v
	}
	if v, err := strconv.Atoi(g.fImmediateDelay); err == nil && v >= 0 {
		cfg.Compositor.ImmediateDelayMs = v
	}
	if g.fLogLevel != "" {
		cfg.Logging.Level = g.fLogLevel
	}

	if v, err := strconv.ParseFloat(g.fFontSize, 64); err == nil && v > 0 {
		cfg.Theme.FontSize = v
	}
	for _, c := range []struct {
		dst *string
		v   string
	}{
		{&cfg.Theme.BadgeBackground, g.fBadgeBG},
		{&cfg.Theme.BadgeForeground, g.fBadgeFG},
		{&cfg.Theme.WindowFace, g.fWindowFace},
	} {
		if validateColor(c.v) == nil {
			*c.dst = strings.TrimSpace(c.v)
		}
	}
}

func validateColor(s string) error {
	_, err := compositor.ParseColor(strings.TrimSpace(s))
	return err
}

func validateIntRange(lo, hi int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		if v < lo || v > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func validatePositiveFloat(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

// View implements tea.Model.
func (g SettingsTab) View() string {
	if g.editing && g.form != nil {
		return g.viewEditing()
	}
	return g.viewDisplay()
}

func (g SettingsTab) viewDisplay() string {
	cfg := g.cfg
	if cfg == nil {
		return renderCentered("No config loaded", g.width, g.height)
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Width(22).
		Align(lipgloss.Right).
		PaddingRight(2)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Bold(true)

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	lines := []string{
		"",
		row("Backend", cfg.Backend),
		row("Background", cfg.Background.Color),
		row("Wallpaper", displayOrDefault(cfg.Background.Wallpaper, "(none)")),
		row("Wallpaper Mode", cfg.Background.Mode),
		row("Cursor", displayOrDefault(cfg.Cursor.Image, "(built-in arrow)")),
		"",
		row("Refresh Rate", fmt.Sprintf("%d Hz", cfg.Compositor.RefreshHz)),
		row("Immediate Delay", fmt.Sprintf("%d ms", cfg.Compositor.ImmediateDelayMs)),
		row("Flash Flush", yesNo(cfg.Compositor.FlashFlush)),
		"",
		row("Badge Font Size", strconv.FormatFloat(cfg.Theme.FontSize, 'f', -1, 64)),
		row("Badge Colors", cfg.Theme.BadgeBackground+" / "+cfg.Theme.BadgeForeground),
		row("Window Face", cfg.Theme.WindowFace),
		row("Log Level", displayOrDefault(cfg.Logging.Level, "info")),
		"",
		dimStyle.Render("  Press 'e' to edit settings"),
	}

	return lipgloss.NewStyle().
		Width(g.width).
		Height(g.height).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

func (g SettingsTab) viewEditing() string {
	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Render("Editing Settings") +
		dimStyle.Render("  (esc to cancel)")

	return lipgloss.NewStyle().
		Width(g.width).
		Height(g.height).
		Padding(1, 2).
		Render(header + "\n\n" + g.form.View())
}
