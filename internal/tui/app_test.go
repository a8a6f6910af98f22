package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/config"
	"github.com/1broseidon/tilecomp/internal/ipc"
	"github.com/1broseidon/tilecomp/internal/region"
)

type fakeDaemon struct {
	status  *ipc.StatusData
	err     error
	reloads int
	numbers []bool
	flushed bool
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) { return f.status, f.err }
func (f *fakeDaemon) Reload() error                       { f.reloads++; return f.err }
func (f *fakeDaemon) Compose() (*ipc.ComposeData, error)  { return &ipc.ComposeData{Frame: 7, Flushed: f.flushed}, f.err }
func (f *fakeDaemon) InvalidateScreen() error             { return f.err }
func (f *fakeDaemon) ScreenNumbers(enable bool) (int, error) {
	f.numbers = append(f.numbers, enable)
	if enable {
		return 1, f.err
	}
	return 0, f.err
}

func sampleStatus() *ipc.StatusData {
	return &ipc.StatusData{
		DaemonRunning: true,
		Backend:       "headless",
		Compositor: compositor.Status{
			Frame: 3,
			Screens: []compositor.ScreenStatus{
				{ID: 0, Name: "left", Bounds: region.Rect{Width: 640, Height: 480}, State: "clean"},
				{ID: 1, Name: "right", Bounds: region.Rect{X: 640, Width: 640, Height: 480}, State: "damaged"},
			},
		},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, d Daemon) model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := newModel(path, d)
	if m.result == nil {
		t.Fatalf("expected default config to load, got error %v", m.loadErr)
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model)
}

func TestParseScreenSpec(t *testing.T) {
	sc, err := parseScreenSpec("side 1280x1024+1920+0")
	if err != nil {
		t.Fatalf("parseScreenSpec: %v", err)
	}
	if sc.Name != "side" || sc.Width != 1280 || sc.Height != 1024 || sc.X != 1920 || sc.Y != 0 {
		t.Fatalf("unexpected screen %+v", sc)
	}

	sc, err = parseScreenSpec("small 320x240")
	if err != nil {
		t.Fatalf("parseScreenSpec without offset: %v", err)
	}
	if sc.X != 0 || sc.Y != 0 || sc.Width != 320 {
		t.Fatalf("unexpected screen %+v", sc)
	}

	for _, bad := range []string{"", "onlyname", "x 0x100", "x axb", "a b c"} {
		if _, err := parseScreenSpec(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestScreensTabAddRejectsOverlapAndDuplicates(t *testing.T) {
	cfg := config.DefaultConfig()
	tab := NewScreensTab(cfg)

	if err := tab.addScreen(config.ScreenConfig{Name: "overlap", X: 100, Width: 100, Height: 100}); err == nil {
		t.Fatalf("expected overlap error")
	}
	if err := tab.addScreen(config.ScreenConfig{Name: "HEADLESS-0", X: 5000, Width: 100, Height: 100}); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	if err := tab.addScreen(config.ScreenConfig{Name: "right", X: 1920, Width: 800, Height: 600}); err != nil {
		t.Fatalf("addScreen: %v", err)
	}
	if len(cfg.Headless.Screens) != 2 {
		t.Fatalf("expected 2 screens, got %d", len(cfg.Headless.Screens))
	}
}

func TestScreensTabRemoveKeepsOne(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Headless.Screens = append(cfg.Headless.Screens, config.ScreenConfig{Name: "b", X: 1920, Width: 10, Height: 10})
	tab := NewScreensTab(cfg)

	tab.removeScreen(0)
	if len(cfg.Headless.Screens) != 1 || cfg.Headless.Screens[0].Name != "b" {
		t.Fatalf("unexpected screens after remove: %+v", cfg.Headless.Screens)
	}
	tab.removeScreen(0)
	if len(cfg.Headless.Screens) != 1 {
		t.Fatalf("last screen must not be removed")
	}
}

func TestScreensTabAddThroughInput(t *testing.T) {
	m := newTestModel(t, &fakeDaemon{err: errors.New("down")})
	m.activeTab = TabScreens

	next, _ := m.Update(key("a"))
	m = next.(model)
	if !m.screensTab.adding {
		t.Fatalf("expected add mode")
	}
	for _, r := range "side 640x480+1920+0" {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(model)
	}
	next, _ = m.Update(key("enter"))
	m = next.(model)

	if m.screensTab.adding {
		t.Fatalf("expected add mode to close, input error %q", m.screensTab.inputErr)
	}
	screens := m.config().Headless.Screens
	if len(screens) != 2 || screens[1].Name != "side" || screens[1].X != 1920 {
		t.Fatalf("unexpected screens %+v", screens)
	}
}

func TestSettingsApplyForm(t *testing.T) {
	cfg := config.DefaultConfig()
	tab := NewSettingsTab(cfg)
	tab.loadFields()

	tab.fBackground = "#102030"
	tab.fMode = "tile"
	tab.fRefreshHz = "120"
	tab.fImmediateDelay = "nope"
	tab.fFontSize = "16.5"
	tab.fBadgeBG = "not-a-color"
	tab.applyForm()

	if cfg.Background.Color != "#102030" || cfg.Background.Mode != "tile" {
		t.Fatalf("background not applied: %+v", cfg.Background)
	}
	if cfg.Compositor.RefreshHz != 120 {
		t.Fatalf("expected refresh 120, got %d", cfg.Compositor.RefreshHz)
	}
	if cfg.Compositor.ImmediateDelayMs != 4 {
		t.Fatalf("invalid delay should keep previous value, got %d", cfg.Compositor.ImmediateDelayMs)
	}
	if cfg.Theme.FontSize != 16.5 {
		t.Fatalf("expected font size 16.5, got %v", cfg.Theme.FontSize)
	}
	if cfg.Theme.BadgeBackground != "#202028e0" {
		t.Fatalf("invalid color should keep previous value, got %q", cfg.Theme.BadgeBackground)
	}
}

func TestSettingsValidators(t *testing.T) {
	if validateColor("#abc") != nil && validateColor("#aabbcc") != nil {
		t.Fatalf("expected a hex color to validate")
	}
	if validateColor("blue-ish") == nil {
		t.Fatalf("expected bad color to fail")
	}
	v := validateIntRange(1, 240)
	if v("60") != nil || v("0") == nil || v("abc") == nil {
		t.Fatalf("unexpected range validation results")
	}
	if validatePositiveFloat("0") == nil || validatePositiveFloat("1.5") != nil {
		t.Fatalf("unexpected float validation results")
	}
}

func TestStatusTabPollsAndToggles(t *testing.T) {
	d := &fakeDaemon{status: sampleStatus()}
	m := newTestModel(t, d)

	msg := m.Init()()
	next, cmd := m.Update(msg)
	m = next.(model)
	if !m.connected() {
		t.Fatalf("expected connected after status poll")
	}
	if cmd == nil {
		t.Fatalf("expected follow-up poll to be scheduled")
	}
	if got := len(m.statusTab.list.Items()); got != 2 {
		t.Fatalf("expected 2 screen items, got %d", got)
	}

	next, cmd = m.Update(key("n"))
	m = next.(model)
	if !m.statusTab.numbersHeld || cmd == nil {
		t.Fatalf("expected screen numbers toggle to be held")
	}
	next, _ = m.Update(cmd())
	m = next.(model)
	if len(d.numbers) != 1 || !d.numbers[0] {
		t.Fatalf("expected ScreenNumbers(true), got %v", d.numbers)
	}
	if m.statusTab.actionText == "" {
		t.Fatalf("expected action text")
	}
}

func TestStatusTabComposeReportsResult(t *testing.T) {
	d := &fakeDaemon{status: sampleStatus(), flushed: true}
	m := newTestModel(t, d)
	next, _ := m.Update(m.Init()())
	m = next.(model)

	next, cmd := m.Update(key("c"))
	m = next.(model)
	if cmd == nil {
		t.Fatalf("expected compose command")
	}
	next, _ = m.Update(cmd())
	m = next.(model)
	if got, want := m.statusTab.actionText, "frame 7: flushed"; got != want {
		t.Fatalf("action text = %q, want %q", got, want)
	}
	detail := renderStatusDetail(d.status, nil, m.statusTab.actionText, 80, 40)
	if !strings.Contains(detail, "frame 7: flushed") {
		t.Fatalf("expected compose result in detail view:\n%s", detail)
	}

	d.flushed = false
	next, cmd = m.Update(key("c"))
	m = next.(model)
	next, _ = m.Update(cmd())
	m = next.(model)
	if got, want := m.statusTab.actionText, "frame 7: nothing to flush"; got != want {
		t.Fatalf("action text = %q, want %q", got, want)
	}
}

func TestStatusTabDaemonDown(t *testing.T) {
	d := &fakeDaemon{err: errors.New("connection refused")}
	m := newTestModel(t, d)

	next, _ := m.Update(m.Init()())
	m = next.(model)
	if m.connected() {
		t.Fatalf("expected disconnected")
	}
	// Actions are ignored without a daemon.
	next, cmd := m.Update(key("n"))
	m = next.(model)
	if m.statusTab.numbersHeld {
		t.Fatalf("toggle should be ignored while disconnected")
	}
	_ = cmd
	if m.View() == "" {
		t.Fatalf("expected a rendered view")
	}
}

func TestTabNavigation(t *testing.T) {
	m := newTestModel(t, &fakeDaemon{err: errors.New("down")})

	next, _ := m.Update(key("2"))
	m = next.(model)
	if m.activeTab != TabSettings {
		t.Fatalf("expected settings tab, got %v", m.activeTab)
	}
	next, _ = m.Update(key("tab"))
	m = next.(model)
	if m.activeTab != TabScreens {
		t.Fatalf("expected screens tab, got %v", m.activeTab)
	}
	next, _ = m.Update(key("tab"))
	m = next.(model)
	if m.activeTab != TabStatus {
		t.Fatalf("expected wrap to status tab, got %v", m.activeTab)
	}
}

func TestSaveWithoutChanges(t *testing.T) {
	m := newTestModel(t, &fakeDaemon{err: errors.New("down")})

	next, _ := m.Update(key("ctrl+s"))
	m = next.(model)
	if m.saveOverlay.phase != saveResult || m.saveOverlay.err == nil {
		t.Fatalf("expected no-changes result, got phase %v err %v", m.saveOverlay.phase, m.saveOverlay.err)
	}
	next, _ = m.Update(key("x"))
	m = next.(model)
	if m.saveOverlay.Active() {
		t.Fatalf("expected overlay to dismiss")
	}
}

func TestSaveWritesConfigAndReloads(t *testing.T) {
	d := &fakeDaemon{status: sampleStatus()}
	m := newTestModel(t, d)
	next, _ := m.Update(m.Init()())
	m = next.(model)

	m.config().Background.Color = "#00ff00"

	next, _ = m.Update(key("ctrl+s"))
	m = next.(model)
	if m.saveOverlay.phase != savePreview {
		t.Fatalf("expected diff preview, got phase %v", m.saveOverlay.phase)
	}
	next, _ = m.Update(key("enter"))
	m = next.(model)
	if !m.saveOverlay.SaveSucceeded() {
		t.Fatalf("save failed: %v", m.saveOverlay.err)
	}
	if d.reloads != 1 {
		t.Fatalf("expected one reload, got %d", d.reloads)
	}

	if _, err := os.Stat(m.configPath); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	res, err := config.LoadFromPath(m.configPath)
	if err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
	if res.Config.Background.Color != "#00ff00" {
		t.Fatalf("expected saved background, got %q", res.Config.Background.Color)
	}
	if computeDiffLines(m.originalConfig, m.config()) != nil {
		t.Fatalf("original snapshot should match after save")
	}
}

func TestComputeDiffLines(t *testing.T) {
	a := config.DefaultConfig()
	b := cloneConfig(a)
	if computeDiffLines(a, b) != nil {
		t.Fatalf("identical configs should produce no diff")
	}
	b.Compositor.RefreshHz = 30

	lines := computeDiffLines(a, b)
	var added, removed int
	for _, l := range lines {
		switch l.kind {
		case diffAdded:
			added++
		case diffRemoved:
			removed++
		}
	}
	if added != 1 || removed != 1 {
		t.Fatalf("expected one changed line, got +%d -%d", added, removed)
	}
}
