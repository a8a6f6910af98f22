package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tilecomp/internal/config"
)

// headlessItem is a list item for one configured headless screen.
type headlessItem struct {
	index  int
	screen config.ScreenConfig
}

func (i headlessItem) Title() string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("▣") + " " + i.screen.Name
}

func (i headlessItem) Description() string {
	s := i.screen
	desc := formatGeometry(s)
	if s.NativeSwap {
		desc += " | native swap"
	}
	return desc
}

func (i headlessItem) FilterValue() string { return i.screen.Name }

// ScreensTab edits the headless backend's screen layout.
type ScreensTab struct {
	list   list.Model
	cfg    *config.Config
	width  int
	height int

	adding    bool
	textInput textinput.Model
	inputErr  string
}

// NewScreensTab creates a ScreensTab from the loaded config.
func NewScreensTab(cfg *config.Config) ScreensTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(buildHeadlessItems(cfg), delegate, 0, 0)
	l.Title = "Headless Screens"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	ti := textinput.New()
	ti.Placeholder = "name 1920x1080+0+0"
	ti.CharLimit = 64

	return ScreensTab{list: l, cfg: cfg, textInput: ti}
}

// Update handles messages for the screens tab.
func (t ScreensTab) Update(msg tea.Msg) (ScreensTab, tea.Cmd) {
	if t.adding {
		return t.updateAdding(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
		t.list.SetSize(t.listWidth(), t.height)
		return t, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "a":
			t.adding = true
			t.inputErr = ""
			t.textInput.Reset()
			t.textInput.Focus()
			return t, textinput.Blink
		case "x", "delete":
			if item, ok := t.list.SelectedItem().(headlessItem); ok {
				t.removeScreen(item.index)
				t.list.SetItems(buildHeadlessItems(t.cfg))
			}
			return t, nil
		case "s":
			if item, ok := t.list.SelectedItem().(headlessItem); ok && t.cfg != nil {
				sc := &t.cfg.Headless.Screens[item.index]
				sc.NativeSwap = !sc.NativeSwap
				t.list.SetItems(buildHeadlessItems(t.cfg))
			}
			return t, nil
		}
	}

	var cmd tea.Cmd
	t.list, cmd = t.list.Update(msg)
	return t, cmd
}

func (t ScreensTab) updateAdding(msg tea.Msg) (ScreensTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			value := strings.TrimSpace(t.textInput.Value())
			if value == "" {
				t.adding = false
				t.textInput.Blur()
				return t, nil
			}
			sc, err := parseScreenSpec(value)
			if err == nil {
				err = t.addScreen(sc)
			}
			if err != nil {
				t.inputErr = err.Error()
				return t, nil
			}
			t.list.SetItems(buildHeadlessItems(t.cfg))
			t.adding = false
			t.textInput.Blur()
			return t, nil
		case "esc":
			t.adding = false
			t.textInput.Blur()
			return t, nil
		}
	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
		return t, nil
	}

	var cmd tea.Cmd
	t.textInput, cmd = t.textInput.Update(msg)
	return t, cmd
}

func (t ScreensTab) listWidth() int {
	w := t.width * 2 / 5
	if w < 20 {
		w = 20
	}
	return w
}

// addScreen appends sc unless it overlaps an existing screen or reuses a name.
func (t *ScreensTab) addScreen(sc config.ScreenConfig) error {
	if t.cfg == nil {
		return fmt.Errorf("no config loaded")
	}
	for _, o := range t.cfg.Headless.Screens {
		if strings.EqualFold(o.Name, sc.Name) {
			return fmt.Errorf("screen %q already exists", sc.Name)
		}
		if sc.X < o.X+o.Width && o.X < sc.X+sc.Width && sc.Y < o.Y+o.Height && o.Y < sc.Y+sc.Height {
			return fmt.Errorf("overlaps screen %q", o.Name)
		}
	}
	t.cfg.Headless.Screens = append(t.cfg.Headless.Screens, sc)
	return nil
}

// removeScreen deletes screen i, keeping at least one.
func (t *ScreensTab) removeScreen(i int) {
	if t.cfg == nil || len(t.cfg.Headless.Screens) <= 1 || i < 0 || i >= len(t.cfg.Headless.Screens) {
		return
	}
	screens := t.cfg.Headless.Screens
	t.cfg.Headless.Screens = append(screens[:i:i], screens[i+1:]...)
}

// parseScreenSpec parses "name WxH+X+Y"; the offset may be omitted.
func parseScreenSpec(s string) (config.ScreenConfig, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return config.ScreenConfig{}, fmt.Errorf("expected \"name WxH+X+Y\"")
	}
	sc := config.ScreenConfig{Name: fields[0]}
	geom := fields[1]
	var err error
	if strings.Contains(geom, "+") {
		_, err = fmt.Sscanf(geom, "%dx%d+%d+%d", &sc.Width, &sc.Height, &sc.X, &sc.Y)
	} else {
		_, err = fmt.Sscanf(geom, "%dx%d", &sc.Width, &sc.Height)
	}
	if err != nil {
		return config.ScreenConfig{}, fmt.Errorf("bad geometry %q", geom)
	}
	if sc.Width <= 0 || sc.Height <= 0 {
		return config.ScreenConfig{}, fmt.Errorf("width and height must be > 0")
	}
	return sc, nil
}

func formatGeometry(s config.ScreenConfig) string {
	return fmt.Sprintf("%dx%d+%d+%d", s.Width, s.Height, s.X, s.Y)
}

// View implements tea.Model.
func (t ScreensTab) View() string {
	if t.width == 0 || t.height == 0 {
		return ""
	}

	leftWidth := t.listWidth()
	rightWidth := t.width - leftWidth
	if rightWidth < 10 {
		rightWidth = 10
	}

	leftContent := t.list.View()
	if t.adding {
		prompt := lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true).Render("Add screen:") + "\n" +
			t.textInput.View() + "\n"
		if t.inputErr != "" {
			prompt += lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(t.inputErr) + "\n"
		}
		prompt += dimStyle.Render("enter: confirm  esc: cancel")
		inputBlock := lipgloss.NewStyle().Padding(0, 1).Width(leftWidth).Render(prompt)
		listHeight := t.height - lipgloss.Height(inputBlock)
		if listHeight < 1 {
			listHeight = 1
		}
		t.list.SetSize(leftWidth, listHeight)
		leftContent = inputBlock + "\n" + t.list.View()
	}

	left := lipgloss.NewStyle().Width(leftWidth).Height(t.height).Render(leftContent)

	var right string
	if item, ok := t.list.SelectedItem().(headlessItem); ok {
		right = renderHeadlessDetail(item, t.cfg, rightWidth, t.height)
	} else {
		right = renderCentered("No headless screens configured", rightWidth, t.height)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func buildHeadlessItems(cfg *config.Config) []list.Item {
	if cfg == nil {
		return nil
	}
	items := make([]list.Item, 0, len(cfg.Headless.Screens))
	for i, sc := range cfg.Headless.Screens {
		items = append(items, headlessItem{index: i, screen: sc})
	}
	return items
}

func renderHeadlessDetail(item headlessItem, cfg *config.Config, width, height int) string {
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Render(item.screen.Name))
	b.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Width(18)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	field := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("screen id:", fmt.Sprint(item.index))
	field("geometry:", formatGeometry(item.screen))
	field("native swap:", yesNo(item.screen.NativeSwap))
	if cfg != nil && cfg.Backend != config.BackendHeadless {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("backend is " + cfg.Backend + "; used only by the headless backend"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Italic(true).Render("a: add  x: remove  s: toggle native swap"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("screen changes apply on daemon restart"))

	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Padding(1, 2).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(lipgloss.Color("236"))
	return style.Render(b.String())
}
