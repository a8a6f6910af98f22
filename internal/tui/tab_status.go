package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/ipc"
)

const statusInterval = time.Second

// screenItem is a list item for one compositor screen.
type screenItem struct {
	screen compositor.ScreenStatus
}

func (i screenItem) Title() string {
	dot := "●"
	col := lipgloss.Color("42")
	if i.screen.State != "clean" {
		col = lipgloss.Color("226")
	}
	return lipgloss.NewStyle().Foreground(col).Render(dot) + " " + screenLabel(i.screen)
}

func (i screenItem) Description() string {
	b := i.screen.Bounds
	return fmt.Sprintf("%dx%d+%d+%d %s", b.Width, b.Height, b.X, b.Y, i.screen.State)
}

func (i screenItem) FilterValue() string { return i.screen.Name }

func screenLabel(s compositor.ScreenStatus) string {
	if s.Name == "" {
		return fmt.Sprintf("screen %d", s.ID)
	}
	return fmt.Sprintf("%d: %s", s.ID, s.Name)
}

// statusMsg carries the result of a status poll.
type statusMsg struct {
	status *ipc.StatusData
	err    error
}

// statusTickMsg schedules the next poll.
type statusTickMsg struct{}

// actionMsg reports the outcome of a daemon action.
type actionMsg struct {
	text string
	err  error
}

func pollStatus(d Daemon) tea.Cmd {
	return func() tea.Msg {
		st, err := d.GetStatus()
		return statusMsg{status: st, err: err}
	}
}

func scheduleStatus() tea.Cmd {
	return tea.Tick(statusInterval, func(time.Time) tea.Msg { return statusTickMsg{} })
}

// StatusTab shows the live compositor state and a few one-key actions.
type StatusTab struct {
	list   list.Model
	daemon Daemon

	status *ipc.StatusData
	err    error

	numbersHeld bool
	actionText  string

	width  int
	height int
}

// NewStatusTab creates the status tab polling d.
func NewStatusTab(d Daemon) StatusTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Screens"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	return StatusTab{list: l, daemon: d}
}

// Init starts polling.
func (s StatusTab) Init() tea.Cmd {
	return pollStatus(s.daemon)
}

// Update handles messages for the status tab. Poll results are routed here
// regardless of the active tab.
func (s StatusTab) Update(msg tea.Msg) (StatusTab, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		s.setStatus(msg.status, msg.err)
		return s, scheduleStatus()

	case statusTickMsg:
		return s, pollStatus(s.daemon)

	case actionMsg:
		if msg.err != nil {
			s.actionText = "error: " + msg.err.Error()
		} else {
			s.actionText = msg.text
		}
		return s, pollStatus(s.daemon)

	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.list.SetSize(s.listWidth(), s.height)
		return s, nil

	case tea.KeyMsg:
		if s.status == nil {
			break
		}
		switch msg.String() {
		case "n":
			return s, s.toggleNumbers()
		case "r":
			d := s.daemon
			return s, func() tea.Msg {
				return actionMsg{text: "screen invalidated", err: d.InvalidateScreen()}
			}
		case "c":
			d := s.daemon
			return s, func() tea.Msg {
				data, err := d.Compose()
				if err != nil {
					return actionMsg{err: err}
				}
				if !data.Flushed {
					return actionMsg{text: fmt.Sprintf("frame %d: nothing to flush", data.Frame)}
				}
				return actionMsg{text: fmt.Sprintf("frame %d: flushed", data.Frame)}
			}
		}
	}

	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

func (s *StatusTab) setStatus(st *ipc.StatusData, err error) {
	s.err = err
	if err != nil {
		s.status = nil
		s.list.SetItems(nil)
		return
	}
	s.status = st
	items := make([]list.Item, 0, len(st.Compositor.Screens))
	for _, sc := range st.Compositor.Screens {
		items = append(items, screenItem{screen: sc})
	}
	s.list.SetItems(items)
}

// toggleNumbers flips this dashboard's screen-number hold. The state flips
// optimistically; a failed request is reported through actionMsg.
func (s *StatusTab) toggleNumbers() tea.Cmd {
	enable := !s.numbersHeld
	s.numbersHeld = enable
	d := s.daemon
	return func() tea.Msg {
		n, err := d.ScreenNumbers(enable)
		if err != nil {
			return actionMsg{err: err}
		}
		state := "off"
		if enable {
			state = "on"
		}
		return actionMsg{text: fmt.Sprintf("screen numbers %s (%d holders)", state, n)}
	}
}

func (s StatusTab) listWidth() int {
	w := s.width * 2 / 5
	if w < 24 {
		w = 24
	}
	return w
}

// View implements tea.Model.
func (s StatusTab) View() string {
	if s.width == 0 || s.height == 0 {
		return ""
	}
	if s.status == nil {
		msg := "Connecting to daemon..."
		if s.err != nil {
			msg = "Daemon unavailable: " + s.err.Error()
		}
		return renderCentered(msg, s.width, s.height)
	}

	leftWidth := s.listWidth()
	rightWidth := s.width - leftWidth
	if rightWidth < 10 {
		rightWidth = 10
	}

	left := lipgloss.NewStyle().Width(leftWidth).Height(s.height).Render(s.list.View())
	right := renderStatusDetail(s.status, s.selectedScreen(), s.actionText, rightWidth, s.height)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (s StatusTab) selectedScreen() *compositor.ScreenStatus {
	if item, ok := s.list.SelectedItem().(screenItem); ok {
		sc := item.screen
		return &sc
	}
	return nil
}

func renderStatusDetail(st *ipc.StatusData, sc *compositor.ScreenStatus, action string, width, height int) string {
	var b strings.Builder
	c := st.Compositor

	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Width(18)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	field := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	if sc != nil {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Render(screenLabel(*sc)))
		b.WriteString("\n\n")
		field("state:", sc.State)
		field("native swap:", yesNo(sc.CanSetBuffer))
		field("flipped:", yesNo(sc.BuffersFlipped))
		field("cursor backing:", yesNo(sc.CursorBackingValid))
		field("pending rects:", fmt.Sprint(sc.PendingFlushRects))
		b.WriteString("\n")
	}

	field("background:", c.Background)
	if c.WallpaperPath != "" {
		field("wallpaper:", fmt.Sprintf("%s (%s)", c.WallpaperPath, c.WallpaperMode))
	}
	field("cursor:", fmt.Sprintf("%s at %d,%d", displayOrDefault(c.CursorName, "arrow"), c.Cursor.X, c.Cursor.Y))
	field("visible windows:", fmt.Sprint(c.VisibleWindows))
	field("overlays:", fmt.Sprint(c.Overlays))
	field("display links:", fmt.Sprint(c.DisplayLinks))
	field("screen numbers:", fmt.Sprint(c.ScreenNumbers))
	field("damage area:", fmt.Sprint(c.DamageArea))
	field("flushes:", fmt.Sprintf("%d (%d errors)", c.Stats.Flushes, c.Stats.FlushErrors))
	field("last compose:", c.Stats.LastCompose.String())
	if c.LastError != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(c.LastError))
		b.WriteString("\n")
	}

	if action != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render(action))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true).
		Render("n: screen numbers  r: repaint  c: compose now"))

	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Padding(1, 2).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(lipgloss.Color("236"))
	return style.Render(b.String())
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func displayOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
