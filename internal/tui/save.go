package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/tilecomp/internal/config"
)

type savePhase int

const (
	saveHidden  savePhase = iota
	savePreview           // showing diff, awaiting confirm
	saveResult            // showing outcome message
)

type diffKind int

const (
	diffContext diffKind = iota
	diffRemoved
	diffAdded
)

type diffLine struct {
	kind diffKind
	text string
}

// maxDiffCells bounds the LCS table; larger inputs are shown as a full
// replacement.
const maxDiffCells = 500000

// SaveOverlay previews the pending config changes and writes them on confirm.
type SaveOverlay struct {
	phase        savePhase
	diffLines    []diffLine
	err          error
	reloaded     bool
	scrollOffset int
}

// Active reports whether the overlay is visible.
func (s SaveOverlay) Active() bool {
	return s.phase != saveHidden
}

// Show computes the diff and opens the preview.
func (s *SaveOverlay) Show(original, current *config.Config) {
	s.err = nil
	s.reloaded = false
	s.scrollOffset = 0

	lines := computeDiffLines(original, current)
	if len(lines) == 0 {
		s.phase = saveResult
		s.err = fmt.Errorf("no changes to save")
		return
	}
	s.diffLines = lines
	s.phase = savePreview
}

// SaveSucceeded reports whether the last save completed without error.
func (s SaveOverlay) SaveSucceeded() bool {
	return s.phase == saveResult && s.err == nil
}

// Update handles input while the overlay is active. d may be nil when the
// daemon is not running.
func (s SaveOverlay) Update(msg tea.Msg, cfg *config.Config, path string, d Daemon) SaveOverlay {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return s
	}
	switch s.phase {
	case savePreview:
		switch km.String() {
		case "esc":
			s.phase = saveHidden
		case "enter", "y":
			s.err = saveConfig(cfg, path)
			if s.err == nil && d != nil {
				s.reloaded = d.Reload() == nil
			}
			s.phase = saveResult
		case "up", "k":
			if s.scrollOffset > 0 {
				s.scrollOffset--
			}
		case "down", "j":
			s.scrollOffset++
		}
	case saveResult:
		s.phase = saveHidden
	}
	return s
}

func saveConfig(cfg *config.Config, path string) error {
	if cfg == nil {
		return fmt.Errorf("no config loaded")
	}
	if path == "" {
		return cfg.Save()
	}
	return cfg.SaveTo(path)
}

// View renders the overlay for the given content area dimensions.
func (s SaveOverlay) View(width, height int) string {
	switch s.phase {
	case savePreview:
		return s.viewPreview(width, height)
	case saveResult:
		return s.viewResult(width, height)
	}
	return ""
}

func overlayBox(areaW, areaH, maxW int, content string) string {
	boxW := areaW - 8
	if boxW > maxW {
		boxW = maxW
	}
	if boxW < 30 {
		boxW = 30
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(boxW).
		Render(content)
	return lipgloss.Place(areaW, areaH, lipgloss.Center, lipgloss.Center, box)
}

// visibleDiff returns the window of diff lines shown for the given height.
func (s SaveOverlay) visibleDiff(height int) []diffLine {
	maxScroll := len(s.diffLines) - height
	if maxScroll < 0 {
		maxScroll = 0
	}
	off := s.scrollOffset
	if off > maxScroll {
		off = maxScroll
	}
	end := off + height
	if end > len(s.diffLines) {
		end = len(s.diffLines)
	}
	return s.diffLines[off:end]
}

func (s SaveOverlay) viewPreview(areaW, areaH int) string {
	addStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	rmStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	ctxStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// title, blank lines, footer, border and padding
	diffH := areaH - 10
	if diffH < 3 {
		diffH = 3
	}
	innerW := areaW - 14
	if innerW < 10 {
		innerW = 10
	}

	var lines []string
	for _, dl := range s.visibleDiff(diffH) {
		t := dl.text
		if len(t) > innerW-2 {
			t = t[:innerW-2]
		}
		switch dl.kind {
		case diffAdded:
			lines = append(lines, addStyle.Render("+ "+t))
		case diffRemoved:
			lines = append(lines, rmStyle.Render("- "+t))
		default:
			lines = append(lines, ctxStyle.Render("  "+t))
		}
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Render("Save Config: Pending Changes")
	footer := dimStyle.Render("enter: save  esc: cancel  j/k: scroll")
	return overlayBox(areaW, areaH, 80, title+"\n\n"+strings.Join(lines, "\n")+"\n\n"+footer)
}

func (s SaveOverlay) viewResult(areaW, areaH int) string {
	var msg string
	if s.err != nil {
		msg = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Render("Error: " + s.err.Error())
	} else {
		ok := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
		msg = ok.Bold(true).Render("Config saved")
		if s.reloaded {
			msg += "\n" + ok.Render("Daemon reloaded")
		}
	}
	return overlayBox(areaW, areaH, 60, msg+"\n\n"+dimStyle.Render("press any key to dismiss"))
}

func computeDiffLines(original, current *config.Config) []diffLine {
	if original == nil || current == nil {
		return nil
	}
	a, err := yamlLines(original)
	if err != nil {
		return nil
	}
	b, err := yamlLines(current)
	if err != nil {
		return nil
	}
	return filterDiffContext(lcsDiff(a, b), 2)
}

func yamlLines(cfg *config.Config) ([]string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n"), nil
}

// lcsDiff computes a line diff using the longest common subsequence.
func lcsDiff(a, b []string) []diffLine {
	m, n := len(a), len(b)
	if m*n > maxDiffCells {
		out := make([]diffLine, 0, m+n)
		for _, l := range a {
			out = append(out, diffLine{kind: diffRemoved, text: l})
		}
		for _, l := range b {
			out = append(out, diffLine{kind: diffAdded, text: l})
		}
		return out
	}

	tbl := make([][]int, m+1)
	for i := range tbl {
		tbl[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				tbl[i][j] = tbl[i+1][j+1] + 1
			case tbl[i+1][j] >= tbl[i][j+1]:
				tbl[i][j] = tbl[i+1][j]
			default:
				tbl[i][j] = tbl[i][j+1]
			}
		}
	}

	var out []diffLine
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case a[i] == b[j]:
			out = append(out, diffLine{kind: diffContext, text: a[i]})
			i++
			j++
		case tbl[i+1][j] >= tbl[i][j+1]:
			out = append(out, diffLine{kind: diffRemoved, text: a[i]})
			i++
		default:
			out = append(out, diffLine{kind: diffAdded, text: b[j]})
			j++
		}
	}
	for ; i < m; i++ {
		out = append(out, diffLine{kind: diffRemoved, text: a[i]})
	}
	for ; j < n; j++ {
		out = append(out, diffLine{kind: diffAdded, text: b[j]})
	}
	return out
}

// filterDiffContext keeps changed lines and ctx lines around each, joining
// gaps with "...". It returns nil when nothing changed.
func filterDiffContext(lines []diffLine, ctx int) []diffLine {
	keep := make([]bool, len(lines))
	changed := false
	for i, l := range lines {
		if l.kind == diffContext {
			continue
		}
		changed = true
		for j := max(0, i-ctx); j <= min(len(lines)-1, i+ctx); j++ {
			keep[j] = true
		}
	}
	if !changed {
		return nil
	}

	var out []diffLine
	prevKept := true
	for i, l := range lines {
		if !keep[i] {
			prevKept = false
			continue
		}
		if !prevKept {
			out = append(out, diffLine{kind: diffContext, text: "..."})
		}
		out = append(out, l)
		prevKept = true
	}
	return out
}

// cloneConfig deep-copies cfg through YAML.
func cloneConfig(cfg *config.Config) *config.Config {
	if cfg == nil {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	var clone config.Config
	if err := yaml.Unmarshal(data, &clone); err != nil {
		return nil
	}
	return &clone
}
