package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tilecomp/internal/config"
)

// model is the root bubbletea model for the TUI.
type model struct {
	configPath string
	result     *config.LoadResult
	loadErr    error
	daemon     Daemon

	activeTab Tab

	statusTab   StatusTab
	settingsTab SettingsTab
	screensTab  ScreensTab

	// Save overlay
	originalConfig *config.Config
	saveOverlay    SaveOverlay

	width  int
	height int
}

func newModel(configPath string, d Daemon) model {
	m := model{
		configPath: configPath,
		daemon:     d,
		activeTab:  TabStatus,
	}
	m.loadConfig()

	var cfg *config.Config
	if m.result != nil {
		cfg = m.result.Config
		m.originalConfig = cloneConfig(cfg)
	}
	m.statusTab = NewStatusTab(d)
	m.settingsTab = NewSettingsTab(cfg)
	m.screensTab = NewScreensTab(cfg)
	return m
}

func (m *model) loadConfig() {
	var res *config.LoadResult
	var err error
	if m.configPath == "" {
		res, err = config.LoadWithSources()
	} else {
		res, err = config.LoadFromPath(m.configPath)
	}
	if err != nil {
		m.loadErr = err
		return
	}
	m.result = res
}

func (m model) config() *config.Config {
	if m.result == nil {
		return nil
	}
	return m.result.Config
}

// connected reports whether the last status poll succeeded.
func (m model) connected() bool {
	return m.statusTab.status != nil
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return m.statusTab.Init()
}

func (m model) resize(msg tea.WindowSizeMsg) model {
	m.width = msg.Width
	m.height = msg.Height
	sub := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
	m.statusTab, _ = m.statusTab.Update(sub)
	m.settingsTab, _ = m.settingsTab.Update(sub)
	m.screensTab, _ = m.screensTab.Update(sub)
	return m
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Poll results always reach the status tab.
	switch msg.(type) {
	case statusMsg, statusTickMsg, actionMsg:
		var cmd tea.Cmd
		m.statusTab, cmd = m.statusTab.Update(msg)
		return m, cmd
	}

	if m.saveOverlay.Active() {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			var d Daemon
			if m.connected() {
				d = m.daemon
			}
			prev := m.saveOverlay.phase
			m.saveOverlay = m.saveOverlay.Update(msg, m.config(), m.configPath, d)
			if prev == savePreview && m.saveOverlay.SaveSucceeded() {
				m.originalConfig = cloneConfig(m.config())
			}
		case tea.WindowSizeMsg:
			m = m.resize(msg)
		}
		return m, nil
	}

	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+s" {
		if cfg := m.config(); cfg != nil {
			m.saveOverlay.Show(m.originalConfig, cfg)
		}
		return m, nil
	}

	// Forms and inputs consume keys; only ctrl+c escapes.
	capturing := (m.activeTab == TabSettings && m.settingsTab.editing) ||
		(m.activeTab == TabScreens && m.screensTab.adding)
	if capturing {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		case tea.WindowSizeMsg:
			return m.resize(msg), nil
		}
		return m.delegate(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabStatus
			return m, nil
		case "2":
			m.activeTab = TabSettings
			return m, nil
		case "3":
			m.activeTab = TabScreens
			return m, nil
		}
	case tea.WindowSizeMsg:
		return m.resize(msg), nil
	}

	return m.delegate(msg)
}

func (m model) delegate(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activeTab {
	case TabStatus:
		m.statusTab, cmd = m.statusTab.Update(msg)
	case TabSettings:
		m.settingsTab, cmd = m.settingsTab.Update(msg)
	case TabScreens:
		m.screensTab, cmd = m.screensTab.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.statusTab.status, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.width)

	contentHeight := m.height - lipgloss.Height(statusBar) - lipgloss.Height(tabBar) - lipgloss.Height(helpBar)
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch {
	case m.saveOverlay.Active():
		content = m.saveOverlay.View(m.width, contentHeight)
	case m.result == nil && m.activeTab != TabStatus:
		msg := "No config loaded"
		if m.loadErr != nil {
			msg = "Config error: " + m.loadErr.Error()
		}
		content = renderCentered(msg, m.width, contentHeight)
	case m.activeTab == TabStatus:
		content = m.statusTab.View()
	case m.activeTab == TabSettings:
		content = m.settingsTab.View()
	case m.activeTab == TabScreens:
		content = m.screensTab.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, statusBar, tabBar, content, helpBar)
}
