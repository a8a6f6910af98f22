package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/tilecomp/internal/ipc"
)

// Daemon is the slice of the IPC client the dashboard drives.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	Reload() error
	Compose() (*ipc.ComposeData, error)
	InvalidateScreen() error
	ScreenNumbers(enable bool) (int, error)
}

// ClientName is the holder name the dashboard uses for counted requests.
const ClientName = "tui"

// Run starts the dashboard. configPath may be empty for the default location.
func Run(configPath string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	client := ipc.NewClient()
	client.Name = ClientName

	m := newModel(configPath, client)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}

	// Release a screen-number hold left on by the dashboard.
	if fm, ok := final.(model); ok && fm.statusTab.numbersHeld {
		_, _ = client.ScreenNumbers(false)
	}
	return nil
}
