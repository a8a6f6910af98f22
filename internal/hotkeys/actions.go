package hotkeys

import "github.com/1broseidon/tilecomp/internal/compositor"

// ScreenNumberToggle holds one screen-number reference on behalf of the
// keyboard. Other holders (IPC clients) keep their own references, so the
// badges stay up while anyone still wants them.
type ScreenNumberToggle struct {
	token compositor.Capability
	held  bool
}

func NewScreenNumberToggle() *ScreenNumberToggle {
	return &ScreenNumberToggle{token: compositor.NewCapability(compositor.PermScreenNumbers)}
}

// Toggle acquires or releases the reference. Must run on the compositor
// loop.
func (t *ScreenNumberToggle) Toggle(c *compositor.Compositor) (bool, error) {
	if t.held {
		if err := c.DecrementShowScreenNumber(t.token); err != nil {
			return t.held, err
		}
	} else if err := c.IncrementShowScreenNumber(t.token); err != nil {
		return t.held, err
	}
	t.held = !t.held
	return t.held, nil
}

// Repaint redraws everything: occlusions, windows and the cursor.
func Repaint(c *compositor.Compositor) {
	c.InvalidateOcclusions()
	c.InvalidateScreen()
	c.InvalidateCursor(false)
}
