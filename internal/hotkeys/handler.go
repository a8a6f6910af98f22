package hotkeys

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Handler manages global keyboard shortcuts. Callbacks run on the X event
// goroutine and post their work to the compositor loop.
type Handler struct {
	xu      *xgbutil.XUtil
	root    xproto.Window
	sched   *compositor.Scheduler
	logger  *slog.Logger
	numbers *ScreenNumberToggle
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler.
func NewHandler(xu *xgbutil.XUtil, root xproto.Window, sched *compositor.Scheduler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:      xu,
		root:    root,
		sched:   sched,
		logger:  logger,
		numbers: NewScreenNumberToggle(),
	}
}

// RegisterScreenNumbers binds the key that shows or hides the
// screen-number badges.
func (h *Handler) RegisterScreenNumbers(keySequence string) error {
	if err := h.RegisterFunc(keySequence, func() {
		h.sched.Do(func(c *compositor.Compositor) {
			shown, err := h.numbers.Toggle(c)
			if err != nil {
				h.logger.Warn("screen number toggle failed", "error", err)
				return
			}
			h.logger.Debug("screen numbers toggled", "shown", shown)
		})
	}); err != nil {
		return fmt.Errorf("failed to register screen numbers hotkey: %w", err)
	}
	return nil
}

// RegisterRepaint binds the key that forces a full repaint.
func (h *Handler) RegisterRepaint(keySequence string) error {
	if err := h.RegisterFunc(keySequence, func() {
		h.sched.Do(Repaint)
	}); err != nil {
		return fmt.Errorf("failed to register repaint hotkey: %w", err)
	}
	return nil
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
