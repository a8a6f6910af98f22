package platform

import (
	"fmt"
	"image"
	"image/draw"
	"slices"
	"sync"

	"github.com/1broseidon/tilecomp/internal/region"
)

// FlushRecord captures one Flush call on a headless display.
type FlushRecord struct {
	ScreenID int
	Rects    []region.Rect
}

// Headless is an in-memory Display. It keeps a framebuffer per screen and
// records every flush, which makes it the backend of choice for tests and
// for running the daemon without a display server.
type Headless struct {
	mu      sync.Mutex
	screens []Screen
	frames  map[int]*image.RGBA
	active  map[int]int
	flushes []FlushRecord
	failing map[int]error
}

var _ Display = (*Headless)(nil)

// NewHeadless creates a headless display with the given screens.
func NewHeadless(screens ...Screen) *Headless {
	h := &Headless{}
	h.SetScreens(screens)
	return h
}

// SetScreens replaces the screen layout, discarding framebuffer contents.
func (h *Headless) SetScreens(screens []Screen) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.screens = slices.Clone(screens)
	h.frames = make(map[int]*image.RGBA, len(screens))
	h.active = make(map[int]int, len(screens))
	for _, s := range screens {
		h.frames[s.ID] = image.NewRGBA(s.Bounds.Image())
	}
}

// Screens returns the configured screens.
func (h *Headless) Screens() ([]Screen, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.screens), nil
}

// Flush copies rects of src into the screen framebuffer.
func (h *Headless) Flush(screenID int, src *image.RGBA, rects []region.Rect) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.failing[screenID]; err != nil {
		return err
	}
	frame, ok := h.frames[screenID]
	if !ok {
		return fmt.Errorf("headless: unknown screen %d", screenID)
	}
	for _, r := range rects {
		ir := r.Image().Intersect(frame.Bounds())
		draw.Draw(frame, ir, src, ir.Min, draw.Src)
	}
	h.flushes = append(h.flushes, FlushRecord{ScreenID: screenID, Rects: slices.Clone(rects)})
	return nil
}

// SetBuffer records which buffer the screen scans out.
func (h *Headless) SetBuffer(screenID int, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.frames[screenID]; !ok {
		return fmt.Errorf("headless: unknown screen %d", screenID)
	}
	h.active[screenID] = index
	return nil
}

// ActiveBuffer returns the buffer index last selected with SetBuffer.
func (h *Headless) ActiveBuffer(screenID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active[screenID]
}

// Frame returns a copy of what the screen currently shows.
func (h *Headless) Frame(screenID int) *image.RGBA {
	h.mu.Lock()
	defer h.mu.Unlock()

	frame, ok := h.frames[screenID]
	if !ok {
		return nil
	}
	out := image.NewRGBA(frame.Bounds())
	copy(out.Pix, frame.Pix)
	return out
}

// Flushes returns every flush recorded since the last TakeFlushes call.
func (h *Headless) Flushes() []FlushRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.flushes)
}

// TakeFlushes returns the recorded flushes and resets the record.
func (h *Headless) TakeFlushes() []FlushRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.flushes
	h.flushes = nil
	return out
}

// FailFlushes makes every Flush on screenID return err until cleared with
// a nil err.
func (h *Headless) FailFlushes(screenID int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failing == nil {
		h.failing = make(map[int]error)
	}
	if err == nil {
		delete(h.failing, screenID)
		return
	}
	h.failing[screenID] = err
}
