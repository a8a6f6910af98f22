// Package compositor implements the frame-compositing core: damage
// tracking, occlusion, double-buffered rendering, overlays and the cursor
// save/restore path, driven by a single-threaded scheduler.
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
)

// Options configures a Compositor.
type Options struct {
	Display platform.Display
	Windows platform.WindowSource
	Logger  *slog.Logger

	BackgroundColor string
	WallpaperMode   string
	Theme           *Theme
	Cursor          *Cursor

	// FlashFlush paints every flushed rect yellow before transmitting it.
	FlashFlush bool
	// DebugInvariants checks the region invariants after every pass.
	DebugInvariants bool
	// MaxBufferPixels caps the size of one screen buffer. Zero selects
	// 8192x8192.
	MaxBufferPixels int

	// Dispatch runs fn on the goroutine that owns the compositor. Without
	// it, asynchronous completions are queued and run at the start of the
	// next Compose.
	Dispatch func(fn func())
	// DisplayLinkNotify receives the frame number on every steady tick while
	// display-link subscribers exist.
	DisplayLinkNotify func(frame uint64)
}

// Compositor owns the screen surfaces and composes the window stack onto
// them. It is not safe for concurrent use; see Scheduler.
type Compositor struct {
	display platform.Display
	windows platform.WindowSource
	logger  *slog.Logger

	flashFlush      bool
	debugInvariants bool
	maxBufferPixels int

	dispatch          func(func())
	requestCompose    func()

	queueMu sync.Mutex
	queued  []func()
	displayLinkNotify func(uint64)

	screens []*screenData
	desktop region.Set

	damage            region.Set
	invalidatedWindow bool
	occlusionsStale   bool
	occ               occlusion

	overlays *OverlayManager
	theme    Theme

	background    color.RGBA
	wallpaper     *image.RGBA
	wallpaperPath string
	wallpaperMode WallpaperMode
	wallpaperGen  uint64

	cursor cursorState

	drag                *OverlayHandle
	geometry            *OverlayHandle
	lastDndRect         region.Rect
	screenNumberHandles []*OverlayHandle

	displayLinks     refCount
	screenNumbers    refCount
	displayLinkTicks uint64

	frame   uint64
	stats   Stats
	lastErr error
}

// New creates a compositor and allocates the screen buffers.
func New(opts Options) (*Compositor, error) {
	if opts.Display == nil {
		return nil, fmt.Errorf("compositor: display is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Compositor{
		display:           opts.Display,
		windows:           opts.Windows,
		logger:            logger,
		flashFlush:        opts.FlashFlush,
		debugInvariants:   opts.DebugInvariants,
		maxBufferPixels:   opts.MaxBufferPixels,
		dispatch:          opts.Dispatch,
		displayLinkNotify: opts.DisplayLinkNotify,
		theme:             DefaultTheme(),
		background:        color.RGBA{R: 0x40, G: 0x80, B: 0x80, A: 0xff},
		wallpaperMode:     WallpaperCenter,
		displayLinks:      newRefCount("display link"),
		screenNumbers:     newRefCount("screen numbers"),
		occlusionsStale:   true,
	}
	if c.maxBufferPixels <= 0 {
		c.maxBufferPixels = defaultMaxBufferPixels
	}
	c.overlays = newOverlayManager(c.scheduleCompose)

	if opts.Theme != nil {
		c.theme = *opts.Theme
	}
	if opts.BackgroundColor != "" && !c.SetBackgroundColor(opts.BackgroundColor) {
		return nil, fmt.Errorf("compositor: invalid background color %q", opts.BackgroundColor)
	}
	if opts.WallpaperMode != "" && !c.SetWallpaperMode(opts.WallpaperMode) {
		return nil, fmt.Errorf("compositor: invalid wallpaper mode %q", opts.WallpaperMode)
	}
	c.cursor.asset = opts.Cursor
	if c.cursor.asset == nil {
		c.cursor.asset = DefaultCursor()
	}

	if err := c.ScreenResolutionChanged(); err != nil {
		return nil, err
	}
	return c, nil
}

// Overlays returns the overlay registry.
func (c *Compositor) Overlays() *OverlayManager { return c.overlays }

// Frame returns the number of compose passes run so far.
func (c *Compositor) Frame() uint64 { return c.frame }

// InvalidateScreen damages the whole desktop.
func (c *Compositor) InvalidateScreen() {
	c.damage = c.desktop.Clone()
	c.markDamaged()
	c.scheduleCompose()
}

// InvalidateScreenRect damages r, clipped to the desktop.
func (c *Compositor) InvalidateScreenRect(r region.Rect) {
	c.addDamage(r)
	c.scheduleCompose()
}

// InvalidateWindow reports that window content changed without saying
// where. Occlusions are recomputed and every visible window region is
// repainted.
func (c *Compositor) InvalidateWindow() {
	c.invalidatedWindow = true
	c.occlusionsStale = true
	c.scheduleCompose()
}

// Damage returns the accumulated damage.
func (c *Compositor) Damage() region.Set { return c.damage.Clone() }

func (c *Compositor) addDamage(r region.Rect) {
	if r.Empty() {
		return
	}
	c.damage.AddSet(c.desktop.Intersect(r))
	c.markDamaged()
}

func (c *Compositor) addDamageSet(s region.Set) {
	for _, r := range s.Rects() {
		c.addDamage(r)
	}
}

func (c *Compositor) markDamaged() {
	for _, s := range c.screens {
		if s.state == ScreenClean && c.damage.Intersects(s.screen.Bounds) {
			s.state = ScreenDamaged
		}
	}
}

func (c *Compositor) scheduleCompose() {
	if c.requestCompose != nil {
		c.requestCompose()
	}
}

func (c *Compositor) dispatchTask(fn func()) {
	if c.dispatch != nil {
		c.dispatch(fn)
		return
	}
	c.queueMu.Lock()
	c.queued = append(c.queued, fn)
	c.queueMu.Unlock()
}

// runQueued runs completions queued by dispatchTask on the caller's
// goroutine, which owns the compositor.
func (c *Compositor) runQueued() {
	c.queueMu.Lock()
	queued := c.queued
	c.queued = nil
	c.queueMu.Unlock()
	for _, fn := range queued {
		fn()
	}
}

func (c *Compositor) queuedTasks() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queued)
}

// Compose runs one compositing pass and reports whether anything was
// transmitted to the display.
func (c *Compositor) Compose() bool {
	start := time.Now()
	c.runQueued()
	c.frame++

	if c.occlusionsStale {
		c.recomputeOcclusions()
	}
	c.refreshGeometryOverlay()
	if c.drag != nil {
		if prev := c.drag.entry.lastRect; !prev.Empty() && c.drag.Overlay().Rect() != prev {
			c.lastDndRect = prev
		}
	}
	c.addDamageSet(c.overlays.recompute())
	if c.invalidatedWindow {
		for _, wv := range c.occ.windows {
			c.addDamageSet(wv.visible)
		}
		c.invalidatedWindow = false
	}

	flushed := false
	for _, s := range c.screens {
		ok, err := c.composeScreen(s)
		if err != nil {
			c.lastErr = err
			c.stats.FlushErrors++
			c.logger.Error("flush failed", "screen", s.screen.ID, "error", err)
		}
		flushed = flushed || ok
	}

	c.damage.Clear()
	c.lastDndRect = region.Rect{}
	c.cursor.invalidated = false

	c.stats.Frames++
	c.stats.LastCompose = time.Since(start)
	if c.debugInvariants {
		if err := c.CheckInvariants(); err != nil {
			c.logger.Error("compositor invariant violated", "frame", c.frame, "error", err)
		}
	}
	return flushed
}

// composeScreen renders and flushes one screen. It reports whether rects
// were transmitted.
func (c *Compositor) composeScreen(s *screenData) (bool, error) {
	if !s.flushSpecial.IsEmpty() {
		c.logger.Warn("special flush rects survived previous pass",
			"screen", s.screen.ID, "rects", s.flushSpecial.String())
	}

	dirty := c.damage.Intersect(s.screen.Bounds)

	if r, ok := c.restoreCursor(s, &dirty); ok {
		c.addFlushClassified(s, region.NewSet(r))
	}
	if !dirty.IsEmpty() {
		for _, r := range dirty.Rects() {
			c.renderRect(s, r)
		}
		c.addFlushClassified(s, dirty)
		s.state = ScreenRendered
	}
	if r, ok := c.drawCursor(s); ok {
		s.addFlush(flushTransparent, region.NewSet(r))
	}

	pending := s.pendingFlush()
	if pending.IsEmpty() {
		s.state = ScreenClean
		return false, nil
	}
	s.state = ScreenRendered
	if err := c.flush(s, pending); err != nil {
		return false, err
	}
	return true, nil
}
