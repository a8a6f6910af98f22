package compositor

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testScreen = platform.Screen{ID: 0, Name: "test", Bounds: region.Rect{Width: 320, Height: 240}}
	red        = color.RGBA{R: 0xff, A: 0xff}
	blue       = color.RGBA{B: 0xff, A: 0xff}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	c       *Compositor
	display *platform.Headless
	stack   *platform.Stack
	tasks   chan func()
}

func newFixture(t *testing.T, screens []platform.Screen, windows ...platform.Window) *fixture {
	t.Helper()
	if len(screens) == 0 {
		screens = []platform.Screen{testScreen}
	}
	f := &fixture{
		display: platform.NewHeadless(screens...),
		stack:   platform.NewStack(),
		tasks:   make(chan func(), 8),
	}
	for _, w := range windows {
		f.stack.Put(w)
	}

	c, err := New(Options{
		Display:         f.display,
		Windows:         f.stack,
		Logger:          discardLogger(),
		DebugInvariants: true,
		Dispatch:        func(fn func()) { f.tasks <- fn },
	})
	require.NoError(t, err)
	f.stack.OnChange = c.WindowsChanged
	f.c = c
	return f
}

// settle runs a compose pass and discards what it flushed.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	f.c.Compose()
	f.display.TakeFlushes()
	require.NoError(t, f.c.CheckInvariants())
}

// flushedSet unions every rect flushed since the last call.
func (f *fixture) flushedSet() region.Set {
	var s region.Set
	for _, rec := range f.display.TakeFlushes() {
		for _, r := range rec.Rects {
			s.Add(r)
		}
	}
	return s
}

func (f *fixture) runTask(t *testing.T) {
	t.Helper()
	select {
	case fn := <-f.tasks:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatched task")
	}
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

type boxOverlay struct {
	rect    region.Rect
	col     color.RGBA
	renders int
	themes  int
}

func (o *boxOverlay) Rect() region.Rect { return o.rect }

func (o *boxOverlay) Render(dst draw.Image, clip region.Rect) {
	o.renders++
	draw.Draw(dst, clip.Image(), image.NewUniform(o.col), image.Point{}, draw.Src)
}

func (o *boxOverlay) ThemeChanged(Theme) { o.themes++ }

func TestFirstComposeFlushesWholeDesktop(t *testing.T) {
	f := newFixture(t, nil)

	require.True(t, f.c.Compose())
	flushed := f.flushedSet()
	assert.True(t, flushed.Equal(region.NewSet(testScreen.Bounds)))

	state, err := f.c.ScreenState(0)
	require.NoError(t, err)
	assert.Equal(t, ScreenClean, state)
}

func TestSecondComposeWithoutInvalidationFlushesNothing(t *testing.T) {
	f := newFixture(t, nil, platform.Window{ID: 1, Bounds: region.Rect{X: 20, Y: 20, Width: 100, Height: 80}, Opaque: true, Visible: true})
	f.settle(t)

	assert.False(t, f.c.Compose())
	assert.Empty(t, f.display.Flushes())
}

func TestInvalidateScreenRectAccumulatesExactDisjointDamage(t *testing.T) {
	f := newFixture(t, nil)
	f.settle(t)

	rng := rand.New(rand.NewPCG(1, 2))
	var want region.Set
	for i := 0; i < 60; i++ {
		r := region.Rect{
			X:      rng.IntN(400) - 40,
			Y:      rng.IntN(300) - 30,
			Width:  rng.IntN(80),
			Height: rng.IntN(80),
		}
		f.c.InvalidateScreenRect(r)
		want.Add(r.Intersect(testScreen.Bounds))
	}

	damage := f.c.Damage()
	require.NoError(t, damage.Check())
	assert.True(t, damage.Equal(want))

	state, err := f.c.ScreenState(0)
	require.NoError(t, err)
	if want.IsEmpty() {
		assert.Equal(t, ScreenClean, state)
	} else {
		assert.Equal(t, ScreenDamaged, state)
	}
}

func TestOcclusionOfThreeOpaqueWindows(t *testing.T) {
	a := region.Rect{X: 10, Y: 10, Width: 120, Height: 100}
	b := region.Rect{X: 60, Y: 40, Width: 120, Height: 100}
	cc := region.Rect{X: 100, Y: 0, Width: 50, Height: 200}
	f := newFixture(t, nil,
		platform.Window{ID: 1, Bounds: a, Opaque: true, Visible: true},
		platform.Window{ID: 2, Bounds: b, Opaque: true, Visible: true},
		platform.Window{ID: 3, Bounds: cc, Opaque: true, Visible: true},
	)
	assert.True(t, f.c.OcclusionsStale())
	f.settle(t)
	assert.False(t, f.c.OcclusionsStale())

	visA, ok := f.c.VisibleRegion(1)
	require.True(t, ok)
	wantA := region.NewSet(a)
	wantA.Subtract(b)
	wantA.Subtract(cc)
	assert.True(t, visA.Equal(wantA), "visible(A) = %s", visA.String())

	visC, ok := f.c.VisibleRegion(3)
	require.True(t, ok)
	assert.True(t, visC.Equal(region.NewSet(cc)))

	wallpaper := f.c.WallpaperVisibleRegion()
	wantWallpaper := region.NewSet(testScreen.Bounds)
	wantWallpaper.Subtract(a)
	wantWallpaper.Subtract(b)
	wantWallpaper.Subtract(cc)
	assert.True(t, wallpaper.Equal(wantWallpaper))
}

func TestTransparentWindowDoesNotOcclude(t *testing.T) {
	bottom := region.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	top := region.Rect{X: 50, Y: 50, Width: 100, Height: 100}
	f := newFixture(t, nil,
		platform.Window{ID: 1, Bounds: bottom, Opaque: true, Visible: true},
		platform.Window{ID: 2, Bounds: top, Opaque: false, Visible: true},
	)
	f.settle(t)

	vis, ok := f.c.VisibleRegion(1)
	require.True(t, ok)
	assert.True(t, vis.Equal(region.NewSet(bottom)))

	wallpaper := f.c.WallpaperVisibleRegion()
	assert.True(t, wallpaper.ContainsRect(region.Rect{X: 100, Y: 100, Width: 50, Height: 50}))
}

func TestHiddenWindowIsNotVisible(t *testing.T) {
	f := newFixture(t, nil, platform.Window{ID: 1, Bounds: region.Rect{Width: 50, Height: 50}, Opaque: true})
	f.settle(t)

	_, ok := f.c.VisibleRegion(1)
	assert.False(t, ok)
	assert.True(t, f.c.WallpaperVisibleRegion().Equal(region.NewSet(testScreen.Bounds)))
}

func TestWindowContentIsComposited(t *testing.T) {
	f := newFixture(t, nil,
		platform.Window{ID: 1, Bounds: region.Rect{X: 40, Y: 40, Width: 100, Height: 100}, Opaque: true, Visible: true, Content: solid(100, 100, red)},
		platform.Window{ID: 2, Bounds: region.Rect{X: 90, Y: 90, Width: 100, Height: 100}, Opaque: true, Visible: true, Content: solid(100, 100, blue)},
	)
	f.settle(t)

	frame := f.display.Frame(0)
	assert.Equal(t, red, frame.RGBAAt(50, 50))
	assert.Equal(t, blue, frame.RGBAAt(100, 100))
	assert.Equal(t, f.c.background, frame.RGBAAt(300, 220))
}

func TestStackChangesRepaintExposedArea(t *testing.T) {
	f := newFixture(t, nil)
	f.settle(t)

	bounds := region.Rect{X: 100, Y: 100, Width: 60, Height: 40}
	f.stack.Put(platform.Window{ID: 7, Bounds: bounds, Opaque: true, Visible: true, Content: solid(60, 40, red)})
	assert.True(t, f.c.OcclusionsStale())
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(bounds)))
	assert.Equal(t, red, f.display.Frame(0).RGBAAt(110, 110))

	f.stack.Remove(7)
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(bounds)))
	assert.Equal(t, f.c.background, f.display.Frame(0).RGBAAt(110, 110))
}

func TestInvalidateWindowRepaintsVisibleWindows(t *testing.T) {
	bounds := region.Rect{X: 100, Y: 100, Width: 60, Height: 40}
	f := newFixture(t, nil, platform.Window{ID: 1, Bounds: bounds, Opaque: true, Visible: true})
	f.settle(t)

	f.c.InvalidateWindow()
	assert.True(t, f.c.OcclusionsStale())
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(bounds)))
}

func TestCursorMoveFlushesOnlyOldAndNewRect(t *testing.T) {
	f := newFixture(t, nil)
	f.c.MoveCursor(30, 30)
	f.settle(t)

	r1 := f.c.CurrentCursorRect()
	require.True(t, f.c.CursorBackingValid(0))

	f.c.MoveCursor(200, 150)
	r2 := f.c.CurrentCursorRect()
	require.True(t, f.c.Compose())

	flushed := f.flushedSet()
	assert.True(t, flushed.Equal(region.NewSet(r1, r2)), "flushed %s", flushed.String())
	assert.True(t, f.c.CursorBackingValid(0))

	// The old position shows the background again.
	assert.Equal(t, f.c.background, f.display.Frame(0).RGBAAt(r1.X+1, r1.Y+1))
}


func TestCursorStraddlingScreensIsDrawnOnBoth(t *testing.T) {
	left := platform.Screen{ID: 0, Name: "left", Bounds: region.Rect{Width: 160, Height: 240}}
	right := platform.Screen{ID: 1, Name: "right", Bounds: region.Rect{X: 160, Width: 160, Height: 240}}
	f := newFixture(t, []platform.Screen{left, right})
	f.settle(t)

	f.c.MoveCursor(155, 40)
	require.True(t, f.c.Compose())
	cr := f.c.CurrentCursorRect()
	require.Equal(t, region.Rect{X: 155, Y: 40, Width: 12, Height: 19}, cr)

	black := color.RGBA{A: 0xff}
	// Row 5 of the arrow has its outline five pixels right of the tip,
	// which lands on the first column of the right screen.
	assert.Equal(t, black, f.display.Frame(0).RGBAAt(155, 40))
	assert.Equal(t, black, f.display.Frame(1).RGBAAt(160, 45))
	assert.True(t, f.c.CursorBackingValid(0))
	assert.True(t, f.c.CursorBackingValid(1))

	token := NewCapability(PermScreenshot)
	_, rect, ok, err := f.c.CursorBitmapForScreenshot(token, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cr, rect)

	// Moving fully onto the left screen restores the right one.
	f.c.MoveCursor(40, 40)
	require.True(t, f.c.Compose())
	assert.Equal(t, f.c.background, f.display.Frame(1).RGBAAt(160, 45))
	assert.False(t, f.c.CursorBackingValid(1))
	_, _, ok, err = f.c.CursorBitmapForScreenshot(token, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorRepaintedContentRestoresAndRedrawsSprite(t *testing.T) {
	f := newFixture(t, nil)
	f.c.MoveCursor(50, 50)
	f.settle(t)

	cr := f.c.CurrentCursorRect()
	require.True(t, f.c.SetBackgroundColor("red"))
	require.True(t, f.c.Compose())
	f.display.TakeFlushes()

	frame := f.display.Frame(0)
	// The arrow outline is black and its body white; the pixel beside the
	// tip was background and must now be red.
	assert.Equal(t, color.RGBA{A: 0xff}, frame.RGBAAt(cr.X, cr.Y))
	assert.Equal(t, red, frame.RGBAAt(cr.X+1, cr.Y))
	assert.True(t, f.c.CursorBackingValid(0))

	// Moving away restores red, not the old background, from the backing.
	f.c.MoveCursor(250, 200)
	require.True(t, f.c.Compose())
	assert.Equal(t, red, f.display.Frame(0).RGBAAt(cr.X, cr.Y))
}

func TestCursorAnimationAdvancesOnSteadyStep(t *testing.T) {
	f := newFixture(t, nil)
	anim := &Cursor{
		Name:          "busy",
		Frames:        []*image.RGBA{solid(8, 8, red), solid(8, 8, blue)},
		FrameInterval: 10 * time.Millisecond,
	}
	f.c.SetCursor(anim)
	f.c.MoveCursor(100, 100)
	f.settle(t)
	assert.Equal(t, red, f.display.Frame(0).RGBAAt(101, 101))

	t0 := time.Now()
	f.c.StepAnimations(t0)
	assert.Equal(t, 0, f.c.CurrentCursorFrame())
	f.c.StepAnimations(t0.Add(5 * time.Millisecond))
	assert.Equal(t, 0, f.c.CurrentCursorFrame())
	f.c.StepAnimations(t0.Add(10 * time.Millisecond))
	assert.Equal(t, 1, f.c.CurrentCursorFrame())

	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(f.c.CurrentCursorRect())))
	assert.Equal(t, blue, f.display.Frame(0).RGBAAt(101, 101))
}

func TestOverlayMoveDamagesOldAndNewRect(t *testing.T) {
	f := newFixture(t, nil)
	f.settle(t)

	box := &boxOverlay{rect: region.Rect{X: 100, Y: 100, Width: 20, Height: 20}, col: red}
	h := f.c.Overlays().Create(box)
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(box.rect)))
	assert.Equal(t, red, f.display.Frame(0).RGBAAt(105, 105))

	old := box.rect
	box.rect = box.rect.Translate(10, 0)
	h.Invalidate()
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(old, box.rect)))
	assert.Equal(t, f.c.background, f.display.Frame(0).RGBAAt(105, 105))
	assert.Equal(t, red, f.display.Frame(0).RGBAAt(125, 105))

	renders := box.renders
	last := box.rect
	h.Release()
	assert.False(t, h.Active())
	assert.Equal(t, 0, f.c.Overlays().Len())
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(last)))
	assert.Equal(t, renders, box.renders, "released overlay rendered")
	assert.Equal(t, f.c.background, f.display.Frame(0).RGBAAt(125, 105))

	h.Release()
	assert.False(t, f.c.Compose())
}

func TestOverlayIterationStopsEarly(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 5; i++ {
		f.c.Overlays().Create(&boxOverlay{rect: region.Rect{X: i * 30, Y: 100, Width: 10, Height: 10}})
	}

	seen := 0
	for range f.c.Overlays().All() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	o, ok := f.c.Overlays().Find(func(o Overlay) bool { return o.Rect().X == 90 })
	require.True(t, ok)
	assert.Equal(t, 90, o.Rect().X)
}

func TestThemeChangeNotifiesOverlaysAndRepaints(t *testing.T) {
	f := newFixture(t, nil)
	box := &boxOverlay{rect: region.Rect{X: 10, Y: 10, Width: 5, Height: 5}}
	f.c.Overlays().Create(box)
	f.settle(t)

	theme := DefaultTheme()
	theme.BadgeBackground = blue
	f.c.InvalidateAfterThemeOrFontChange(theme)
	assert.Equal(t, 1, box.themes)
	assert.True(t, f.c.OcclusionsStale())
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(testScreen.Bounds)))
}

func TestSetWallpaperModeRejectsUnknownMode(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.c.SetWallpaperMode("Tile"))
	path := f.c.WallpaperPath()

	assert.False(t, f.c.SetWallpaperMode("bogus"))
	assert.False(t, f.c.SetWallpaperMode("unchecked"))
	assert.Equal(t, WallpaperTile, f.c.WallpaperMode())
	assert.Equal(t, path, f.c.WallpaperPath())
}

func TestSetBackgroundColor(t *testing.T) {
	f := newFixture(t, nil)
	f.settle(t)
	prev := f.c.BackgroundColor()

	assert.False(t, f.c.SetBackgroundColor("not-a-color"))
	assert.False(t, f.c.SetBackgroundColor("#12"))
	assert.Equal(t, prev, f.c.BackgroundColor())
	assert.False(t, f.c.Compose())

	require.True(t, f.c.SetBackgroundColor("#0000ff"))
	assert.Equal(t, "#0000ff", f.c.BackgroundColor())
	require.True(t, f.c.Compose())
	assert.Equal(t, blue, f.display.Frame(0).RGBAAt(300, 200))
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallpaper.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestSetWallpaperLoadsAndFailureKeepsPrevious(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.c.SetWallpaperMode("tile"))
	f.settle(t)

	path := writePNG(t, solid(2, 2, blue))
	result := make(chan bool, 1)
	f.c.SetWallpaper(path, func(ok bool) { result <- ok })
	f.runTask(t)
	require.True(t, <-result)
	assert.Equal(t, path, f.c.WallpaperPath())

	require.True(t, f.c.Compose())
	assert.Equal(t, blue, f.display.Frame(0).RGBAAt(200, 150))

	f.c.SetWallpaper(filepath.Join(t.TempDir(), "missing.png"), func(ok bool) { result <- ok })
	f.runTask(t)
	assert.False(t, <-result)
	assert.Equal(t, path, f.c.WallpaperPath())

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	f.c.SetWallpaper(garbage, func(ok bool) { result <- ok })
	f.runTask(t)
	assert.False(t, <-result)
	assert.Equal(t, path, f.c.WallpaperPath())
}

func TestWallpaperWithoutDispatchAppliesOnNextCompose(t *testing.T) {
	display := platform.NewHeadless(testScreen)
	c, err := New(Options{Display: display, Logger: discardLogger()})
	require.NoError(t, err)
	require.True(t, c.SetWallpaperMode("tile"))
	c.Compose()

	path := writePNG(t, solid(2, 2, blue))
	result := make(chan bool, 1)
	c.SetWallpaper(path, func(ok bool) { result <- ok })

	require.Eventually(t, func() bool { return c.queuedTasks() == 1 }, 5*time.Second, time.Millisecond)
	assert.Empty(t, c.WallpaperPath())
	assert.Empty(t, result)

	require.True(t, c.Compose())
	require.True(t, <-result)
	assert.Equal(t, path, c.WallpaperPath())
	assert.Equal(t, blue, display.Frame(0).RGBAAt(200, 150))
	assert.Zero(t, c.queuedTasks())
}

func TestWallpaperCenterAndStretch(t *testing.T) {
	f := newFixture(t, nil)
	path := writePNG(t, solid(40, 20, red))
	f.c.SetWallpaper(path, nil)
	f.runTask(t)

	require.True(t, f.c.SetWallpaperMode("center"))
	f.settle(t)
	frame := f.display.Frame(0)
	assert.Equal(t, red, frame.RGBAAt(160, 120))
	assert.Equal(t, f.c.background, frame.RGBAAt(100, 120))

	require.True(t, f.c.SetWallpaperMode("stretch"))
	f.settle(t)
	assert.Equal(t, red, f.display.Frame(0).RGBAAt(300, 220))
}

func TestEmptyWallpaperPathClears(t *testing.T) {
	f := newFixture(t, nil)
	var got bool
	f.c.SetWallpaper("", func(ok bool) { got = ok })
	assert.True(t, got)
	assert.Equal(t, "", f.c.WallpaperPath())
}

func TestDisplayLinkRefCount(t *testing.T) {
	f := newFixture(t, nil)
	token := NewCapability(PermDisplayLink)

	require.NoError(t, f.c.IncrementDisplayLinkCount(token))
	require.NoError(t, f.c.IncrementDisplayLinkCount(token))
	require.NoError(t, f.c.DecrementDisplayLinkCount(token))
	assert.Equal(t, 1, f.c.DisplayLinkCount())
	assert.True(t, f.c.NotifyDisplayLinks())

	require.NoError(t, f.c.DecrementDisplayLinkCount(token))
	assert.Equal(t, 0, f.c.DisplayLinkCount())
	assert.False(t, f.c.NotifyDisplayLinks())

	err := f.c.DecrementDisplayLinkCount(token)
	require.ErrorIs(t, err, ErrUnbalancedDecrement)
	assert.Equal(t, 0, f.c.DisplayLinkCount())
}

func TestRefCountsAreScopedToTheHolder(t *testing.T) {
	f := newFixture(t, nil)
	a := NewCapability(PermDisplayLink)
	b := NewCapability(PermDisplayLink)

	require.NoError(t, f.c.IncrementDisplayLinkCount(a))
	require.ErrorIs(t, f.c.DecrementDisplayLinkCount(b), ErrUnbalancedDecrement)
	assert.Equal(t, 1, f.c.DisplayLinkCount())

	noPerm := NewCapability(PermScreenshot)
	require.ErrorIs(t, f.c.IncrementDisplayLinkCount(noPerm), ErrPermissionDenied)
	require.ErrorIs(t, f.c.IncrementDisplayLinkCount(Capability{}), ErrPermissionDenied)
	assert.Equal(t, 1, f.c.DisplayLinkCount())
}

func TestScreenNumbersShowPerScreenBadges(t *testing.T) {
	screens := []platform.Screen{
		{ID: 0, Bounds: region.Rect{Width: 320, Height: 240}},
		{ID: 1, Bounds: region.Rect{X: 320, Width: 320, Height: 240}},
	}
	f := newFixture(t, screens)
	f.settle(t)
	token := NewCapability(PermScreenNumbers)

	require.NoError(t, f.c.IncrementShowScreenNumber(token))
	require.NoError(t, f.c.IncrementShowScreenNumber(token))
	assert.Equal(t, 2, f.c.Overlays().Len())

	var numbers []int
	for o := range f.c.Overlays().All() {
		badge, ok := o.(*ScreenNumberOverlay)
		require.True(t, ok)
		numbers = append(numbers, badge.Number())
		assert.True(t, badge.Screen().Bounds.ContainsRect(badge.Rect()))
	}
	assert.Equal(t, []int{1, 2}, numbers)
	require.True(t, f.c.Compose())

	require.NoError(t, f.c.DecrementShowScreenNumber(token))
	assert.Equal(t, 2, f.c.Overlays().Len())
	require.NoError(t, f.c.DecrementShowScreenNumber(token))
	assert.Equal(t, 0, f.c.Overlays().Len())
	require.ErrorIs(t, f.c.DecrementShowScreenNumber(token), ErrUnbalancedDecrement)
}

func TestScreenshotRequiresPermission(t *testing.T) {
	f := newFixture(t, nil)
	f.c.MoveCursor(10, 10)
	f.settle(t)

	_, err := f.c.FrontBitmapForScreenshot(NewCapability(PermDisplayLink), 0)
	require.ErrorIs(t, err, ErrPermissionDenied)

	token := NewCapability(PermScreenshot)
	img, err := f.c.FrontBitmapForScreenshot(token, 0)
	require.NoError(t, err)
	assert.Equal(t, testScreen.Bounds.Image(), img.Bounds())
	assert.Equal(t, f.display.Frame(0).Pix, img.Pix)

	_, err = f.c.FrontBitmapForScreenshot(token, 9)
	require.ErrorIs(t, err, ErrUnknownScreen)

	sprite, rect, ok, err := f.c.CursorBitmapForScreenshot(token, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.c.CurrentCursorRect(), rect)
	assert.Equal(t, image.Pt(rect.Width, rect.Height), sprite.Bounds().Size())
}

func TestNativeSwapFlipsAndKeepsBackBufferCurrent(t *testing.T) {
	screen := testScreen
	screen.CanSetBuffer = true
	f := newFixture(t, []platform.Screen{screen})

	require.True(t, f.c.Compose())
	assert.Equal(t, 1, f.display.ActiveBuffer(0))
	s := f.c.screens[0]
	assert.True(t, s.buffersFlipped)
	assert.True(t, bytes.Equal(s.front.Pix, s.back.Pix))

	f.c.Overlays().Create(&boxOverlay{rect: region.Rect{X: 100, Y: 100, Width: 30, Height: 30}, col: red})
	require.True(t, f.c.Compose())
	assert.Equal(t, 0, f.display.ActiveBuffer(0))
	assert.False(t, s.buffersFlipped)
	assert.True(t, bytes.Equal(s.front.Pix, s.back.Pix))
	assert.Equal(t, red, f.display.Frame(0).RGBAAt(110, 110))
	assert.Equal(t, red, s.front.RGBAAt(110, 110))
}

func TestFailedFlushIsRetried(t *testing.T) {
	f := newFixture(t, nil)
	f.settle(t)

	boom := errors.New("device lost")
	f.display.FailFlushes(0, boom)
	r := region.Rect{X: 10, Y: 100, Width: 50, Height: 50}
	f.c.InvalidateScreenRect(r)
	assert.False(t, f.c.Compose())

	state, err := f.c.ScreenState(0)
	require.NoError(t, err)
	assert.Equal(t, ScreenRendered, state)
	assert.Contains(t, f.c.Status().LastError, "device lost")
	require.NoError(t, f.c.CheckInvariants())

	f.display.FailFlushes(0, nil)
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(r)))
	state, err = f.c.ScreenState(0)
	require.NoError(t, err)
	assert.Equal(t, ScreenClean, state)
}

func TestDragRemnantIsFlushedAsSpecialAndCleared(t *testing.T) {
	f := newFixture(t, nil)
	f.c.MoveCursor(40, 40)
	f.settle(t)

	f.c.BeginDrag("file.txt")
	require.True(t, f.c.Dragging())
	f.settle(t)
	first := f.c.drag.entry.lastRect
	require.False(t, first.Empty())

	f.c.MoveCursor(150, 120)
	require.True(t, f.c.Compose())
	flushed := f.flushedSet()
	assert.True(t, flushed.ContainsRect(first))
	assert.True(t, flushed.ContainsRect(f.c.drag.entry.lastRect))
	assert.True(t, f.c.screens[0].flushSpecial.IsEmpty())
	require.NoError(t, f.c.CheckInvariants())

	last := f.c.drag.entry.lastRect
	f.c.EndDrag()
	assert.False(t, f.c.Dragging())
	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().ContainsRect(last))
	assert.Equal(t, 0, f.c.Overlays().Len())
}

func TestFlushSetsStayDisjointWhenRetained(t *testing.T) {
	f := newFixture(t, nil,
		platform.Window{ID: 1, Bounds: region.Rect{X: 0, Y: 0, Width: 200, Height: 200}, Opaque: true, Visible: true},
		platform.Window{ID: 2, Bounds: region.Rect{X: 50, Y: 50, Width: 200, Height: 100}, Opaque: false, Visible: true},
	)
	f.settle(t)
	f.display.FailFlushes(0, errors.New("busy"))

	f.c.Overlays().Create(&boxOverlay{rect: region.Rect{X: 120, Y: 60, Width: 40, Height: 40}, col: red})
	f.c.BeginDrag("x")
	for i := 0; i < 4; i++ {
		f.c.MoveCursor(20+i*30, 30+i*20)
		f.c.InvalidateScreenRect(region.Rect{X: i * 40, Y: i * 30, Width: 60, Height: 60})
		f.c.Compose()
		require.NoError(t, f.c.CheckInvariants(), "pass %d", i)
	}
	s := f.c.screens[0]
	assert.False(t, s.flushTransparent.IsEmpty())
	assert.False(t, s.flushOpaque.IsEmpty())
}

func TestShowWindowGeometry(t *testing.T) {
	f := newFixture(t, nil, platform.Window{ID: 4, Bounds: region.Rect{X: 20, Y: 20, Width: 280, Height: 200}, Opaque: true, Visible: true})
	f.settle(t)

	require.ErrorIs(t, f.c.ShowWindowGeometry(99), ErrUnknownWindow)
	require.NoError(t, f.c.ShowWindowGeometry(4))
	o, ok := f.c.Overlays().Find(func(o Overlay) bool {
		_, ok := o.(*WindowGeometryOverlay)
		return ok
	})
	require.True(t, ok)
	geo := o.(*WindowGeometryOverlay)
	assert.Equal(t, "280x200 @ 20,20", geo.Text())
	assert.False(t, geo.Rect().Intersects(f.c.CurrentCursorRect()))
	require.True(t, f.c.Compose())

	f.stack.Remove(4)
	f.c.Compose()
	assert.Equal(t, 0, f.c.Overlays().Len())
}

func TestAllocationFailureIsReported(t *testing.T) {
	_, err := New(Options{
		Display:         platform.NewHeadless(testScreen),
		Logger:          discardLogger(),
		MaxBufferPixels: 100,
	})
	require.ErrorIs(t, err, ErrAllocation)

	_, err = New(Options{Display: platform.NewHeadless(), Logger: discardLogger()})
	require.ErrorIs(t, err, ErrAllocation)
}

func TestResolutionChangeReplacesBuffers(t *testing.T) {
	f := newFixture(t, nil)
	f.settle(t)
	token := NewCapability(PermScreenNumbers)
	require.NoError(t, f.c.IncrementShowScreenNumber(token))

	bigger := testScreen
	bigger.Bounds = region.Rect{Width: 640, Height: 480}
	f.display.SetScreens([]platform.Screen{bigger})
	require.NoError(t, f.c.ScreenResolutionChanged())
	assert.Equal(t, 1, f.c.Overlays().Len())

	require.True(t, f.c.Compose())
	assert.True(t, f.flushedSet().Equal(region.NewSet(bigger.Bounds)))
	require.NoError(t, f.c.CheckInvariants())
}
