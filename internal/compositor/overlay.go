package compositor

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"strconv"
	"time"

	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
	"github.com/fogleman/gg"
)

const (
	dragCursorOffset  = 16
	dragStepInterval  = 120 * time.Millisecond
	dragDashLength    = 4
	geometryMargin    = 8
	badgeCornerRadius = 4
)

// badge is a pre-rendered label image shared by the overlay variants.
type badge struct {
	img *image.RGBA
}

func (b badge) size() (int, int) {
	if b.img == nil {
		return 0, 0
	}
	sz := b.img.Bounds().Size()
	return sz.X, sz.Y
}

// draw composites the part of the badge inside clip, with the badge placed
// at origin.
func (b badge) draw(dst draw.Image, clip region.Rect, origin image.Point) {
	if b.img == nil {
		return
	}
	r := clip.Image()
	draw.Draw(dst, r, b.img, b.img.Bounds().Min.Add(r.Min.Sub(origin)), draw.Over)
}

// renderBadge draws text on a rounded plate. A non-negative dashPhase adds
// a marching-ants border.
func renderBadge(theme Theme, text string, padX, padY int, dashPhase int) badge {
	face := theme.Face()

	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face)
	tw, th := measure.MeasureString(text)

	w := int(math.Ceil(tw)) + 2*padX
	h := int(math.Ceil(th)) + 2*padY
	dc := gg.NewContext(w, h)
	dc.SetFontFace(face)

	dc.SetColor(theme.BadgeBackground)
	dc.DrawRoundedRectangle(0.5, 0.5, float64(w)-1, float64(h)-1, badgeCornerRadius)
	dc.Fill()

	if dashPhase >= 0 {
		dc.SetColor(theme.BadgeForeground)
		dc.SetLineWidth(1)
		dc.SetDash(dragDashLength, dragDashLength)
		dc.SetDashOffset(float64(dashPhase))
		dc.DrawRoundedRectangle(1.5, 1.5, float64(w)-3, float64(h)-3, badgeCornerRadius)
		dc.Stroke()
	}

	dc.SetColor(theme.BadgeForeground)
	dc.DrawStringAnchored(text, float64(w)/2, float64(h)/2, 0.5, 0.35)

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		img = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(img, img.Bounds(), dc.Image(), image.Point{}, draw.Src)
	}
	return badge{img: img}
}

// ScreenNumberOverlay shows a screen's number centred on it.
type ScreenNumberOverlay struct {
	screen platform.Screen
	number int
	badge  badge
	rect   region.Rect
}

func newScreenNumberOverlay(screen platform.Screen, number int, theme Theme) *ScreenNumberOverlay {
	o := &ScreenNumberOverlay{screen: screen, number: number}
	o.ThemeChanged(theme)
	return o
}

// Screen returns the screen the badge labels.
func (o *ScreenNumberOverlay) Screen() platform.Screen { return o.screen }

// Number returns the displayed number.
func (o *ScreenNumberOverlay) Number() int { return o.number }

func (o *ScreenNumberOverlay) Rect() region.Rect { return o.rect }

func (o *ScreenNumberOverlay) Render(dst draw.Image, clip region.Rect) {
	o.badge.draw(dst, clip, image.Pt(o.rect.X, o.rect.Y))
}

func (o *ScreenNumberOverlay) ThemeChanged(theme Theme) {
	o.badge = renderBadge(theme, strconv.Itoa(o.number), 24, 16, -1)
	w, h := o.badge.size()
	b := o.screen.Bounds
	o.rect = region.Rect{
		X:      b.X + (b.Width-w)/2,
		Y:      b.Y + (b.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// DragOverlay follows the pointer during a drag and carries a label.
type DragOverlay struct {
	label    string
	theme    Theme
	pos      image.Point
	phase    int
	lastStep time.Time
	badge    badge
}

// NewDragOverlay returns a drag indicator positioned at the pointer.
func NewDragOverlay(label string, pos image.Point, theme Theme) *DragOverlay {
	o := &DragOverlay{label: label, pos: pos, theme: theme}
	o.redraw()
	return o
}

// Label returns the text carried by the drag.
func (o *DragOverlay) Label() string { return o.label }

// MoveTo repositions the indicator relative to the pointer.
func (o *DragOverlay) MoveTo(pos image.Point) { o.pos = pos }

func (o *DragOverlay) Rect() region.Rect {
	w, h := o.badge.size()
	return region.Rect{X: o.pos.X + dragCursorOffset, Y: o.pos.Y + dragCursorOffset, Width: w, Height: h}
}

func (o *DragOverlay) Render(dst draw.Image, clip region.Rect) {
	r := o.Rect()
	o.badge.draw(dst, clip, image.Pt(r.X, r.Y))
}

func (o *DragOverlay) ThemeChanged(theme Theme) {
	o.theme = theme
	o.redraw()
}

// Step advances the border animation.
func (o *DragOverlay) Step(now time.Time) bool {
	if now.Sub(o.lastStep) < dragStepInterval {
		return false
	}
	o.lastStep = now
	o.phase = (o.phase + 1) % (2 * dragDashLength)
	o.redraw()
	return true
}

func (o *DragOverlay) redraw() {
	o.badge = renderBadge(o.theme, o.label, 8, 4, o.phase)
}

// WindowGeometryOverlay shows a window's size and position inside it,
// kept clear of the pointer.
type WindowGeometryOverlay struct {
	window platform.Window
	avoid  region.Rect
	theme  Theme
	text   string
	badge  badge
}

// NewWindowGeometryOverlay returns a geometry badge for w.
func NewWindowGeometryOverlay(w platform.Window, avoid region.Rect, theme Theme) *WindowGeometryOverlay {
	o := &WindowGeometryOverlay{theme: theme}
	o.Update(w, avoid)
	return o
}

// WindowID returns the window the badge describes.
func (o *WindowGeometryOverlay) WindowID() platform.WindowID { return o.window.ID }

// Text returns the rendered label.
func (o *WindowGeometryOverlay) Text() string { return o.text }

// Update refreshes the described window and the area to keep clear.
func (o *WindowGeometryOverlay) Update(w platform.Window, avoid region.Rect) {
	o.window = w
	o.avoid = avoid
	b := w.Bounds
	text := fmt.Sprintf("%dx%d @ %d,%d", b.Width, b.Height, b.X, b.Y)
	if text != o.text || o.badge.img == nil {
		o.text = text
		o.badge = renderBadge(o.theme, text, 8, 4, -1)
	}
}

func (o *WindowGeometryOverlay) Rect() region.Rect {
	w, h := o.badge.size()
	return region.PlaceAvoiding(o.window.Bounds, []region.Rect{o.avoid}, w, h, geometryMargin)
}

func (o *WindowGeometryOverlay) Render(dst draw.Image, clip region.Rect) {
	r := o.Rect()
	o.badge.draw(dst, clip, image.Pt(r.X, r.Y))
}

func (o *WindowGeometryOverlay) ThemeChanged(theme Theme) {
	o.theme = theme
	o.badge = renderBadge(theme, o.text, 8, 4, -1)
}

var (
	_ Overlay  = (*ScreenNumberOverlay)(nil)
	_ Animated = (*DragOverlay)(nil)
	_ Overlay  = (*WindowGeometryOverlay)(nil)
)
