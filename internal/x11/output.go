package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// Output is an override-redirect window covering one monitor. Composited
// frames are written into its xgraphics surface and painted rect by rect.
type Output struct {
	win    *xwindow.Window
	img    *xgraphics.Image
	origin image.Point
}

// NewOutput creates and maps the output window for monitor m.
func (c *Connection) NewOutput(m Monitor) (*Output, error) {
	win, err := xwindow.Generate(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("generate output window: %w", err)
	}

	// Value list order follows the bit positions of the mask (low to high).
	win.Create(c.Root, m.X, m.Y, m.Width, m.Height,
		xproto.CwBackPixel|xproto.CwOverrideRedirect, 0, 1)

	img := xgraphics.New(c.XUtil, image.Rect(0, 0, m.Width, m.Height))
	if err := img.XSurfaceSet(win.Id); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("set output surface: %w", err)
	}
	win.Map()

	return &Output{
		win:    win,
		img:    img,
		origin: image.Pt(m.X, m.Y),
	}, nil
}

// Paint copies rects of src into the surface and paints them. src and rects
// use root coordinates.
func (o *Output) Paint(src *image.RGBA, rects []image.Rectangle) {
	local := make([]image.Rectangle, 0, len(rects))
	for _, r := range rects {
		lr := r.Sub(o.origin).Intersect(o.img.Rect)
		if lr.Empty() {
			continue
		}
		copyToBGRA(o.img, src, lr, o.origin)
		local = append(local, lr)
	}
	if len(local) > 0 {
		o.img.XPaintRects(o.win.Id, local...)
	}
}

// Destroy frees the surface and the window.
func (o *Output) Destroy() {
	o.img.Destroy()
	o.win.Destroy()
}

// copyToBGRA converts the lr area (surface coordinates) from src, which is
// offset by origin, into the BGRA layout xgraphics expects.
func copyToBGRA(dst *xgraphics.Image, src *image.RGBA, lr image.Rectangle, origin image.Point) {
	for y := lr.Min.Y; y < lr.Max.Y; y++ {
		si := src.PixOffset(lr.Min.X+origin.X, y+origin.Y)
		di := (y-dst.Rect.Min.Y)*dst.Stride + (lr.Min.X-dst.Rect.Min.X)*4
		for x := lr.Min.X; x < lr.Max.X; x++ {
			dst.Pix[di+0] = src.Pix[si+2]
			dst.Pix[di+1] = src.Pix[si+1]
			dst.Pix[di+2] = src.Pix[si+0]
			dst.Pix[di+3] = src.Pix[si+3]
			si += 4
			di += 4
		}
	}
}
