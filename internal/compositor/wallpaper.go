package compositor

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/1broseidon/tilecomp/internal/region"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// WallpaperMode selects how the wallpaper image fills a screen.
type WallpaperMode int

const (
	// WallpaperUnchecked means no mode was resolved yet. It is never a valid
	// rendering mode.
	WallpaperUnchecked WallpaperMode = iota
	WallpaperTile
	WallpaperCenter
	WallpaperStretch
)

func (m WallpaperMode) String() string {
	switch m {
	case WallpaperTile:
		return "tile"
	case WallpaperCenter:
		return "center"
	case WallpaperStretch:
		return "stretch"
	default:
		return "unchecked"
	}
}

// ParseWallpaperMode parses a rendering mode. "unchecked" is rejected.
func ParseWallpaperMode(s string) (WallpaperMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tile":
		return WallpaperTile, true
	case "center":
		return WallpaperCenter, true
	case "stretch":
		return WallpaperStretch, true
	}
	return WallpaperUnchecked, false
}

// SetBackgroundColor sets the colour painted where no wallpaper pixel
// lands. It returns false and keeps the old colour when s does not parse.
func (c *Compositor) SetBackgroundColor(s string) bool {
	col, err := ParseColor(s)
	if err != nil {
		c.logger.Debug("rejected background color", "value", s, "error", err)
		return false
	}
	if col == c.background {
		return true
	}
	c.background = col
	c.InvalidateScreen()
	return true
}

// BackgroundColor returns the background colour as a hex string.
func (c *Compositor) BackgroundColor() string { return FormatColor(c.background) }

// SetWallpaperMode changes the wallpaper mode. It returns false and keeps
// the old mode for unrecognized strings.
func (c *Compositor) SetWallpaperMode(s string) bool {
	mode, ok := ParseWallpaperMode(s)
	if !ok {
		c.logger.Debug("rejected wallpaper mode", "value", s)
		return false
	}
	if mode == c.wallpaperMode {
		return true
	}
	c.wallpaperMode = mode
	c.dropStretchCache()
	c.InvalidateScreen()
	return true
}

// WallpaperMode returns the active wallpaper mode.
func (c *Compositor) WallpaperMode() WallpaperMode { return c.wallpaperMode }

// WallpaperPath returns the path of the displayed wallpaper.
func (c *Compositor) WallpaperPath() string { return c.wallpaperPath }

// SetWallpaper loads the image at path in the background and displays it.
// done, if set, receives false when the file cannot be read or decoded, in
// which case the previous wallpaper stays. An empty path removes the
// wallpaper. Loads superseded by a later call report false.
func (c *Compositor) SetWallpaper(path string, done func(bool)) {
	c.wallpaperGen++
	gen := c.wallpaperGen
	finish := func(ok bool) {
		if done != nil {
			done(ok)
		}
	}

	if path == "" {
		c.applyWallpaper("", nil)
		finish(true)
		return
	}

	go func() {
		img, err := loadWallpaper(path)
		c.dispatchTask(func() {
			switch {
			case err != nil:
				c.logger.Warn("wallpaper load failed", "path", path, "error", err)
				finish(false)
			case gen != c.wallpaperGen:
				c.logger.Debug("wallpaper load superseded", "path", path)
				finish(false)
			default:
				c.applyWallpaper(path, img)
				c.logger.Info("wallpaper loaded", "path", path, "size", img.Bounds().Size())
				finish(true)
			}
		})
	}()
}

func (c *Compositor) applyWallpaper(path string, img *image.RGBA) {
	c.wallpaper = img
	c.wallpaperPath = path
	c.dropStretchCache()
	c.InvalidateScreen()
}

func (c *Compositor) dropStretchCache() {
	for _, s := range c.screens {
		s.stretched = nil
	}
}

func loadWallpaper(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("decode %s: empty image", path)
	}
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	return img, nil
}

// paintWallpaper fills r on screen s with the background colour and the
// wallpaper in the active mode.
func (c *Compositor) paintWallpaper(s *screenData, r region.Rect) {
	ir := r.Image()
	draw.Draw(s.back, ir, image.NewUniform(c.background), image.Point{}, draw.Src)
	if c.wallpaper == nil {
		return
	}

	sb := s.screen.Bounds
	wb := c.wallpaper.Bounds()
	switch c.wallpaperMode {
	case WallpaperTile:
		w, h := wb.Dx(), wb.Dy()
		x0 := sb.X + ((r.X-sb.X)/w)*w
		y0 := sb.Y + ((r.Y-sb.Y)/h)*h
		for ty := y0; ty < r.Bottom(); ty += h {
			for tx := x0; tx < r.Right(); tx += w {
				tile := image.Rect(tx, ty, tx+w, ty+h).Intersect(ir)
				draw.Draw(s.back, tile, c.wallpaper, tile.Min.Sub(image.Pt(tx, ty)), draw.Over)
			}
		}
	case WallpaperCenter:
		origin := image.Pt(sb.X+(sb.Width-wb.Dx())/2, sb.Y+(sb.Height-wb.Dy())/2)
		dst := wb.Add(origin).Intersect(ir)
		if !dst.Empty() {
			draw.Draw(s.back, dst, c.wallpaper, dst.Min.Sub(origin), draw.Over)
		}
	case WallpaperStretch:
		if s.stretched == nil {
			s.stretched = image.NewRGBA(sb.Image())
			xdraw.ApproxBiLinear.Scale(s.stretched, s.stretched.Bounds(), c.wallpaper, wb, xdraw.Src, nil)
		}
		draw.Draw(s.back, ir, s.stretched, ir.Min, draw.Over)
	}
}
