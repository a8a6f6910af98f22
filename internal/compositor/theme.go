package compositor

import (
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Theme carries the look of compositor-drawn chrome.
type Theme struct {
	FontPath        string
	FontSize        float64
	BadgeBackground color.RGBA
	BadgeForeground color.RGBA
	// WindowFace fills windows that have no content image.
	WindowFace color.RGBA

	face font.Face
}

// DefaultTheme uses the built-in bitmap font.
func DefaultTheme() Theme {
	return Theme{
		FontSize:        13,
		BadgeBackground: color.RGBA{R: 0x20, G: 0x20, B: 0x28, A: 0xe0},
		BadgeForeground: color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff},
		WindowFace:      color.RGBA{R: 0xd4, G: 0xd0, B: 0xc8, A: 0xff},
		face:            basicfont.Face7x13,
	}
}

// LoadFont resolves FontPath into a face. An empty path selects the
// built-in bitmap font.
func (t Theme) LoadFont() (Theme, error) {
	if t.FontPath == "" {
		t.face = basicfont.Face7x13
		return t, nil
	}
	size := t.FontSize
	if size <= 0 {
		size = 13
	}
	face, err := gg.LoadFontFace(t.FontPath, size)
	if err != nil {
		t.face = basicfont.Face7x13
		return t, fmt.Errorf("load font %s: %w", t.FontPath, err)
	}
	t.face = face
	return t, nil
}

// Face returns the loaded font face, falling back to the bitmap font.
func (t Theme) Face() font.Face {
	if t.face == nil {
		return basicfont.Face7x13
	}
	return t.face
}

// InvalidateAfterThemeOrFontChange applies a new theme: every overlay is
// told about it, occlusions are recomputed and the whole desktop repaints.
func (c *Compositor) InvalidateAfterThemeOrFontChange(theme Theme) {
	c.theme = theme
	c.overlays.themeChanged(theme)
	c.InvalidateOcclusions()
	c.InvalidateScreen()
}

// Theme returns the active theme.
func (c *Compositor) Theme() Theme { return c.theme }
