package compositor

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor parses an SVG colour name or a #rgb, #rrggbb or #rrggbbaa hex
// string.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.RGBA{}, fmt.Errorf("empty color")
	}
	if s[0] == '#' {
		return parseHex(s[1:])
	}
	low := strings.ToLower(s)
	if low == "transparent" {
		return color.RGBA{}, nil
	}
	nc, ok := colornames.Map[low]
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown color name %q", s)
	}
	return nc, nil
}

func parseHex(x string) (color.RGBA, error) {
	var digits int
	switch len(x) {
	case 3:
		digits = 1
	case 6, 8:
		digits = 2
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", "#"+x)
	}

	var ch [4]uint8
	ch[3] = 0xff
	for i := 0; i*digits < len(x); i++ {
		v, err := strconv.ParseUint(x[i*digits:(i+1)*digits], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid hex color %q", "#"+x)
		}
		if digits == 1 {
			v |= v << 4
		}
		ch[i] = uint8(v)
	}

	// color.RGBA is alpha-premultiplied.
	a := uint32(ch[3])
	return color.RGBA{
		R: uint8(uint32(ch[0]) * a / 0xff),
		G: uint8(uint32(ch[1]) * a / 0xff),
		B: uint8(uint32(ch[2]) * a / 0xff),
		A: ch[3],
	}, nil
}

// FormatColor renders c as #rrggbb, or #rrggbbaa when not opaque.
func FormatColor(c color.RGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}
