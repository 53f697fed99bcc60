package imaging

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Annotation colors used when no override is configured.
var (
	// DefaultOutlineColor is the polygon outline color (green).
	DefaultOutlineColor = color.RGBA{0, 255, 0, 255}

	// DefaultHandColor is the hand label color (blue).
	DefaultHandColor = color.RGBA{0, 0, 255, 255}

	// DefaultArrowColor is the arrow label color (green).
	DefaultArrowColor = color.RGBA{0, 255, 0, 255}
)

// ParseColor parses a "#RRGGBB" hex string into an opaque RGBA color.
//
// The leading '#' is optional. Short forms such as "#0F0" are accepted.
func ParseColor(hex string) (color.RGBA, error) {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}
	if len(hex) == 4 {
		hex = string([]byte{'#', hex[1], hex[1], hex[2], hex[2], hex[3], hex[3]})
	}
	if len(hex) != 7 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB", hex)
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}

	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// HexColor formats a color as "#RRGGBB", dropping alpha.
func HexColor(c color.Color) string {
	cf, _ := colorful.MakeColor(c)
	return strings.ToUpper(cf.Hex())
}
