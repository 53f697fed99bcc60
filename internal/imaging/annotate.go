package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas is a mutable copy of a frame for drawing annotations.
type Canvas struct {
	img *image.NRGBA
}

// NewCanvas copies img into a new drawable canvas. The source image is not
// modified.
func NewCanvas(img image.Image) *Canvas {
	return &Canvas{img: imaging.Clone(img)}
}

// Image returns the annotated image.
func (c *Canvas) Image() image.Image {
	return c.img
}

// Bounds returns the canvas bounds.
func (c *Canvas) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// DrawPolygon draws a closed polygon outline through pts.
//
// Each edge is rasterized with Bresenham's algorithm and stamped with a
// square brush so the stroke is roughly thickness pixels wide. Fewer than two
// points draws a single brush stamp (or nothing for an empty slice).
func (c *Canvas) DrawPolygon(pts []image.Point, col color.Color, thickness int) {
	if len(pts) == 0 {
		return
	}
	if thickness < 1 {
		thickness = 1
	}
	if len(pts) == 1 {
		c.stamp(pts[0].X, pts[0].Y, col, thickness)
		return
	}
	for i := range pts {
		c.DrawLine(pts[i], pts[(i+1)%len(pts)], col, thickness)
	}
}

// DrawLine draws a straight line from a to b.
func (c *Canvas) DrawLine(a, b image.Point, col color.Color, thickness int) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	x, y := a.X, a.Y

	for {
		c.stamp(x, y, col, thickness)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// DrawLabel renders text with its baseline starting at (x, y), using the
// 7x13 basic font. The text is drawn twice, one pixel apart, for a bold
// stroke that stays readable on busy frames. Text running off the canvas is
// clipped.
func (c *Canvas) DrawLabel(x, y int, text string, col color.Color) {
	for _, offset := range []int{0, 1} {
		d := &font.Drawer{
			Dst:  c.img,
			Src:  image.NewUniform(col),
			Face: basicfont.Face7x13,
			Dot:  fixed.Point26_6{X: fixed.I(x + offset), Y: fixed.I(y)},
		}
		d.DrawString(text)
	}
}

// stamp fills a thickness x thickness square centered on (x, y).
func (c *Canvas) stamp(x, y int, col color.Color, thickness int) {
	r := thickness / 2
	bounds := c.img.Bounds()
	for py := y - r; py <= y-r+thickness-1; py++ {
		for px := x - r; px <= x-r+thickness-1; px++ {
			if (image.Point{X: px, Y: py}).In(bounds) {
				c.img.Set(px, py, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
