package detection

import (
	"math"
)

// BoundingBox is an axis-aligned box in pixel coordinates. X and Y are the
// top-left corner; Width and Height count pixels inclusively, so a single
// point has a 1x1 box.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Moments holds the spatial moments of a closed polygon up to first order.
type Moments struct {
	M00 float64 `json:"m00"` // Area
	M10 float64 `json:"m10"` // First moment about the y axis
	M01 float64 `json:"m01"` // First moment about the x axis
}

// Centroid returns (M10/M00, M01/M00) truncated toward zero. ok is false
// when the area is zero and the centroid is undefined.
func (m Moments) Centroid() (p Point, ok bool) {
	if m.M00 == 0 {
		return Point{}, false
	}
	return Point{X: int(m.M10 / m.M00), Y: int(m.M01 / m.M00)}, true
}

// ContourArea returns the unsigned area enclosed by the contour polygon,
// using the shoelace formula. Contours with fewer than three points have
// zero area.
func ContourArea(c Contour) float64 {
	if len(c) < 3 {
		return 0
	}
	var sum float64
	for i := range c {
		j := (i + 1) % len(c)
		sum += float64(c[i].X*c[j].Y - c[j].X*c[i].Y)
	}
	return math.Abs(sum) / 2
}

// ArcLength returns the length of the contour. When closed is true the
// segment from the last point back to the first is included.
func ArcLength(c Contour, closed bool) float64 {
	if len(c) < 2 {
		return 0
	}
	var length float64
	for i := 1; i < len(c); i++ {
		length += distance(c[i-1], c[i])
	}
	if closed {
		length += distance(c[len(c)-1], c[0])
	}
	return length
}

// BoundingRect returns the smallest box containing every point.
func BoundingRect(c Contour) BoundingBox {
	if len(c) == 0 {
		return BoundingBox{}
	}
	minX, minY := c[0].X, c[0].Y
	maxX, maxY := minX, minY
	for _, p := range c[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// ContourMoments computes the area and first-order moments of the polygon
// described by the contour using Green's theorem. The result does not depend
// on the contour's orientation.
func ContourMoments(c Contour) Moments {
	if len(c) < 3 {
		return Moments{}
	}

	var a00, a10, a01 float64
	for i := range c {
		p := c[i]
		q := c[(i+1)%len(c)]
		cross := float64(p.X*q.Y - q.X*p.Y)
		a00 += cross
		a10 += cross * float64(p.X+q.X)
		a01 += cross * float64(p.Y+q.Y)
	}

	m := Moments{M00: a00 / 2, M10: a10 / 6, M01: a01 / 6}
	if m.M00 < 0 {
		m = Moments{M00: -m.M00, M10: -m.M10, M01: -m.M01}
	}
	return m
}

// ApproxPolyDP approximates a contour with fewer vertices using the
// Douglas-Peucker algorithm. No point of the original contour lies farther
// than epsilon from the approximation.
//
// # Algorithm (closed contours)
//
//  1. Pick two far-apart anchor points by repeating a farthest-point search
//     three times. If no point is farther than epsilon from the first anchor,
//     the whole contour collapses to that point.
//  2. Split the contour at the anchors and recursively simplify each half,
//     keeping the point farthest from the chord whenever it exceeds epsilon.
//  3. Remove remaining vertices that are nearly collinear with their
//     neighbors.
//
// Open contours skip the anchor search and keep both end points.
func ApproxPolyDP(c Contour, epsilon float64, closed bool) Contour {
	n := len(c)
	if n <= 2 {
		out := make(Contour, n)
		copy(out, c)
		return out
	}
	if epsilon < 0 {
		epsilon = 0
	}

	if !closed {
		out := douglasPeucker(c, 0, n-1, epsilon, nil)
		return append(out, c[n-1])
	}

	start, end := 0, 0
	var maxDist float64
	for iter := 0; iter < 3; iter++ {
		if iter > 0 {
			start = end
		}
		maxDist = 0
		for j := 0; j < n; j++ {
			if d := distance(c[start], c[j]); d > maxDist {
				maxDist = d
				end = j
			}
		}
	}
	if maxDist <= epsilon {
		return Contour{c[start]}
	}

	// Rotate so the contour starts at the first anchor, then simplify both
	// arcs between the anchors.
	rotated := make(Contour, 0, n+1)
	rotated = append(rotated, c[start:]...)
	rotated = append(rotated, c[:start]...)
	rotated = append(rotated, c[start])
	mid := (end - start + n) % n

	out := douglasPeucker(rotated, 0, mid, epsilon, nil)
	out = douglasPeucker(rotated, mid, n, epsilon, out)

	return removeCollinear(out, epsilon)
}

// douglasPeucker appends the simplified vertices of pts[from:to] to out. The
// end point pts[to] is not appended; the caller closes the run.
func douglasPeucker(pts Contour, from, to int, epsilon float64, out Contour) Contour {
	if to-from < 2 {
		return append(out, pts[from])
	}

	a, b := pts[from], pts[to]
	maxDist := -1.0
	split := from
	for i := from + 1; i < to; i++ {
		d := lineDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			split = i
		}
	}

	if maxDist <= epsilon {
		return append(out, a)
	}

	out = douglasPeucker(pts, from, split, epsilon, out)
	return douglasPeucker(pts, split, to, epsilon, out)
}

// removeCollinear drops vertices of a closed polygon that lie within
// epsilon/sqrt(2) of the line through their neighbors and between them, as
// long as more than two vertices remain. Purely horizontal or vertical
// neighbor pairs are left alone.
func removeCollinear(poly Contour, epsilon float64) Contour {
	if len(poly) <= 2 {
		return poly
	}

	out := make(Contour, len(poly))
	copy(out, poly)

	for i := 0; i < len(out) && len(out) > 2; {
		prev := out[(i-1+len(out))%len(out)]
		cur := out[i]
		next := out[(i+1)%len(out)]

		dx := float64(next.X - prev.X)
		dy := float64(next.Y - prev.Y)
		cross := math.Abs(float64(cur.X-prev.X)*dy - float64(cur.Y-prev.Y)*dx)
		inner := float64(cur.X-prev.X)*float64(next.X-cur.X) + float64(cur.Y-prev.Y)*float64(next.Y-cur.Y)

		if dx != 0 && dy != 0 && inner >= 0 && cross*cross <= 0.5*epsilon*epsilon*(dx*dx+dy*dy) {
			out = append(out[:i], out[i+1:]...)
			continue
		}
		i++
	}
	return out
}

// lineDistance returns the perpendicular distance from p to the line through
// a and b, or the distance to a when a and b coincide.
func lineDistance(p, a, b Point) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	if dx == 0 && dy == 0 {
		return distance(p, a)
	}
	cross := math.Abs(float64(p.X-a.X)*dy - float64(p.Y-a.Y)*dx)
	return cross / math.Hypot(dx, dy)
}

func distance(a, b Point) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}
