package detection

import (
	"github.com/naomi-pc/Autonomous-Vehicle/internal/imaging"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Contour is a closed boundary given as an ordered list of pixel positions.
// The last point connects back to the first.
type Contour []Point

// neighbors lists the 8-connected offsets in clockwise order (y grows
// downward), starting east.
var neighbors = [8]Point{
	{X: 1, Y: 0},   // E
	{X: 1, Y: 1},   // SE
	{X: 0, Y: 1},   // S
	{X: -1, Y: 1},  // SW
	{X: -1, Y: 0},  // W
	{X: -1, Y: -1}, // NW
	{X: 0, Y: -1},  // N
	{X: 1, Y: -1},  // NE
}

const dirWest = 4

// FindExternalContours returns the outer boundary of every foreground
// component of mask that is not enclosed by another component.
//
// Foreground is 8-connected and background 4-connected. A component is
// external when it touches the image border or is adjacent to background
// that reaches the border; shapes sitting inside the hole of another shape
// are skipped, as are the hole boundaries themselves.
//
// Boundaries are traced clockwise from the component's first pixel in raster
// order and compressed so that straight horizontal, vertical and diagonal runs
// keep only their end points. Contours are returned in raster order of their
// first pixel.
//
// # Algorithm
//
//  1. Background flood fill from every border pixel (4-connected)
//  2. Raster scan for unvisited foreground; flood fill the component
//     (8-connected) and check whether it touches outside background
//  3. Moore-neighbor tracing of the component's outer boundary
//  4. Chain compression of the traced boundary
func FindExternalContours(mask *imaging.Binary) []Contour {
	width, height := mask.Width, mask.Height
	if width == 0 || height == 0 {
		return nil
	}

	outside := markOutsideBackground(mask)
	visited := make([]bool, width*height)
	contours := make([]Contour, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if !mask.Pix[idx] || visited[idx] {
				continue
			}

			external := floodComponent(mask, visited, outside, x, y)
			if !external {
				continue
			}

			boundary := traceBoundary(mask, Point{X: x, Y: y})
			contours = append(contours, compressChain(boundary))
		}
	}

	return contours
}

// markOutsideBackground flags every background pixel 4-connected to the
// image border.
func markOutsideBackground(mask *imaging.Binary) []bool {
	width, height := mask.Width, mask.Height
	outside := make([]bool, width*height)
	stack := make([]Point, 0, 2*(width+height))

	push := func(x, y int) {
		if x < 0 || y < 0 || x >= width || y >= height {
			return
		}
		idx := y*width + x
		if outside[idx] || mask.Pix[idx] {
			return
		}
		outside[idx] = true
		stack = append(stack, Point{X: x, Y: y})
	}

	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X+1, p.Y)
		push(p.X-1, p.Y)
		push(p.X, p.Y+1)
		push(p.X, p.Y-1)
	}

	return outside
}

// floodComponent marks the 8-connected component containing (startX, startY)
// as visited and reports whether it borders the outside background or the
// image edge.
func floodComponent(mask *imaging.Binary, visited, outside []bool, startX, startY int) bool {
	width, height := mask.Width, mask.Height
	stack := []Point{{X: startX, Y: startY}}
	visited[startY*width+startX] = true
	external := false

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X == 0 || p.Y == 0 || p.X == width-1 || p.Y == height-1 {
			external = true
		}

		for i, d := range neighbors {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < 0 || ny < 0 || nx >= width || ny >= height {
				continue
			}
			idx := ny*width + nx
			if mask.Pix[idx] {
				if !visited[idx] {
					visited[idx] = true
					stack = append(stack, Point{X: nx, Y: ny})
				}
				continue
			}
			// Even directions are the 4-connected ones
			if i%2 == 0 && outside[idx] {
				external = true
			}
		}
	}

	return external
}

// traceBoundary follows the outer boundary of the component whose first
// raster-order pixel is start, using Moore-neighbor tracing.
//
// Tracing stops when the walk is back at start and about to repeat its first
// step. Thin parts of a shape are walked in both directions, so a pixel may
// appear more than once.
func traceBoundary(mask *imaging.Binary, start Point) Contour {
	boundary := Contour{start}

	// start is the first pixel in raster order, so its west neighbor is
	// background.
	first, firstBack, ok := nextBoundaryPixel(mask, start, dirWest)
	if !ok {
		return boundary
	}

	cur, back := first, firstBack
	limit := 4*mask.Width*mask.Height + 8
	for i := 0; i < limit; i++ {
		if cur == start {
			next, _, _ := nextBoundaryPixel(mask, cur, back)
			if next == first {
				break
			}
		}
		boundary = append(boundary, cur)
		cur, back, _ = nextBoundaryPixel(mask, cur, back)
	}

	// The walk ends on start; drop the duplicate closing point.
	if len(boundary) > 1 && boundary[len(boundary)-1] == start {
		boundary = boundary[:len(boundary)-1]
	}
	return boundary
}

// nextBoundaryPixel scans the neighbors of p clockwise, beginning just after
// the backtrack direction, and returns the first foreground neighbor together
// with the backtrack direction to use from that neighbor.
func nextBoundaryPixel(mask *imaging.Binary, p Point, back int) (Point, int, bool) {
	for i := 1; i <= 8; i++ {
		dir := (back + i) % 8
		q := Point{X: p.X + neighbors[dir].X, Y: p.Y + neighbors[dir].Y}
		if !mask.At(q.X, q.Y) {
			continue
		}
		// The last background pixel examined becomes the new backtrack
		prev := (back + i - 1) % 8
		b := Point{X: p.X + neighbors[prev].X, Y: p.Y + neighbors[prev].Y}
		return q, directionTo(q, b), true
	}
	return p, back, false
}

// directionTo returns the neighbor index leading from a to its 8-neighbor b.
func directionTo(a, b Point) int {
	dx, dy := b.X-a.X, b.Y-a.Y
	for i, d := range neighbors {
		if d.X == dx && d.Y == dy {
			return i
		}
	}
	return dirWest
}

// compressChain removes the interior points of straight runs, keeping only
// the points where the step direction changes. The closing step from the
// last point back to the first is taken into account.
func compressChain(boundary Contour) Contour {
	n := len(boundary)
	if n <= 2 {
		out := make(Contour, n)
		copy(out, boundary)
		return out
	}

	out := make(Contour, 0, n)
	for i := 0; i < n; i++ {
		prev := boundary[(i-1+n)%n]
		cur := boundary[i]
		next := boundary[(i+1)%n]
		inX, inY := cur.X-prev.X, cur.Y-prev.Y
		outX, outY := next.X-cur.X, next.Y-cur.Y
		if inX == outX && inY == outY {
			continue
		}
		out = append(out, cur)
	}

	if len(out) == 0 {
		// Degenerate loop where every step is identical cannot close; keep
		// the first point so the contour is not lost.
		out = append(out, boundary[0])
	}
	return out
}
