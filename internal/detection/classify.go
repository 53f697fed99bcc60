package detection

import (
	"fmt"
	"sort"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/imaging"
)

// Kind is the classification assigned to a kept contour.
type Kind string

const (
	// KindOutline is a contour large enough to draw but matching no class.
	KindOutline Kind = "outline"

	// KindHand is a large contour with an irregular, many-sided outline.
	KindHand Kind = "hand"

	// KindArrow is a triangle or seven-sided arrow with a known direction.
	KindArrow Kind = "arrow"
)

// Direction is the way an arrow points.
type Direction string

const (
	// DirectionNone is used for shapes that are not arrows.
	DirectionNone Direction = ""

	// DirectionLeft is an arrow whose area sits right of its midline.
	DirectionLeft Direction = "left"

	// DirectionRight is an arrow whose area sits left of its midline.
	DirectionRight Direction = "right"
)

// Thresholds holds the tunable constants of the classifier.
type Thresholds struct {
	// EpsilonFactor scales the closed arc length into the polygon
	// approximation tolerance.
	EpsilonFactor float64 `json:"epsilon_factor"`

	// MinArea is the contour area a shape must exceed to be kept.
	MinArea float64 `json:"min_area"`

	// HandMinArea is the contour area a hand must exceed.
	HandMinArea float64 `json:"hand_min_area"`

	// HandMinSides is the vertex count a hand polygon must exceed.
	HandMinSides int `json:"hand_min_sides"`

	// ArrowSides lists the polygon vertex counts treated as arrows.
	ArrowSides []int `json:"arrow_sides"`
}

// DefaultThresholds returns the classifier constants tuned for dark cut-out
// shapes on a light background at CIF resolution.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EpsilonFactor: 0.03,
		MinArea:       500,
		HandMinArea:   1000,
		HandMinSides:  8,
		ArrowSides:    []int{3, 7},
	}
}

// Validate checks that the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.EpsilonFactor <= 0 {
		return fmt.Errorf("epsilon factor must be positive, got %v", t.EpsilonFactor)
	}
	if t.MinArea < 0 {
		return fmt.Errorf("min area must not be negative, got %v", t.MinArea)
	}
	if t.HandMinArea < 0 {
		return fmt.Errorf("hand min area must not be negative, got %v", t.HandMinArea)
	}
	if t.HandMinSides < 0 {
		return fmt.Errorf("hand min sides must not be negative, got %d", t.HandMinSides)
	}
	for _, s := range t.ArrowSides {
		if s < 3 {
			return fmt.Errorf("arrow side count must be at least 3, got %d", s)
		}
	}
	return nil
}

// Shape is a kept contour with its classification and geometry.
type Shape struct {
	// Kind is the assigned class.
	Kind Kind `json:"kind"`

	// Direction is set for arrows only.
	Direction Direction `json:"direction,omitempty"`

	// Polygon is the approximated outline that gets drawn.
	Polygon Contour `json:"polygon"`

	// Sides is the number of polygon vertices.
	Sides int `json:"sides"`

	// Area is the contour area in square pixels.
	Area float64 `json:"area"`

	// Perimeter is the closed arc length of the contour.
	Perimeter float64 `json:"perimeter"`

	// Bounds is the bounding box of the polygon.
	Bounds BoundingBox `json:"bounds"`

	// Centroid is the contour centroid, set for arrows only.
	Centroid *Point `json:"centroid,omitempty"`
}

// Result contains every shape kept in one frame.
type Result struct {
	// Shapes is sorted by area, largest first.
	Shapes []Shape `json:"shapes"`

	// Contours is the number of external contours found before filtering.
	Contours int `json:"contours"`

	// Hands is the number of shapes classified as hands.
	Hands int `json:"hands"`

	// Arrows is the number of shapes classified as arrows.
	Arrows int `json:"arrows"`
}

// Classifier applies Thresholds to contours.
type Classifier struct {
	thresholds Thresholds
	arrowSides map[int]bool
}

// NewClassifier creates a classifier. It returns an error for invalid
// thresholds.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	sides := make(map[int]bool, len(t.ArrowSides))
	for _, s := range t.ArrowSides {
		sides[s] = true
	}
	return &Classifier{thresholds: t, arrowSides: sides}, nil
}

// Thresholds returns the classifier constants.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify turns one contour into a Shape.
//
// Parameters:
//   - contour: A closed external contour in mask coordinates, as returned by
//     FindExternalContours.
//
// Returns:
//   - Shape: The approximated polygon with its class, area, perimeter and
//     bounding box. Arrows also carry Direction and Centroid.
//   - bool: False when the contour area does not exceed MinArea; the Shape
//     is then zero and the contour should be ignored.
//
// # Algorithm
//
//  1. Contour area by the shoelace formula, filtered against MinArea.
//  2. Polygon approximation with tolerance EpsilonFactor times the closed
//     arc length.
//  3. Bounding box of the polygon.
//  4. Class by the rules below, checked in order.
//
// # Rules
//
//   - Hand: area > HandMinArea and more than HandMinSides polygon vertices.
//   - Arrow: otherwise, a vertex count listed in ArrowSides and a non-zero
//     contour area moment. The arrow points right when the centroid lies left
//     of the bounding box midline (x + width/2, integer division), since the
//     bulk of the area is the tail; otherwise it points left.
//   - Outline: anything else that passed the area filter.
func (c *Classifier) Classify(contour Contour) (Shape, bool) {
	area := ContourArea(contour)
	if area <= c.thresholds.MinArea {
		return Shape{}, false
	}

	perimeter := ArcLength(contour, true)
	polygon := ApproxPolyDP(contour, c.thresholds.EpsilonFactor*perimeter, true)
	bounds := BoundingRect(polygon)

	shape := Shape{
		Kind:      KindOutline,
		Polygon:   polygon,
		Sides:     len(polygon),
		Area:      area,
		Perimeter: perimeter,
		Bounds:    bounds,
	}

	switch {
	case area > c.thresholds.HandMinArea && shape.Sides > c.thresholds.HandMinSides:
		shape.Kind = KindHand

	case c.arrowSides[shape.Sides]:
		centroid, ok := ContourMoments(contour).Centroid()
		if !ok {
			break
		}
		shape.Kind = KindArrow
		shape.Centroid = &centroid
		if centroid.X < bounds.X+bounds.Width/2 {
			shape.Direction = DirectionRight
		} else {
			shape.Direction = DirectionLeft
		}
	}

	return shape, true
}

// Detect finds external contours in mask and classifies each of them.
//
// Parameters:
//   - mask: Foreground mask from imaging.Binarize; foreground is the dark
//     shape.
//
// Returns:
//   - *Result: Every kept shape sorted by area, largest first, with hand and
//     arrow counts. Contours counts all external contours, including the
//     ones dropped by the area filter. Never nil.
func (c *Classifier) Detect(mask *imaging.Binary) *Result {
	contours := FindExternalContours(mask)

	result := &Result{
		Shapes:   make([]Shape, 0),
		Contours: len(contours),
	}

	for _, contour := range contours {
		shape, ok := c.Classify(contour)
		if !ok {
			continue
		}
		switch shape.Kind {
		case KindHand:
			result.Hands++
		case KindArrow:
			result.Arrows++
		}
		result.Shapes = append(result.Shapes, shape)
	}

	sort.SliceStable(result.Shapes, func(i, j int) bool {
		return result.Shapes[i].Area > result.Shapes[j].Area
	})

	return result
}
