// Package detection finds and classifies simple shapes in thresholded
// camera frames.
//
// The input is a foreground mask (see imaging.Binary) in which dark cut-out
// shapes are foreground. Each frame goes through the same fixed pipeline:
//
//  1. Contour Finding: trace the outer boundary of every foreground
//     component that is not nested inside another one
//  2. Filtering: drop contours whose enclosed area is at or below MinArea
//  3. Polygon Approximation: Douglas-Peucker with a tolerance proportional
//     to the contour perimeter
//  4. Classification: hands (large, many-sided) and arrows (three or seven
//     sides, direction from the centroid)
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// # Arrow Direction
//
// An arrow is a shaft plus a triangular head. The shaft holds most of the
// area, so the centroid sits on the tail side of the bounding box. A centroid
// left of the box midline therefore means the arrow points right.
//
// # Limitations
//
// The rules are tuned for high-contrast cut-outs held in front of the camera:
//   - Shapes touching each other merge into one contour
//   - Shapes inside another shape's hole are ignored
//   - Vertex counts depend on resolution and the epsilon factor
package detection
