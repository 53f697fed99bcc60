// Package imaging provides the per-frame image operations used before and
// after shape detection.
//
// The package covers three concerns:
//
//   - Frame codec: decoding camera JPEG payloads and encoding annotated
//     frames back to JPEG for the display stream.
//   - Preprocessing: optional downscaling and blur, grayscale conversion and
//     inverse binary thresholding into a Binary foreground mask.
//   - Annotation: a Canvas that draws polygon outlines and text labels onto a
//     copy of the frame.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner:
//   - X increases rightward
//   - Y increases downward
//
// Frames decoded from JPEG always start at (0, 0). Binary masks and Canvas
// coordinates are relative to the frame origin.
//
// # Thresholding
//
// Binarize follows inverse threshold semantics: a pixel whose gray value is
// less than or equal to the threshold is foreground, anything brighter is
// background. With the default threshold of 128 this selects dark shapes on a
// light background.
//
// # Thread Safety
//
// All functions are stateless and safe to call concurrently on different
// images. A Canvas is not safe for concurrent use.
package imaging
