package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// PreprocessOptions controls the steps applied before thresholding.
type PreprocessOptions struct {
	// MaxWidth downscales frames wider than this, keeping aspect ratio.
	// Zero disables resizing.
	MaxWidth int

	// BlurRadius applies a Gaussian blur with this radius before
	// thresholding. Zero disables blurring.
	BlurRadius float64

	// Threshold is the inverse binary threshold (0-255).
	Threshold uint8
}

// Preprocessed holds the intermediate images of one frame.
type Preprocessed struct {
	// Frame is the (possibly resized) color frame that annotations are
	// drawn onto. Mask coordinates refer to this image.
	Frame image.Image

	// Gray is the grayscale conversion of Frame (after blur, if enabled).
	Gray *image.Gray

	// Mask is the thresholded foreground.
	Mask *Binary
}

// Resize downscales img to maxWidth pixels wide if it is wider, using
// Lanczos resampling. Images that already fit are returned unchanged.
func Resize(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

// Preprocess runs resize, blur, grayscale and threshold on a frame.
func Preprocess(img image.Image, opts PreprocessOptions) *Preprocessed {
	frame := Resize(img, opts.MaxWidth)

	src := frame
	if opts.BlurRadius > 0 {
		src = blur.Gaussian(frame, opts.BlurRadius)
	}

	gray := Grayscale(src)
	return &Preprocessed{
		Frame: frame,
		Gray:  gray,
		Mask:  Binarize(gray, opts.Threshold),
	}
}
