package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// Binary is a foreground mask produced by thresholding.
//
// Pix is stored row-major; the pixel at (x, y) is Pix[y*Width+x].
type Binary struct {
	Width  int
	Height int
	Pix    []bool
}

// NewBinary returns an all-background mask of the given size.
func NewBinary(width, height int) *Binary {
	return &Binary{
		Width:  width,
		Height: height,
		Pix:    make([]bool, width*height),
	}
}

// At reports whether (x, y) is foreground. Points outside the mask are
// background.
func (b *Binary) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.Pix[y*b.Width+x]
}

// Set marks (x, y) as foreground or background. Out-of-range points are
// ignored.
func (b *Binary) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	b.Pix[y*b.Width+x] = v
}

// Count returns the number of foreground pixels.
func (b *Binary) Count() int {
	n := 0
	for _, v := range b.Pix {
		if v {
			n++
		}
	}
	return n
}

// BT.601 luma weights, matching OpenCV's BGR2GRAY conversion.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Grayscale converts an image to 8-bit luminance.
//
// Parameters:
//   - img: Any image. Alpha is ignored.
//
// Returns:
//   - *image.Gray with the same bounds as img, each pixel
//     round(0.299*R + 0.587*G + 0.114*B).
func Grayscale(img image.Image) *image.Gray {
	rgba := effect.GrayscaleWithWeights(img, lumaR, lumaG, lumaB)
	bounds := rgba.Bounds()
	gray := image.NewGray(bounds)
	if bounds.Empty() {
		return gray
	}

	// All three channels hold the luma; keep R
	w, h := bounds.Dx(), bounds.Dy()
	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return gray
}

// Binarize applies an inverse binary threshold to a grayscale image.
//
// A pixel is foreground when its value is less than or equal to threshold,
// so a threshold of 255 makes every pixel foreground and a threshold of 0
// keeps only pure black.
func Binarize(gray *image.Gray, threshold uint8) *Binary {
	bounds := gray.Bounds()
	mask := NewBinary(bounds.Dx(), bounds.Dy())

	for y := 0; y < mask.Height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+mask.Width]
		out := mask.Pix[y*mask.Width : (y+1)*mask.Width]
		for x, v := range row {
			out[x] = v <= threshold
		}
	}
	return mask
}
