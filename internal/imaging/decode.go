package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultJPEGQuality is the encoder quality used for annotated frames.
const DefaultJPEGQuality = 80

// FrameInfo describes a decoded frame.
type FrameInfo struct {
	// Width is the frame width in pixels.
	Width int `json:"width"`

	// Height is the frame height in pixels.
	Height int `json:"height"`

	// SizeBytes is the size of the encoded JPEG payload.
	SizeBytes int `json:"size_bytes"`
}

// DecodeJPEG decodes a JPEG payload received from the camera.
//
// Returns:
//   - image.Image: The decoded frame, normally *image.YCbCr.
//   - *FrameInfo: Dimensions and payload size.
//   - error: Non-nil if the payload is empty or not a valid JPEG.
func DecodeJPEG(data []byte) (image.Image, *FrameInfo, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("empty frame payload")
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	return img, &FrameInfo{
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		SizeBytes: len(data),
	}, nil
}

// EncodeJPEG encodes a frame as JPEG. A quality outside 1..100 falls back to
// DefaultJPEGQuality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
