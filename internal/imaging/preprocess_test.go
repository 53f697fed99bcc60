package imaging

import (
	"image/color"
	"testing"
)

func TestResize_Downscale(t *testing.T) {
	img := createInMemoryImage(400, 300, color.White)

	out := Resize(img, 200)

	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 150 {
		t.Errorf("dimensions: got %dx%d, want 200x150", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestResize_NoOp(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	if Resize(img, 0) != img {
		t.Error("maxWidth 0 should return the input")
	}
	if Resize(img, 200) != img {
		t.Error("narrower image should be returned unchanged")
	}
}

func TestPreprocess(t *testing.T) {
	img := createInMemoryImage(60, 60, color.White)
	fillRect(img, 20, 20, 40, 40, color.Black)

	p := Preprocess(img, PreprocessOptions{Threshold: 128})

	if p.Frame != img {
		t.Error("frame should be the input when no resize is requested")
	}
	if p.Mask.Width != 60 || p.Mask.Height != 60 {
		t.Fatalf("mask size: got %dx%d", p.Mask.Width, p.Mask.Height)
	}
	if n := p.Mask.Count(); n != 400 {
		t.Errorf("foreground count: got %d, want 400", n)
	}
}

func TestPreprocess_ResizeAndBlur(t *testing.T) {
	img := createInMemoryImage(200, 100, color.White)
	fillRect(img, 50, 25, 150, 75, color.Black)

	p := Preprocess(img, PreprocessOptions{MaxWidth: 100, BlurRadius: 1.5, Threshold: 128})

	if p.Frame.Bounds().Dx() != 100 || p.Frame.Bounds().Dy() != 50 {
		t.Fatalf("frame: got %v, want 100x50", p.Frame.Bounds())
	}
	if p.Mask.Width != 100 || p.Mask.Height != 50 {
		t.Fatalf("mask: got %dx%d, want 100x50", p.Mask.Width, p.Mask.Height)
	}
	if !p.Mask.At(50, 25) {
		t.Error("center of the shape should stay foreground after blur")
	}
	if p.Mask.At(5, 5) {
		t.Error("corner should stay background after blur")
	}
}
