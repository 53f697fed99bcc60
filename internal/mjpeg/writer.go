package mjpeg

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Writer emits JPEG frames as parts of a multipart/x-mixed-replace stream.
type Writer struct {
	w        io.Writer
	flusher  http.Flusher
	boundary string
	header   []byte
}

// NewWriter wraps w. If w is an http.Flusher, every frame is flushed as soon
// as it is written.
func NewWriter(w io.Writer, boundary string) *Writer {
	if boundary == "" {
		boundary = DefaultBoundary
	}
	flusher, _ := w.(http.Flusher)
	return &Writer{
		w:        w,
		flusher:  flusher,
		boundary: boundary,
		// Pre-allocate buffer for frame header to avoid repeated allocations
		header: make([]byte, 0, 128),
	}
}

// ContentType returns the Content-Type header value for the stream.
func (w *Writer) ContentType() string {
	return "multipart/x-mixed-replace; boundary=" + w.boundary
}

// SetHeaders sets the MJPEG response headers, disabling client caching.
func (w *Writer) SetHeaders(h http.Header) {
	h.Set("Content-Type", w.ContentType())
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// WriteFrame writes one JPEG frame as a part.
func (w *Writer) WriteFrame(jpeg []byte) error {
	w.header = w.header[:0]
	w.header = append(w.header, "--"...)
	w.header = append(w.header, w.boundary...)
	w.header = append(w.header, "\r\nContent-Type: image/jpeg\r\nContent-Length: "...)
	w.header = strconv.AppendInt(w.header, int64(len(jpeg)), 10)
	w.header = append(w.header, "\r\n\r\n"...)

	if _, err := w.w.Write(w.header); err != nil {
		return fmt.Errorf("mjpeg: write header: %w", err)
	}
	if _, err := w.w.Write(jpeg); err != nil {
		return fmt.Errorf("mjpeg: write body: %w", err)
	}
	if _, err := w.w.Write([]byte("\r\n")); err != nil {
		return fmt.Errorf("mjpeg: write separator: %w", err)
	}

	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Close writes the closing delimiter that ends the multipart stream. It does
// not close the underlying writer.
func (w *Writer) Close() error {
	if _, err := io.WriteString(w.w, "--"+w.boundary+"--\r\n"); err != nil {
		return fmt.Errorf("mjpeg: write closing boundary: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
