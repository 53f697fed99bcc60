package mjpeg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJPEG returns bytes framed by SOI/EOI markers
func fakeJPEG(fill byte, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = fill
	}
	data[0], data[1] = 0xFF, 0xD8
	data[n-2], data[n-1] = 0xFF, 0xD9
	return data
}

func TestParseBoundary(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
		wantErr     bool
	}{
		{"esp32", "multipart/x-mixed-replace;boundary=123456789000000000000987654321", "123456789000000000000987654321", false},
		{"spaced", "multipart/x-mixed-replace; boundary=frame", "frame", false},
		{"leading dashes", "multipart/x-mixed-replace; boundary=--myboundary", "myboundary", false},
		{"missing boundary", "multipart/x-mixed-replace", "", true},
		{"not multipart", "image/jpeg", "", true},
		{"garbage", ";;;", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBoundary(tt.contentType)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBoundary_NoBoundarySentinel(t *testing.T) {
	_, err := ParseBoundary("multipart/x-mixed-replace")
	assert.True(t, errors.Is(err, ErrNoBoundary))
}

func TestIsValidJPEG(t *testing.T) {
	assert.True(t, IsValidJPEG(fakeJPEG(0x10, 64)))
	assert.True(t, IsValidJPEG(append(fakeJPEG(0x10, 64), '\r', '\n')))
	assert.False(t, IsValidJPEG(nil))
	assert.False(t, IsValidJPEG([]byte{0xFF, 0xD8}))
	assert.False(t, IsValidJPEG([]byte("hello world")))

	truncated := fakeJPEG(0x10, 64)
	assert.False(t, IsValidJPEG(truncated[:60]))
}

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "")

	frames := [][]byte{fakeJPEG(0x01, 100), fakeJPEG(0x02, 2000), fakeJPEG(0x03, 50)}
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f))
	}
	require.NoError(t, w.Close())

	r := NewReader(&buf, DefaultBoundary, 0)
	for i, want := range frames {
		got, err := r.NextFrame()
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, want, got, "frame %d", i)
	}

	_, err := r.NextFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_SkipsInvalidParts(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "b")
	require.NoError(t, w.WriteFrame([]byte("not an image")))
	require.NoError(t, w.WriteFrame(fakeJPEG(0x05, 32)))
	require.NoError(t, w.Close())

	r := NewReader(&buf, "b", 0)
	got, err := r.NextFrame()

	require.NoError(t, err)
	assert.Equal(t, fakeJPEG(0x05, 32), got)
	assert.Equal(t, 1, r.Skipped())
}

func TestReader_FrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "b")
	require.NoError(t, w.WriteFrame(fakeJPEG(0x05, 512)))

	r := NewReader(&buf, "b", 256)
	_, err := r.NextFrame()

	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReader_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "b")
	require.NoError(t, w.WriteFrame(fakeJPEG(0x05, 32)))
	data := buf.Bytes()

	r := NewReader(bytes.NewReader(data[:20]), "b", 0)
	_, err := r.NextFrame()

	assert.Error(t, err)
}

func TestReader_FrameWithoutFollowingBoundary(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()

	frame := fakeJPEG(0x09, 300)
	go func() {
		// Nothing is written after this frame until the reader goes away
		_ = NewWriter(pw, "b").WriteFrame(frame)
	}()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := NewReader(pr, "b", 0).NextFrame()
		done <- result{data, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, frame, res.data)
	case <-time.After(2 * time.Second):
		t.Fatal("NextFrame waited for the next boundary")
	}
}

func TestReader_ESP32Framing(t *testing.T) {
	// Boundary sent before each part, no CRLF after the body
	var buf bytes.Buffer
	for _, f := range [][]byte{fakeJPEG(0x01, 40), fakeJPEG(0x02, 60)} {
		buf.WriteString("\r\n--123456789000000000000987654321\r\n")
		buf.WriteString("Content-Type: image/jpeg\r\n")
		fmt.Fprintf(&buf, "Content-Length: %d\r\nX-Timestamp: 1.000000\r\n\r\n", len(f))
		buf.Write(f)
	}

	r := NewReader(&buf, "123456789000000000000987654321", 0)

	got, err := r.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, fakeJPEG(0x01, 40), got)

	got, err = r.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, fakeJPEG(0x02, 60), got)

	_, err = r.NextFrame()
	assert.ErrorIs(t, err, io.EOF, "end between parts is a clean end")
}

func TestReader_NoContentLength(t *testing.T) {
	first := fakeJPEG(0x41, 50)
	// A body byte that looks like a line break must not end the part
	first[10] = '\n'
	second := fakeJPEG(0x0B, 30)

	var buf bytes.Buffer
	buf.WriteString("preamble\r\n")
	buf.WriteString("--b\r\nContent-Type: image/jpeg\r\n\r\n")
	buf.Write(first)
	buf.WriteString("\r\n--b\r\nContent-Type: image/jpeg\r\n\r\n")
	buf.Write(second)
	buf.WriteString("\r\n--b--\r\n")

	r := NewReader(&buf, "b", 0)

	got, err := r.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = r.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = r.NextFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_CutInsideBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, "b").WriteFrame(fakeJPEG(0x05, 200)))
	data := buf.Bytes()

	r := NewReader(bytes.NewReader(data[:len(data)-50]), "b", 0)
	_, err := r.NextFrame()

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, errors.Is(err, io.EOF), "a cut-off frame is not a clean end")
}

func TestWriter_HTTPHeadersAndFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec, "frame")

	w.SetHeaders(rec.Header())
	require.NoError(t, w.WriteFrame(fakeJPEG(0x07, 16)))

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.True(t, rec.Flushed)
	assert.Contains(t, rec.Body.String(), "Content-Length: 16\r\n\r\n")
}
