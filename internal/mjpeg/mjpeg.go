// Package mjpeg reads and writes Motion JPEG over HTTP, the
// multipart/x-mixed-replace format used by network cameras and understood
// natively by browsers.
package mjpeg

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/textproto"
	"strconv"
	"strings"
)

// DefaultBoundary is the part boundary used by Writer.
const DefaultBoundary = "frame"

// DefaultMaxFrameSize caps the size of a single JPEG part.
const DefaultMaxFrameSize = 4 << 20

// ErrNoBoundary is returned when a Content-Type carries no multipart boundary.
var ErrNoBoundary = errors.New("mjpeg: no multipart boundary")

// ErrFrameTooLarge is returned when a part exceeds the reader's size limit.
var ErrFrameTooLarge = errors.New("mjpeg: frame exceeds size limit")

// ParseBoundary extracts the boundary parameter from a multipart Content-Type
// header such as "multipart/x-mixed-replace;boundary=123456789000000000000987654321".
func ParseBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("mjpeg: invalid content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("mjpeg: content type %q is not multipart", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", ErrNoBoundary
	}
	// Some firmwares repeat the leading dashes in the header
	return strings.TrimPrefix(boundary, "--"), nil
}

// Reader yields the JPEG payload of each part of an MJPEG stream.
//
// Parts carrying a Content-Length header are read by length, so a frame is
// returned as soon as its last byte arrives. Parts without one are read up
// to the next boundary line.
type Reader struct {
	br           *bufio.Reader
	tp           *textproto.Reader
	dashBoundary string
	maxFrame     int64
	skipped      int

	// pending is set when the boundary opening the next part has already
	// been consumed
	pending bool
	done    bool
}

// NewReader creates a reader over r using the given multipart boundary.
// maxFrameSize <= 0 selects DefaultMaxFrameSize.
func NewReader(r io.Reader, boundary string, maxFrameSize int64) *Reader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	br := bufio.NewReaderSize(r, 16<<10)
	return &Reader{
		br:           br,
		tp:           textproto.NewReader(br),
		dashBoundary: "--" + boundary,
		maxFrame:     maxFrameSize,
	}
}

// NextFrame returns the next valid JPEG payload.
//
// Parts that do not hold a complete JPEG image are skipped and counted in
// Skipped.
//
// Returns:
//   - The JPEG bytes of the next part.
//   - io.EOF when the stream ends on the closing boundary or between parts.
//   - ErrFrameTooLarge when a part exceeds the size limit.
//   - An error wrapping io.ErrUnexpectedEOF when the stream ends inside a
//     part.
func (r *Reader) NextFrame() ([]byte, error) {
	for {
		if r.done {
			return nil, io.EOF
		}
		if !r.pending {
			closing, err := r.nextBoundary()
			if err != nil {
				return nil, err
			}
			if closing {
				r.done = true
				return nil, io.EOF
			}
		}
		r.pending = false

		data, err := r.readPart()
		if err != nil {
			return nil, err
		}
		if !IsValidJPEG(data) {
			r.skipped++
			continue
		}
		return data, nil
	}
}

// nextBoundary skips to the line opening the next part. It reports true for
// the final "--boundary--" line.
func (r *Reader) nextBoundary() (bool, error) {
	atLineStart := true
	for {
		line, err := r.br.ReadSlice('\n')
		switch {
		case err == nil:
			if atLineStart {
				if b, ok := r.boundaryLine(line); ok {
					return b, nil
				}
			}
			atLineStart = true
		case errors.Is(err, bufio.ErrBufferFull):
			// Longer than the buffer, so not a boundary
			atLineStart = false
		case errors.Is(err, io.EOF):
			return false, io.EOF
		default:
			return false, fmt.Errorf("mjpeg: read boundary: %w", err)
		}
	}
}

// boundaryLine reports whether line is a boundary line and whether it is the
// closing one.
func (r *Reader) boundaryLine(line []byte) (closing, ok bool) {
	line = bytes.TrimRight(line, " \t\r\n")
	if !bytes.HasPrefix(line, []byte(r.dashBoundary)) {
		return false, false
	}
	switch string(line[len(r.dashBoundary):]) {
	case "":
		return false, true
	case "--":
		return true, true
	}
	return false, false
}

func (r *Reader) readPart() ([]byte, error) {
	header, err := r.tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("mjpeg: read part header: %w", unexpectedEOF(err))
	}

	n, ok := contentLength(header)
	if !ok {
		return r.readUntilBoundary()
	}
	if n > r.maxFrame {
		return nil, ErrFrameTooLarge
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return nil, fmt.Errorf("mjpeg: read frame: %w", unexpectedEOF(err))
	}
	return data, nil
}

// readUntilBoundary reads a part body that has no Content-Length. The
// boundary line ending it is consumed and recorded for the next call.
func (r *Reader) readUntilBoundary() ([]byte, error) {
	var data []byte
	atLineStart := true
	for {
		line, err := r.br.ReadSlice('\n')
		if err == nil && atLineStart {
			if closing, ok := r.boundaryLine(line); ok {
				r.pending = !closing
				r.done = closing
				// The line break before the boundary belongs to the delimiter
				data = bytes.TrimSuffix(data, []byte("\n"))
				data = bytes.TrimSuffix(data, []byte("\r"))
				return data, nil
			}
		}

		data = append(data, line...)
		if int64(len(data)) > r.maxFrame+2 {
			return nil, ErrFrameTooLarge
		}

		switch {
		case err == nil:
			atLineStart = true
		case errors.Is(err, bufio.ErrBufferFull):
			atLineStart = false
		default:
			return nil, fmt.Errorf("mjpeg: read frame: %w", unexpectedEOF(err))
		}
	}
}

func contentLength(h textproto.MIMEHeader) (int64, bool) {
	v := strings.TrimSpace(h.Get("Content-Length"))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// unexpectedEOF turns a bare io.EOF inside a part into io.ErrUnexpectedEOF so
// callers do not mistake a cut-off frame for a clean end of stream.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Skipped returns how many parts were discarded as invalid.
func (r *Reader) Skipped() int {
	return r.skipped
}

// IsValidJPEG checks that data starts with the JPEG SOI marker and ends with
// the EOI marker. Trailing CR/LF padding after EOI is tolerated.
func IsValidJPEG(data []byte) bool {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	if len(data) < 4 {
		return false
	}
	// SOI marker: FF D8
	if data[0] != 0xFF || data[1] != 0xD8 {
		return false
	}
	// EOI marker: FF D9
	return data[len(data)-2] == 0xFF && data[len(data)-1] == 0xD9
}
