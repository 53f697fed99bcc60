// Package camera talks to an ESP32-CAM style network camera: a control
// endpoint on the web port and an MJPEG stream on a separate port.
package camera

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/mjpeg"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the camera web address, e.g. "http://192.168.1.13".
	BaseURL string

	// StreamPort is the port serving the MJPEG stream (81 on ESP32-CAM).
	StreamPort int

	// StreamPath is the path of the MJPEG stream.
	StreamPath string

	// Timeout bounds control requests. The stream request is only bounded by
	// its context.
	Timeout time.Duration

	// MaxFrameSize caps a single JPEG part of the stream.
	MaxFrameSize int64
}

// Client issues control requests and opens the video stream.
type Client struct {
	opts    Options
	base    *url.URL
	control *resty.Client
	stream  *resty.Client
	logger  *logrus.Entry
}

// Stream is an open MJPEG stream.
type Stream struct {
	*mjpeg.Reader
	body io.Closer
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// NewClient validates opts and builds a client.
//
// BaseURL must be an http or https URL with a host; its query and fragment
// are dropped. Empty StreamPath defaults to "/stream" and a non-positive
// Timeout to 10s. Control requests share one resty client with that
// timeout; the stream uses a second client with no timeout that leaves the
// body unread.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid camera URL %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid camera URL %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Hostname() == "" {
		return nil, fmt.Errorf("invalid camera URL %q: missing host", opts.BaseURL)
	}
	base.RawQuery = ""
	base.Fragment = ""
	if opts.StreamPath == "" {
		opts.StreamPath = "/stream"
	}
	if !strings.HasPrefix(opts.StreamPath, "/") {
		opts.StreamPath = "/" + opts.StreamPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	control := resty.New().
		SetBaseURL(base.String()).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "shapecam/1")

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	stream := resty.New().
		SetHeader("User-Agent", "shapecam/1").
		SetHeader("Accept", "multipart/x-mixed-replace, image/jpeg").
		SetTransport(transport).
		SetDoNotParseResponse(true)

	return &Client{
		opts:    opts,
		base:    base,
		control: control,
		stream:  stream,
		logger:  logrus.WithField("component", "camera"),
	}, nil
}

// StreamURL returns the MJPEG stream address: the base host on StreamPort
// with StreamPath. A StreamPort of zero keeps the base URL's port.
func (c *Client) StreamURL() string {
	u := *c.base
	if c.opts.StreamPort > 0 {
		u.Host = net.JoinHostPort(c.base.Hostname(), strconv.Itoa(c.opts.StreamPort))
	}
	u.Path = c.opts.StreamPath
	u.RawQuery = ""
	return u.String()
}

// Control sets a camera variable through GET /control?var=name&val=value.
//
// Parameters:
//   - ctx: Cancels the request. Options.Timeout also applies.
//   - name: Firmware variable, e.g. "framesize" or "quality".
//   - value: Integer value for the variable.
//
// Returns:
//   - error: Non-nil on transport failure or any non-2xx status. The
//     firmware answers 500 for unknown variables.
func (c *Client) Control(ctx context.Context, name string, value int) error {
	resp, err := c.control.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"var": name,
			"val": strconv.Itoa(value),
		}).
		Get("/control")
	if err != nil {
		return fmt.Errorf("camera control %s=%d: %w", name, value, err)
	}
	if resp.IsError() {
		return fmt.Errorf("camera control %s=%d: unexpected status %s", name, value, resp.Status())
	}

	c.logger.WithFields(logrus.Fields{
		"var": name,
		"val": value,
	}).Debug("Camera control applied")
	return nil
}

// SetFrameSize selects the sensor resolution. The value is the firmware's
// framesize index.
func (c *Client) SetFrameSize(ctx context.Context, size int) error {
	return c.Control(ctx, "framesize", size)
}

// OpenStream starts the MJPEG stream.
//
// Parameters:
//   - ctx: Bounds the whole stream, not just the request. Cancelling it
//     closes the connection and unblocks any pending NextFrame.
//
// Returns:
//   - *Stream: Reads frames with NextFrame. The caller must Close it.
//   - error: Non-nil if the request fails, the status is not 200, or the
//     Content-Type carries no multipart boundary. The body is closed in
//     every error case.
//
// The stream lives on StreamPort (81 on ESP32-CAM), separate from the
// control endpoint, so a long-running stream never blocks Control calls.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	streamURL := c.StreamURL()

	resp, err := c.stream.R().
		SetContext(ctx).
		Get(streamURL)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", streamURL, err)
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		body.Close()
		return nil, fmt.Errorf("open stream %s: unexpected status %s", streamURL, resp.Status())
	}

	boundary, err := mjpeg.ParseBoundary(resp.Header().Get("Content-Type"))
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("open stream %s: %w", streamURL, err)
	}

	c.logger.WithFields(logrus.Fields{
		"url":      streamURL,
		"boundary": boundary,
	}).Info("Camera stream opened")

	return &Stream{
		Reader: mjpeg.NewReader(body, boundary, c.opts.MaxFrameSize),
		body:   body,
	}, nil
}
