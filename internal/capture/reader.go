package capture

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/imaging"
)

// FrameSource yields encoded JPEG frames. mjpeg.Reader implements it.
type FrameSource interface {
	NextFrame() ([]byte, error)
}

// Observer receives capture events, typically to record metrics.
type Observer interface {
	FrameCaptured(sizeBytes int, dropped bool)
	DecodeFailed()
}

type nopObserver struct{}

func (nopObserver) FrameCaptured(int, bool) {}
func (nopObserver) DecodeFailed()           {}

// Reader pulls frames from a FrameSource into a LatestFrame.
type Reader struct {
	src      FrameSource
	buf      *LatestFrame
	observer Observer
	logger   *logrus.Entry
	now      func() time.Time
	seq      uint64
}

// NewReader creates a reader. A nil observer is allowed.
func NewReader(src FrameSource, buf *LatestFrame, observer Observer) *Reader {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Reader{
		src:      src,
		buf:      buf,
		observer: observer,
		logger:   logrus.WithField("component", "capture"),
		now:      time.Now,
	}
}

// Run reads frames until the source fails or ctx is cancelled, then closes
// the buffer so consumers see ErrClosed. Frames that fail to decode are
// skipped. There is no reconnection: a clean end of stream returns nil, a
// read error is returned as is.
//
// Cancelling ctx does not interrupt a NextFrame call already in progress;
// sources backed by an HTTP body should be opened with the same context.
func (r *Reader) Run(ctx context.Context) error {
	defer r.buf.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		data, err := r.src.NextFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				r.logger.Info("Camera stream ended")
				return nil
			}
			r.logger.WithError(err).Warn("Camera stream failed, stopping capture")
			return err
		}

		img, info, err := imaging.DecodeJPEG(data)
		if err != nil {
			r.observer.DecodeFailed()
			r.logger.WithError(err).Debug("Skipping undecodable frame")
			continue
		}

		r.seq++
		dropped := r.buf.Put(&Frame{
			Seq:        r.seq,
			CapturedAt: r.now(),
			Image:      img,
			Size:       info.SizeBytes,
		})
		r.observer.FrameCaptured(info.SizeBytes, dropped)
	}
}
