// Package pipeline turns captured frames into annotated frames: it
// thresholds each frame, classifies the shapes found and draws the outlines
// and labels onto a copy of the frame.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/capture"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/detection"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/imaging"
)

// Style controls how detections are drawn.
type Style struct {
	OutlineColor color.Color
	HandColor    color.Color
	ArrowColor   color.Color

	// Thickness is the outline stroke width in pixels.
	Thickness int

	// LabelOffset is how far above the bounding box the label baseline sits.
	LabelOffset int

	HandLabel  string
	RightLabel string
	LeftLabel  string
}

// DefaultStyle returns green outlines, a blue hand label and green arrow
// labels.
func DefaultStyle() Style {
	return Style{
		OutlineColor: imaging.DefaultOutlineColor,
		HandColor:    imaging.DefaultHandColor,
		ArrowColor:   imaging.DefaultArrowColor,
		Thickness:    3,
		LabelOffset:  10,
		HandLabel:    "MANO",
		RightLabel:   "Derecha",
		LeftLabel:    "Izquierda",
	}
}

// Options configures a Processor.
type Options struct {
	Preprocess imaging.PreprocessOptions
	Thresholds detection.Thresholds
	Style      Style

	// JPEGQuality is used to encode the annotated frame.
	JPEGQuality int
}

// DefaultOptions returns the stock threshold, classifier and style.
func DefaultOptions() Options {
	return Options{
		Preprocess:  imaging.PreprocessOptions{Threshold: 128},
		Thresholds:  detection.DefaultThresholds(),
		Style:       DefaultStyle(),
		JPEGQuality: imaging.DefaultJPEGQuality,
	}
}

// Annotated is one processed frame.
type Annotated struct {
	Seq         uint64            `json:"seq"`
	CapturedAt  time.Time         `json:"captured_at"`
	ProcessedAt time.Time         `json:"processed_at"`
	Elapsed     time.Duration     `json:"elapsed_ns"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Result      *detection.Result `json:"result"`

	// Image is the annotated frame and JPEG its encoding.
	Image image.Image `json:"-"`
	JPEG  []byte      `json:"-"`
}

// Sink receives every annotated frame.
type Sink interface {
	Publish(frame *Annotated)
}

// Recorder receives processing measurements. metrics.Metrics implements it.
type Recorder interface {
	FrameProcessed(elapsed time.Duration, result *detection.Result)
}

type nopRecorder struct{}

func (nopRecorder) FrameProcessed(time.Duration, *detection.Result) {}

// Processor runs detection and annotation on frames.
type Processor struct {
	opts       Options
	classifier *detection.Classifier
	recorder   Recorder
	logger     *logrus.Entry
	now        func() time.Time
}

// NewProcessor validates opts and creates a processor. A nil recorder is
// allowed.
func NewProcessor(opts Options, recorder Recorder) (*Processor, error) {
	classifier, err := detection.NewClassifier(opts.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if opts.Style.Thickness < 1 {
		opts.Style.Thickness = 1
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Processor{
		opts:       opts,
		classifier: classifier,
		recorder:   recorder,
		logger:     logrus.WithField("component", "pipeline"),
		now:        time.Now,
	}, nil
}

// Process detects shapes in frame and returns the annotated copy. The
// captured image is not modified.
func (p *Processor) Process(frame *capture.Frame) (*Annotated, error) {
	if frame == nil || frame.Image == nil {
		return nil, errors.New("pipeline: empty frame")
	}
	start := p.now()

	pre := imaging.Preprocess(frame.Image, p.opts.Preprocess)
	result := p.classifier.Detect(pre.Mask)

	canvas := imaging.NewCanvas(pre.Frame)
	p.annotate(canvas, result.Shapes)
	p.logDetections(frame.Seq, result.Shapes)

	data, err := imaging.EncodeJPEG(canvas.Image(), p.opts.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encode frame %d: %w", frame.Seq, err)
	}

	end := p.now()
	elapsed := end.Sub(start)
	p.recorder.FrameProcessed(elapsed, result)

	bounds := canvas.Bounds()
	return &Annotated{
		Seq:         frame.Seq,
		CapturedAt:  frame.CapturedAt,
		ProcessedAt: end,
		Elapsed:     elapsed,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Result:      result,
		Image:       canvas.Image(),
		JPEG:        data,
	}, nil
}

// annotate draws every shape outline, then the label of hands and arrows at
// the top-left corner of the shape's bounding box.
func (p *Processor) annotate(canvas *imaging.Canvas, shapes []detection.Shape) {
	style := p.opts.Style
	for _, s := range shapes {
		canvas.DrawPolygon(toImagePoints(s.Polygon), style.OutlineColor, style.Thickness)

		x, y := s.Bounds.X, s.Bounds.Y-style.LabelOffset
		switch s.Kind {
		case detection.KindHand:
			canvas.DrawLabel(x, y, style.HandLabel, style.HandColor)
		case detection.KindArrow:
			label := style.LeftLabel
			if s.Direction == detection.DirectionRight {
				label = style.RightLabel
			}
			canvas.DrawLabel(x, y, label, style.ArrowColor)
		}
	}
}

func (p *Processor) logDetections(seq uint64, shapes []detection.Shape) {
	for _, s := range shapes {
		entry := p.logger.WithFields(logrus.Fields{
			"frame": seq,
			"area":  s.Area,
			"sides": s.Sides,
			"x":     s.Bounds.X,
			"y":     s.Bounds.Y,
		})
		switch s.Kind {
		case detection.KindHand:
			entry.Info("Hand detected")
		case detection.KindArrow:
			entry.WithField("direction", s.Direction).Infof("Arrow pointing %s", s.Direction)
		default:
			entry.Trace("Unclassified shape")
		}
	}
}

// Run processes frames from buf until ctx is cancelled or the buffer is
// closed, publishing each result to sink. Frames that fail to process are
// logged and skipped.
func (p *Processor) Run(ctx context.Context, buf *capture.LatestFrame, sink Sink) error {
	p.logger.Info("Processing started")
	defer p.logger.Info("Processing stopped")

	for {
		frame, err := buf.Get(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		annotated, err := p.Process(frame)
		if err != nil {
			p.logger.WithError(err).Warn("Frame processing failed")
			continue
		}
		if sink != nil {
			sink.Publish(annotated)
		}
	}
}

func toImagePoints(c detection.Contour) []image.Point {
	pts := make([]image.Point, len(c))
	for i, pt := range c {
		pts[i] = image.Pt(pt.X, pt.Y)
	}
	return pts
}
