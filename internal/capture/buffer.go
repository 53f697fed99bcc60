// Package capture keeps the most recent camera frame available to a
// consumer that may be slower than the camera.
//
// A background Reader decodes frames from the stream and stores them in a
// LatestFrame, a one-slot buffer that replaces any frame the consumer has not
// taken yet. The consumer always processes the newest frame and never falls
// behind the camera.
package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by LatestFrame.Get once the buffer is closed and the
// last frame has been taken.
var ErrClosed = errors.New("capture: frame source closed")

// Frame is a decoded camera frame.
type Frame struct {
	// Seq numbers frames in capture order, starting at 1.
	Seq uint64

	// CapturedAt is when the frame was decoded.
	CapturedAt time.Time

	// Image is the decoded frame.
	Image image.Image

	// Size is the encoded JPEG payload size in bytes.
	Size int
}

// LatestFrame is a one-slot frame buffer with drop-oldest semantics.
//
// Put never blocks. Get blocks until a frame is available. It is safe for
// one producer and any number of consumers.
type LatestFrame struct {
	slot      chan *Frame
	done      chan struct{}
	closeOnce sync.Once
	putMu     sync.Mutex
	dropped   atomic.Uint64
	stored    atomic.Uint64
}

// NewLatestFrame creates an empty buffer.
func NewLatestFrame() *LatestFrame {
	return &LatestFrame{
		slot: make(chan *Frame, 1),
		done: make(chan struct{}),
	}
}

// Put stores f, discarding any frame still waiting in the slot.
//
// Parameters:
//   - f: The newest frame. Ownership passes to the buffer.
//
// Returns:
//   - dropped: True when an untaken frame was replaced. Frames put after
//     Close are ignored and report false.
//
// Put never blocks: putMu serialises producers, so after draining the slot
// the send always finds room.
func (b *LatestFrame) Put(f *Frame) (dropped bool) {
	b.putMu.Lock()
	defer b.putMu.Unlock()

	select {
	case <-b.done:
		return false
	default:
	}

	select {
	case <-b.slot:
		dropped = true
		b.dropped.Add(1)
	default:
	}

	b.slot <- f
	b.stored.Add(1)
	return dropped
}

// Get returns the waiting frame, blocking until one arrives.
//
// Parameters:
//   - ctx: Ends the wait early.
//
// Returns:
//   - *Frame: The newest frame not yet taken. Each frame is returned to at
//     most one caller.
//   - error: ctx.Err() when the context ends first, or ErrClosed when the
//     buffer is closed and empty. A frame stored before Close is still
//     returned.
func (b *LatestFrame) Get(ctx context.Context) (*Frame, error) {
	// A frame stored before Close is still delivered
	select {
	case f := <-b.slot:
		return f, nil
	default:
	}

	select {
	case f := <-b.slot:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		select {
		case f := <-b.slot:
			return f, nil
		default:
			return nil, ErrClosed
		}
	}
}

// Close marks the end of the frame source. It is safe to call more than once.
func (b *LatestFrame) Close() {
	b.closeOnce.Do(func() {
		b.putMu.Lock()
		close(b.done)
		b.putMu.Unlock()
	})
}

// Done is closed when the buffer is closed.
func (b *LatestFrame) Done() <-chan struct{} {
	return b.done
}

// Dropped returns how many frames were overwritten before being taken.
func (b *LatestFrame) Dropped() uint64 {
	return b.dropped.Load()
}

// Stored returns how many frames were put into the buffer.
func (b *LatestFrame) Stored() uint64 {
	return b.stored.Load()
}
