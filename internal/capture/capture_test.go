package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/imaging"
)

func TestLatestFrame_GetAfterPut(t *testing.T) {
	buf := NewLatestFrame()
	f := &Frame{Seq: 1}

	assert.False(t, buf.Put(f))

	got, err := buf.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, f, got)
}

func TestLatestFrame_DropsOldest(t *testing.T) {
	buf := NewLatestFrame()

	buf.Put(&Frame{Seq: 1})
	assert.True(t, buf.Put(&Frame{Seq: 2}))
	assert.True(t, buf.Put(&Frame{Seq: 3}))

	got, err := buf.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Seq)
	assert.Equal(t, uint64(2), buf.Dropped())
	assert.Equal(t, uint64(3), buf.Stored())
}

func TestLatestFrame_GetBlocksUntilPut(t *testing.T) {
	buf := NewLatestFrame()
	result := make(chan *Frame, 1)

	go func() {
		f, err := buf.Get(context.Background())
		if err == nil {
			result <- f
		}
	}()

	select {
	case <-result:
		t.Fatal("Get returned before any frame was put")
	case <-time.After(20 * time.Millisecond):
	}

	buf.Put(&Frame{Seq: 7})

	select {
	case f := <-result:
		assert.Equal(t, uint64(7), f.Seq)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Put")
	}
}

func TestLatestFrame_ContextCancel(t *testing.T) {
	buf := NewLatestFrame()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := buf.Get(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatestFrame_CloseDrainsLastFrame(t *testing.T) {
	buf := NewLatestFrame()
	buf.Put(&Frame{Seq: 1})
	buf.Close()
	buf.Close()

	f, err := buf.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)

	_, err = buf.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	assert.False(t, buf.Put(&Frame{Seq: 2}), "put after close is ignored")
	_, err = buf.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLatestFrame_CloseWakesWaiter(t *testing.T) {
	buf := NewLatestFrame()
	errs := make(chan error, 1)

	go func() {
		_, err := buf.Get(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiting Get")
	}
}

func TestLatestFrame_ConcurrentPutGet(t *testing.T) {
	buf := NewLatestFrame()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 1000; i++ {
			buf.Put(&Frame{Seq: i})
		}
		buf.Close()
	}()

	var last uint64
	for {
		f, err := buf.Get(ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		require.NoError(t, err)
		assert.Greater(t, f.Seq, last, "frames must arrive in increasing order")
		last = f.Seq
	}
	wg.Wait()

	assert.Equal(t, uint64(1000), last, "the newest frame is never dropped")
}

// sliceSource replays encoded frames, then returns err
type sliceSource struct {
	frames [][]byte
	err    error
}

func (s *sliceSource) NextFrame() ([]byte, error) {
	if len(s.frames) == 0 {
		return nil, s.err
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

type countingObserver struct {
	captured int
	failed   int
}

func (o *countingObserver) FrameCaptured(int, bool) { o.captured++ }
func (o *countingObserver) DecodeFailed()           { o.failed++ }

func encodedFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)
	data, err := imaging.EncodeJPEG(img, 90)
	require.NoError(t, err)
	return data
}

func TestReader_RunUntilEOF(t *testing.T) {
	frame := encodedFrame(t)
	src := &sliceSource{
		frames: [][]byte{frame, {0xFF, 0xD8, 0x00, 0xFF, 0xD9}, frame},
		err:    io.EOF,
	}
	buf := NewLatestFrame()
	obs := &countingObserver{}

	err := NewReader(src, buf, obs).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, obs.captured)
	assert.Equal(t, 1, obs.failed)

	f, err := buf.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)
	assert.Equal(t, 16, f.Image.Bounds().Dx())
	assert.Equal(t, len(frame), f.Size)

	_, err = buf.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReader_StreamError(t *testing.T) {
	boom := errors.New("connection reset")
	buf := NewLatestFrame()

	err := NewReader(&sliceSource{err: boom}, buf, nil).Run(context.Background())

	assert.ErrorIs(t, err, boom)
	select {
	case <-buf.Done():
	default:
		t.Fatal("buffer should be closed after a stream failure")
	}
}

func TestReader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf := NewLatestFrame()

	err := NewReader(&sliceSource{frames: [][]byte{encodedFrame(t)}}, buf, nil).Run(ctx)

	assert.NoError(t, err)
	assert.Equal(t, uint64(0), buf.Stored())
}
