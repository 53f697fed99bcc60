package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/detection"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/mjpeg"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/pipeline"
)

func fakeJPEG(fill byte, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = fill
	}
	data[0], data[1] = 0xFF, 0xD8
	data[n-2], data[n-1] = 0xFF, 0xD9
	return data
}

func annotatedFrame(seq uint64) *pipeline.Annotated {
	return &pipeline.Annotated{
		Seq:         seq,
		ProcessedAt: time.Now(),
		Width:       320,
		Height:      240,
		JPEG:        fakeJPEG(byte(seq), 64),
		Result: &detection.Result{
			Shapes: []detection.Shape{{Kind: detection.KindArrow, Direction: detection.DirectionRight, Sides: 7}},
			Arrows: 1,
		},
	}
}

// startServer runs s behind an httptest server; the hub is closed before the
// server so streaming handlers return
func startServer(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(New(hub, opts).Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return hub, srv
}

type countingTracker struct {
	connected    chan struct{}
	disconnected chan struct{}
}

func newCountingTracker() *countingTracker {
	return &countingTracker{connected: make(chan struct{}, 8), disconnected: make(chan struct{}, 8)}
}

func (c *countingTracker) ClientConnected()    { c.connected <- struct{}{} }
func (c *countingTracker) ClientDisconnected() { c.disconnected <- struct{}{} }

func TestHealth(t *testing.T) {
	hub, srv := startServer(t, Options{})

	var status HealthStatus
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "waiting", status.Status)
	assert.Nil(t, status.LastFrameAt)

	hub.Publish(annotatedFrame(1))

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, uint64(1), status.Frames)
	assert.NotNil(t, status.LastFrameAt)
}

func TestSnapshot(t *testing.T) {
	hub, srv := startServer(t, Options{})

	resp, err := http.Get(srv.URL + "/snapshot")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	frame := annotatedFrame(3)
	hub.Publish(frame)

	resp, err = http.Get(srv.URL + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "3", resp.Header.Get("X-Frame-Seq"))
	assert.Equal(t, frame.JPEG, body)
}

func TestDetections(t *testing.T) {
	hub, srv := startServer(t, Options{})

	resp, err := http.Get(srv.URL + "/detections")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	hub.Publish(annotatedFrame(5))

	resp, err = http.Get(srv.URL + "/detections")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got struct {
		Seq    uint64 `json:"seq"`
		Width  int    `json:"width"`
		Result struct {
			Arrows int `json:"arrows"`
			Shapes []struct {
				Kind      string `json:"kind"`
				Direction string `json:"direction"`
			} `json:"shapes"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, uint64(5), got.Seq)
	assert.Equal(t, 320, got.Width)
	assert.Equal(t, 1, got.Result.Arrows)
	require.Len(t, got.Result.Shapes, 1)
	assert.Equal(t, "arrow", got.Result.Shapes[0].Kind)
	assert.Equal(t, "right", got.Result.Shapes[0].Direction)
}

func TestMetricsRoute(t *testing.T) {
	_, srv := startServer(t, Options{})
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("shapecam_frames_captured_total 0\n"))
	})
	_, srv = startServer(t, Options{Metrics: metricsHandler})
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "shapecam_frames_captured_total")
}

func TestIndex(t *testing.T) {
	_, srv := startServer(t, Options{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `src="/stream"`)
}

func TestStream(t *testing.T) {
	tracker := newCountingTracker()
	hub, srv := startServer(t, Options{Tracker: tracker})
	first := annotatedFrame(1)
	hub.Publish(first)

	resp, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	boundary, err := mjpeg.ParseBoundary(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	reader := mjpeg.NewReader(resp.Body, boundary, 0)

	got, err := reader.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, first.JPEG, got, "the latest frame is sent on connect")

	select {
	case <-tracker.connected:
	case <-time.After(time.Second):
		t.Fatal("tracker not notified of the connection")
	}

	second := annotatedFrame(2)
	hub.Publish(second)

	got, err = reader.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, second.JPEG, got)

	hub.Close()
	select {
	case <-tracker.disconnected:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not return after the hub closed")
	}
}

func TestEvents(t *testing.T) {
	hub, srv := startServer(t, Options{})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(annotatedFrame(7))

	var event struct {
		Seq    uint64 `json:"seq"`
		Result struct {
			Arrows int `json:"arrows"`
		} `json:"result"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, uint64(7), event.Seq)
	assert.Equal(t, 1, event.Result.Arrows)

	hub.Close()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hub := NewHub()
	s := New(hub, Options{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	s := New(NewHub(), Options{Addr: "256.0.0.1:bad"})

	err := s.Run(context.Background())

	assert.Error(t, err)
}
