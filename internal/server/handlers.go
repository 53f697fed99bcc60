package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/mjpeg"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/pipeline"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>shapecam</title></head>
<body style="margin:0;background:#111;color:#eee;font-family:sans-serif">
<img src="/stream" alt="annotated stream" style="display:block;max-width:100%">
<pre id="events"></pre>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/events");
ws.onmessage = (e) => {
  const f = JSON.parse(e.data);
  document.getElementById("events").textContent =
    "frame " + f.seq + ": " + f.result.hands + " hand(s), " + f.result.arrows + " arrow(s)";
};
</script>
</body>
</html>
`

// handleIndex serves a minimal viewer page.
// GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

// handleStream streams annotated frames as MJPEG until the client goes away
// or the hub closes.
// GET /stream
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := s.hub.Subscribe()
	defer sub.Close()

	s.tracker.ClientConnected()
	defer s.tracker.ClientDisconnected()

	logger := s.logger.WithField("remote", r.RemoteAddr)
	logger.Info("Stream client connected")
	defer logger.Info("Stream client disconnected")

	mw := mjpeg.NewWriter(w, mjpeg.DefaultBoundary)
	mw.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	var interval time.Duration
	if s.opts.StreamFPS > 0 {
		interval = time.Second / time.Duration(s.opts.StreamFPS)
	}
	var lastSent time.Time

	send := func(frame *pipeline.Annotated) bool {
		if interval > 0 && time.Since(lastSent) < interval {
			return true
		}
		if err := mw.WriteFrame(frame.JPEG); err != nil {
			logger.WithError(err).Debug("Stream write failed")
			return false
		}
		lastSent = time.Now()
		return true
	}

	// Start with the current frame so the client does not wait for the next
	// one
	if latest := s.hub.Latest(); latest != nil && !send(latest) {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.C():
			if !ok {
				return
			}
			if !send(frame) {
				return
			}
		}
	}
}

// handleSnapshot returns the latest annotated frame as a JPEG image.
// GET /snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	latest := s.hub.Latest()
	if latest == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no frame processed yet")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(latest.JPEG)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(latest.Seq, 10))
	_, _ = w.Write(latest.JPEG)
}

// handleDetections returns the detection result of the latest frame.
// GET /detections
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	latest := s.hub.Latest()
	if latest == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no frame processed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, latest)
}

// handleEvents pushes the detection result of every frame over a websocket.
// Slow clients skip frames.
// GET /events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe()
	defer sub.Close()

	s.tracker.ClientConnected()
	defer s.tracker.ClientDisconnected()

	logger := s.logger.WithField("remote", r.RemoteAddr)
	logger.Info("Event client connected")
	defer logger.Info("Event client disconnected")

	// The read loop only handles control frames and notices disconnects
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-closed:
			return
		case frame, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				logger.WithError(err).Debug("Websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HealthStatus is the body of /healthz.
type HealthStatus struct {
	Status      string     `json:"status"`
	Uptime      string     `json:"uptime"`
	Frames      uint64     `json:"frames"`
	Subscribers int        `json:"subscribers"`
	LastFrameAt *time.Time `json:"last_frame_at,omitempty"`
}

// handleHealth reports liveness and whether frames are flowing.
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:      "ok",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Frames:      s.hub.Published(),
		Subscribers: s.hub.Subscribers(),
	}
	if latest := s.hub.Latest(); latest != nil {
		t := latest.ProcessedAt
		status.LastFrameAt = &t
	} else {
		status.Status = "waiting"
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
