// Package server publishes annotated camera frames over HTTP.
//
// The pipeline pushes every processed frame into a Hub. The Hub keeps the
// most recent one for request/response endpoints and fans frames out to
// streaming clients, each with a one-slot queue so a slow client only ever
// skips frames.
//
// # Endpoints
//
//   - GET /            minimal viewer page
//   - GET /stream      annotated frames as MJPEG (multipart/x-mixed-replace)
//   - GET /snapshot    latest annotated frame as JPEG (503 before the first frame)
//   - GET /detections  latest detection result as JSON (503 before the first frame)
//   - GET /events      websocket pushing the detection result of every frame
//   - GET /healthz     liveness and frame counters
//   - GET /metrics     Prometheus metrics, when enabled
//
// Browsers render /stream natively in an <img> tag, which replaces a local
// preview window on a headless device.
package server
