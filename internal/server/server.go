package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ClientTracker is notified when stream and event clients come and go.
// metrics.Metrics implements it.
type ClientTracker interface {
	ClientConnected()
	ClientDisconnected()
}

type nopTracker struct{}

func (nopTracker) ClientConnected()    {}
func (nopTracker) ClientDisconnected() {}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// StreamFPS caps the frame rate sent to each MJPEG client. Zero sends
	// every frame.
	StreamFPS int

	// Metrics is served at /metrics when set.
	Metrics http.Handler

	// Tracker receives client connect and disconnect events. May be nil.
	Tracker ClientTracker

	// ShutdownTimeout bounds graceful shutdown. Defaults to 5s.
	ShutdownTimeout time.Duration
}

// Server serves the annotated frames of a Hub over HTTP.
type Server struct {
	opts     Options
	hub      *Hub
	router   *mux.Router
	upgrader websocket.Upgrader
	tracker  ClientTracker
	logger   *logrus.Entry
	started  time.Time
}

// New creates a server for hub and registers its routes.
func New(hub *Hub, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = nopTracker{}
	}

	s := &Server{
		opts:   opts,
		hub:    hub,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The viewer page may be served from another origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		tracker: tracker,
		logger:  logrus.WithField("component", "server"),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/stream", s.handleStream).Methods("GET")
	s.router.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
	s.router.HandleFunc("/detections", s.handleDetections).Methods("GET")
	s.router.HandleFunc("/events", s.handleEvents).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods("GET")
	}
	s.router.Use(s.loggingMiddleware)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on Options.Addr and serves until ctx is cancelled, then shuts
// down gracefully. Request contexts derive from ctx, so open streams end as
// soon as ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run with an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start),
		}).Debug("HTTP request")
	})
}
