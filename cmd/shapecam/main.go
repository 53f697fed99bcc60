package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/camera"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/capture"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/config"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/metrics"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/pipeline"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("shapecam %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q, see --help\n", os.Args[1])
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "shapecam: %v\n", err)
		os.Exit(1)
	}
	if err := config.SetupLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "shapecam: %v\n", err)
		os.Exit(1)
	}

	logrus.WithFields(logrus.Fields{
		"version": Version,
		"commit":  GitCommit,
		"camera":  cfg.Camera.URL,
	}).Info("Starting shapecam")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("shapecam failed")
	}
	logrus.Info("shapecam stopped")
}

func printHelp() {
	fmt.Println("shapecam - detect hands and arrows in an ESP32-CAM video stream")
	fmt.Println()
	fmt.Println("Usage: shapecam [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (a .env file in the working directory is loaded too):")
	fmt.Println("  SHAPECAM_CONFIG=shapecam.yaml            Optional YAML config file")
	fmt.Println("  SHAPECAM_CAMERA_URL=http://192.168.1.13  Camera web address")
	fmt.Println("  SHAPECAM_CAMERA_STREAM_PORT=81           MJPEG stream port")
	fmt.Println("  SHAPECAM_CAMERA_FRAME_SIZE=3             Sensor frame size index")
	fmt.Println("  SHAPECAM_DETECTION_THRESHOLD=128         Inverse binary threshold")
	fmt.Println("  SHAPECAM_SERVER_LISTEN=:8080             Viewer and API address")
	fmt.Println("  SHAPECAM_LOG_LEVEL=debug                 Enable debug logging")
	fmt.Println()
	fmt.Println("Open http://localhost:8080/ to watch the annotated stream.")
}

// run wires the camera, capture, pipeline and HTTP server together and
// blocks until ctx is cancelled or the camera stream ends.
func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()

	opts, err := cfg.PipelineOptions()
	if err != nil {
		return err
	}
	processor, err := pipeline.NewProcessor(opts, m)
	if err != nil {
		return err
	}

	cam, err := camera.NewClient(camera.Options{
		BaseURL:      cfg.Camera.URL,
		StreamPort:   cfg.Camera.StreamPort,
		StreamPath:   cfg.Camera.StreamPath,
		Timeout:      cfg.Camera.Timeout,
		MaxFrameSize: cfg.Camera.MaxFrameSize,
	})
	if err != nil {
		return err
	}

	if !cfg.Camera.SkipControl {
		// The stream still works at the camera's current resolution
		if err := cam.SetFrameSize(ctx, cfg.Camera.FrameSize); err != nil {
			logrus.WithError(err).Warn("Failed to set camera frame size")
		}
	}

	stream, err := cam.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	serverOpts := server.Options{
		Addr:      cfg.Server.Listen,
		StreamFPS: cfg.Server.StreamFPS,
	}
	if cfg.Server.Metrics {
		serverOpts.Metrics = m.Handler()
		serverOpts.Tracker = m
	}

	hub := server.NewHub()
	srv := server.New(hub, serverOpts)
	buf := capture.NewLatestFrame()
	reader := capture.NewReader(stream, buf, m)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		// The capture ends with the stream; take everything down with it
		defer cancel()
		if err := reader.Run(ctx); err != nil {
			errs <- fmt.Errorf("capture: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		defer hub.Close()
		if err := processor.Run(ctx, buf, hub); err != nil {
			errs <- fmt.Errorf("pipeline: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			errs <- fmt.Errorf("server: %w", err)
			cancel()
		}
	}()

	<-ctx.Done()
	// Unblock a pending stream read
	stream.Close()
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}
	return errors.Join(all...)
}
