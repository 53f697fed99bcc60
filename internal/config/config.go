// Package config loads shapecam settings.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file named by SHAPECAM_CONFIG, and SHAPECAM_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/naomi-pc/Autonomous-Vehicle/internal/detection"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/imaging"
	"github.com/naomi-pc/Autonomous-Vehicle/internal/pipeline"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SHAPECAM_"

// FileEnvVar names the variable holding the optional YAML config path.
const FileEnvVar = EnvPrefix + "CONFIG"

type Config struct {
	Camera     CameraConfig     `yaml:"camera" envPrefix:"CAMERA_"`
	Detection  DetectionConfig  `yaml:"detection" envPrefix:"DETECTION_"`
	Annotation AnnotationConfig `yaml:"annotation" envPrefix:"ANNOTATION_"`
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
}

type CameraConfig struct {
	// URL is the camera web address, e.g. http://192.168.1.13
	URL        string        `yaml:"url" env:"URL"`
	StreamPort int           `yaml:"stream_port" env:"STREAM_PORT"`
	StreamPath string        `yaml:"stream_path" env:"STREAM_PATH"`
	FrameSize  int           `yaml:"frame_size" env:"FRAME_SIZE"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// SkipControl disables the frame size request on startup.
	SkipControl  bool  `yaml:"skip_control" env:"SKIP_CONTROL"`
	MaxFrameSize int64 `yaml:"max_frame_size" env:"MAX_FRAME_SIZE"`
}

type DetectionConfig struct {
	Threshold     int     `yaml:"threshold" env:"THRESHOLD"`
	EpsilonFactor float64 `yaml:"epsilon_factor" env:"EPSILON_FACTOR"`
	MinArea       float64 `yaml:"min_area" env:"MIN_AREA"`
	HandMinArea   float64 `yaml:"hand_min_area" env:"HAND_MIN_AREA"`
	HandMinSides  int     `yaml:"hand_min_sides" env:"HAND_MIN_SIDES"`
	ArrowSides    []int   `yaml:"arrow_sides" env:"ARROW_SIDES" envSeparator:","`
	BlurRadius    float64 `yaml:"blur_radius" env:"BLUR_RADIUS"`
	MaxWidth      int     `yaml:"max_width" env:"MAX_WIDTH"`
}

type AnnotationConfig struct {
	OutlineColor string `yaml:"outline_color" env:"OUTLINE_COLOR"`
	HandColor    string `yaml:"hand_color" env:"HAND_COLOR"`
	ArrowColor   string `yaml:"arrow_color" env:"ARROW_COLOR"`
	Thickness    int    `yaml:"thickness" env:"THICKNESS"`
	LabelOffset  int    `yaml:"label_offset" env:"LABEL_OFFSET"`
	HandLabel    string `yaml:"hand_label" env:"HAND_LABEL"`
	RightLabel   string `yaml:"right_label" env:"RIGHT_LABEL"`
	LeftLabel    string `yaml:"left_label" env:"LEFT_LABEL"`
}

type ServerConfig struct {
	Listen string `yaml:"listen" env:"LISTEN"`
	// StreamFPS caps the rate of the annotated MJPEG stream, 0 is unlimited.
	StreamFPS   int  `yaml:"stream_fps" env:"STREAM_FPS"`
	JPEGQuality int  `yaml:"jpeg_quality" env:"JPEG_QUALITY"`
	Metrics     bool `yaml:"metrics" env:"METRICS"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	t := detection.DefaultThresholds()
	return &Config{
		Camera: CameraConfig{
			URL:          "http://192.168.1.13",
			StreamPort:   81,
			StreamPath:   "/stream",
			FrameSize:    3,
			Timeout:      10 * time.Second,
			MaxFrameSize: 4 << 20,
		},
		Detection: DetectionConfig{
			Threshold:     128,
			EpsilonFactor: t.EpsilonFactor,
			MinArea:       t.MinArea,
			HandMinArea:   t.HandMinArea,
			HandMinSides:  t.HandMinSides,
			ArrowSides:    t.ArrowSides,
		},
		Annotation: AnnotationConfig{
			OutlineColor: imaging.HexColor(imaging.DefaultOutlineColor),
			HandColor:    imaging.HexColor(imaging.DefaultHandColor),
			ArrowColor:   imaging.HexColor(imaging.DefaultArrowColor),
			Thickness:    3,
			LabelOffset:  10,
			HandLabel:    "MANO",
			RightLabel:   "Derecha",
			LeftLabel:    "Izquierda",
		},
		Server: ServerConfig{
			Listen:      ":8080",
			JPEGQuality: imaging.DefaultJPEGQuality,
			Metrics:     true,
		},
		Logging: *DefaultLoggingConfig(),
	}
}

// Load builds the configuration from defaults, the file named by
// SHAPECAM_CONFIG (if set) and the process environment.
func Load() (*Config, error) {
	return load(os.Getenv(FileEnvVar), env.Options{Prefix: EnvPrefix})
}

// LoadFile is like Load but reads the YAML file at path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	return load(path, env.Options{Prefix: EnvPrefix})
}

func load(path string, opts env.Options) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	// Fields without a matching variable keep their current value
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		// An empty file keeps the defaults
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.Camera.URL == "" {
		return errors.New("camera url is required")
	}
	if c.Camera.StreamPort < 0 || c.Camera.StreamPort > 65535 {
		return fmt.Errorf("camera stream port out of range: %d", c.Camera.StreamPort)
	}
	if c.Camera.FrameSize < 0 {
		return fmt.Errorf("camera frame size must not be negative: %d", c.Camera.FrameSize)
	}
	if c.Camera.Timeout < 0 {
		return fmt.Errorf("camera timeout must not be negative: %s", c.Camera.Timeout)
	}

	if c.Detection.Threshold < 0 || c.Detection.Threshold > 255 {
		return fmt.Errorf("detection threshold must be within 0-255: %d", c.Detection.Threshold)
	}
	if err := c.Detection.Thresholds().Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if c.Detection.BlurRadius < 0 {
		return fmt.Errorf("blur radius must not be negative: %v", c.Detection.BlurRadius)
	}
	if c.Detection.MaxWidth < 0 {
		return fmt.Errorf("max width must not be negative: %d", c.Detection.MaxWidth)
	}

	if _, err := c.Annotation.Palette(); err != nil {
		return err
	}
	if c.Annotation.Thickness < 1 {
		return fmt.Errorf("annotation thickness must be at least 1: %d", c.Annotation.Thickness)
	}

	if c.Server.Listen == "" {
		return errors.New("server listen address is required")
	}
	if c.Server.StreamFPS < 0 {
		return fmt.Errorf("stream fps must not be negative: %d", c.Server.StreamFPS)
	}
	if c.Server.JPEGQuality < 1 || c.Server.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be within 1-100: %d", c.Server.JPEGQuality)
	}

	return c.Logging.Validate()
}

// Thresholds converts the detection section into classifier constants.
func (d DetectionConfig) Thresholds() detection.Thresholds {
	return detection.Thresholds{
		EpsilonFactor: d.EpsilonFactor,
		MinArea:       d.MinArea,
		HandMinArea:   d.HandMinArea,
		HandMinSides:  d.HandMinSides,
		ArrowSides:    d.ArrowSides,
	}
}

// PreprocessOptions converts the detection section into imaging options.
func (d DetectionConfig) PreprocessOptions() imaging.PreprocessOptions {
	return imaging.PreprocessOptions{
		MaxWidth:   d.MaxWidth,
		BlurRadius: d.BlurRadius,
		Threshold:  uint8(d.Threshold),
	}
}

// Palette holds the parsed annotation colors.
type Palette struct {
	Outline color.RGBA
	Hand    color.RGBA
	Arrow   color.RGBA
}

// Palette parses the annotation colors.
func (a AnnotationConfig) Palette() (Palette, error) {
	var p Palette
	var err error
	if p.Outline, err = imaging.ParseColor(a.OutlineColor); err != nil {
		return p, fmt.Errorf("annotation outline color: %w", err)
	}
	if p.Hand, err = imaging.ParseColor(a.HandColor); err != nil {
		return p, fmt.Errorf("annotation hand color: %w", err)
	}
	if p.Arrow, err = imaging.ParseColor(a.ArrowColor); err != nil {
		return p, fmt.Errorf("annotation arrow color: %w", err)
	}
	return p, nil
}

// PipelineOptions assembles the processor options from the detection,
// annotation and server sections.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	palette, err := c.Annotation.Palette()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Preprocess: c.Detection.PreprocessOptions(),
		Thresholds: c.Detection.Thresholds(),
		Style: pipeline.Style{
			OutlineColor: palette.Outline,
			HandColor:    palette.Hand,
			ArrowColor:   palette.Arrow,
			Thickness:    c.Annotation.Thickness,
			LabelOffset:  c.Annotation.LabelOffset,
			HandLabel:    c.Annotation.HandLabel,
			RightLabel:   c.Annotation.RightLabel,
			LeftLabel:    c.Annotation.LeftLabel,
		},
		JPEGQuality: c.Server.JPEGQuality,
	}, nil
}
