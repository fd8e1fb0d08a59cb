// Package config loads the marker, camera and pipeline settings.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"checkerpose/internal/camera"
	"checkerpose/internal/detect"
	"checkerpose/internal/grid"
	"checkerpose/internal/pose"

	"gopkg.in/yaml.v3"
)

// Detector backends.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

type Config struct {
	Marker   MarkerConfig   `yaml:"marker"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Pose     PoseConfig     `yaml:"pose"`
	Log      LogConfig      `yaml:"log"`
}

type MarkerConfig struct {
	Rows       int     `yaml:"rows"`        // interior corners per column
	Cols       int     `yaml:"cols"`        // interior corners per row
	SquareSize float64 `yaml:"square_size"` // translation unit; 1 = one square
}

type CameraConfig struct {
	FX float64 `yaml:"fx"`
	FY float64 `yaml:"fy"`
	CX float64 `yaml:"cx"`
	CY float64 `yaml:"cy"`
	K1 float64 `yaml:"k1"`
	K2 float64 `yaml:"k2"`
	P1 float64 `yaml:"p1"`
	P2 float64 `yaml:"p2"`
	K3 float64 `yaml:"k3"`
}

type DetectorConfig struct {
	Backend          string  `yaml:"backend"` // native, opencv
	Downscale        int     `yaml:"downscale"`
	SubPixWindow     int     `yaml:"subpix_window"` // half-window, pixels
	SubPixIterations int     `yaml:"subpix_iterations"`
	SubPixEpsilon    float64 `yaml:"subpix_epsilon"`
}

type PoseConfig struct {
	Method           string  `yaml:"method"` // iterative, ransac
	RansacIterations int     `yaml:"ransac_iterations"`
	RansacThreshold  float64 `yaml:"ransac_threshold"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the settings of the reference device: a 6x8 marker seen
// by a calibrated VGA camera.
func Default() Config {
	return Config{
		Marker: MarkerConfig{Rows: 6, Cols: 8, SquareSize: 1},
		Camera: CameraConfig{
			FX: 517.65350405,
			FY: 518.2757208,
			CX: 319.06418667,
			CY: 238.78380146,
			K1: 0.209547937,
			K2: -1.21926310,
			P1: -0.00129976649,
			P2: 0.00252504602,
			K3: 2.26952234,
		},
		Detector: DetectorConfig{
			Backend:          BackendNative,
			Downscale:        2,
			SubPixWindow:     5,
			SubPixIterations: 30,
			SubPixEpsilon:    0.1,
		},
		Pose: PoseConfig{
			Method:           "ransac",
			RansacIterations: 100,
			RansacThreshold:  8,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Shape returns the marker's interior corner shape.
func (c *Config) Shape() grid.Shape {
	return grid.Shape{Rows: c.Marker.Rows, Cols: c.Marker.Cols}
}

// CameraModel returns the camera intrinsics and distortion.
func (c *Config) CameraModel() camera.Model {
	k := c.Camera
	return camera.New(k.FX, k.FY, k.CX, k.CY, k.K1, k.K2, k.P1, k.P2, k.K3)
}

// DetectorOptions returns native detector options with the configured
// search scale and refinement criteria.
func (c *Config) DetectorOptions() detect.Options {
	opts := detect.DefaultOptions()
	opts.Downscale = c.Detector.Downscale
	opts.SubPix = detect.SubPixOptions{
		HalfWindow:    c.Detector.SubPixWindow,
		MaxIterations: c.Detector.SubPixIterations,
		Epsilon:       c.Detector.SubPixEpsilon,
	}
	return opts
}

// PoseOptions returns solver options.
func (c *Config) PoseOptions() (pose.Options, error) {
	opts := pose.DefaultOptions()
	m, err := pose.ParseMethod(c.Pose.Method)
	if err != nil {
		return pose.Options{}, err
	}
	opts.Method = m
	opts.RansacIterations = c.Pose.RansacIterations
	opts.RansacThreshold = c.Pose.RansacThreshold
	return opts, nil
}

// SlogLevel maps the configured level name.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
