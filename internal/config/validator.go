package config

import (
	"fmt"
	"strings"

	"checkerpose/internal/pose"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if err := cfg.Shape().Validate(); err != nil {
		return fmt.Errorf("marker: %w", err)
	}
	if cfg.Marker.SquareSize <= 0 {
		return fmt.Errorf("marker.square_size must be > 0")
	}

	if cfg.Camera.FX <= 0 || cfg.Camera.FY <= 0 {
		return fmt.Errorf("camera.fx and camera.fy must be > 0")
	}

	switch strings.ToLower(cfg.Detector.Backend) {
	case BackendNative, BackendOpenCV:
		cfg.Detector.Backend = strings.ToLower(cfg.Detector.Backend)
	case "":
		cfg.Detector.Backend = BackendNative
	default:
		return fmt.Errorf("detector.backend: unknown backend '%s' (must be '%s' or '%s')",
			cfg.Detector.Backend, BackendNative, BackendOpenCV)
	}
	if cfg.Detector.Downscale <= 0 {
		return fmt.Errorf("detector.downscale must be > 0")
	}
	if cfg.Detector.SubPixWindow <= 0 {
		return fmt.Errorf("detector.subpix_window must be > 0")
	}
	if cfg.Detector.SubPixIterations <= 0 {
		return fmt.Errorf("detector.subpix_iterations must be > 0")
	}

	if _, err := pose.ParseMethod(cfg.Pose.Method); err != nil {
		return fmt.Errorf("pose.method: %w", err)
	}
	if cfg.Pose.RansacIterations <= 0 {
		return fmt.Errorf("pose.ransac_iterations must be > 0")
	}
	if cfg.Pose.RansacThreshold <= 0 {
		return fmt.Errorf("pose.ransac_threshold must be > 0")
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	case "":
		cfg.Log.Format = "text"
	default:
		return fmt.Errorf("log.format: unknown format '%s'", cfg.Log.Format)
	}

	return nil
}
