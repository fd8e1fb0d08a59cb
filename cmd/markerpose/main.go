// Command markerpose detects the checkerboard marker in still images or a
// live camera and prints the camera pose relative to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkerpose/internal/config"
	"checkerpose/internal/opencv"
	"checkerpose/internal/session"
	"checkerpose/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration (defaults to the built-in device profile)")
	backend := flag.String("backend", "", "Corner detector: native or opencv (overrides config)")
	outDir := flag.String("out", "", "Directory for annotated images")
	device := flag.Int("device", -1, "Capture from this camera index instead of reading images")
	maxFrames := flag.Int("frames", 0, "Stop live capture after this many frames (0 = until interrupted)")
	selfTest := flag.Bool("selftest", false, "Render a synthetic marker and check the recovered pose")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("markerpose", version.String())
		return
	}

	cfg, err := loadConfig(*configPath, *backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.SlogLevel()
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(newLogger(cfg.Log.Format, level))

	if !*selfTest && *device < 0 && flag.NArg() == 0 {
		fmt.Println("Usage: markerpose [-config <file>] [-backend native|opencv] [-out <dir>] <image>...")
		fmt.Println("       markerpose -device <index> [-frames N]")
		fmt.Println("       markerpose -selftest")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []session.Option
	if cfg.Detector.Backend == config.BackendOpenCV {
		opts = append(opts, session.WithDetector(opencv.NewDetector(opencv.DefaultOptions())))
	}
	sess := session.New(*cfg, opts...)
	sess.Start(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = sess.Wait(waitCtx)
	cancel()
	if err != nil {
		slog.Error("session setup failed", "error", err)
		os.Exit(1)
	}

	switch {
	case *selfTest:
		if err := runSelfTest(sess, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Self-test failed: %v\n", err)
			os.Exit(1)
		}
	case *device >= 0:
		if err := runLive(ctx, sess, cfg, *device, *maxFrames); err != nil {
			slog.Error("live capture failed", "error", err)
			os.Exit(1)
		}
	default:
		if failed := runImages(sess, cfg, flag.Args(), *outDir); failed > 0 {
			os.Exit(2)
		}
	}
}

func loadConfig(path, backend string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		def := config.Default()
		cfg = &def
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if backend != "" {
		cfg.Detector.Backend = backend
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printResult(name string, res session.Result) {
	if res.Status != session.StatusDetected {
		fmt.Printf("%s: %s\n", name, res.Status)
		return
	}
	p := res.Pose
	fmt.Printf("%s: detected %d corners\n", name, len(res.Corners))
	fmt.Printf("  rvec: [%.6f %.6f %.6f]\n", p.RVec.X, p.RVec.Y, p.RVec.Z)
	fmt.Printf("  tvec: [%.4f %.4f %.4f]\n", p.TVec.X, p.TVec.Y, p.TVec.Z)
	fmt.Printf("  reprojection RMS: %.3f px (%d inliers)\n", p.RMSError, p.Inliers)
}
