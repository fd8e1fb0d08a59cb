package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"checkerpose/internal/config"
	"checkerpose/internal/frame"
	"checkerpose/internal/opencv"
	"checkerpose/internal/session"

	"gocv.io/x/gocv"
)

// runImages processes each path and returns the number of images that could
// not be read or processed.
func runImages(sess *session.Session, cfg *config.Config, paths []string, outDir string) int {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
			return len(paths)
		}
	}

	failed := 0
	for i, path := range paths {
		if !frame.IsSupportedFormat(path) {
			fmt.Fprintf(os.Stderr, "%s: unsupported format (want one of %s)\n", path, strings.Join(frame.SupportedFormats(), ", "))
			failed++
			continue
		}

		var err error
		if outDir != "" {
			err = processAnnotated(sess, cfg, path, outDir, uint64(i+1))
		} else {
			err = processFile(sess, path, uint64(i+1))
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
		}
	}
	return failed
}

func processFile(sess *session.Session, path string, seq uint64) error {
	f, err := frame.Load(path)
	if err != nil {
		return err
	}
	f.Seq = seq
	res, err := sess.Process(f)
	if err != nil {
		return err
	}
	printResult(path, res)
	return nil
}

// processAnnotated reads through OpenCV so the result can be drawn on the
// original pixels and written next to the other outputs.
func processAnnotated(sess *session.Session, cfg *config.Config, path, outDir string, seq uint64) error {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("failed to read image")
	}
	defer img.Close()

	f, err := opencv.FromMat(img)
	if err != nil {
		return err
	}
	f.Seq = seq
	res, err := sess.Process(f)
	if err != nil {
		return err
	}
	printResult(path, res)

	if err := opencv.Annotate(&img, cfg.Shape(), cfg.CameraModel(), res, cfg.Marker.SquareSize); err != nil {
		return fmt.Errorf("failed to annotate: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(outDir, base+"_pose.png")
	if !gocv.IMWrite(out, img) {
		return fmt.Errorf("failed to write %s", out)
	}
	fmt.Printf("  annotated: %s\n", out)
	return nil
}
