package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"checkerpose/internal/config"
	"checkerpose/internal/opencv"
	"checkerpose/internal/session"
	"checkerpose/internal/stream"

	"gocv.io/x/gocv"
)

// runLive captures from a camera and feeds frames through the processor
// until ctx is cancelled or maxFrames frames have been captured.
func runLive(ctx context.Context, sess *session.Session, cfg *config.Config, device, maxFrames int) error {
	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("failed to open camera %d: %w", device, err)
	}
	defer webcam.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	proc := stream.New(sess, stream.ConsumerFunc(func(_ context.Context, res session.Result) {
		if res.Status != session.StatusDetected {
			slog.Debug("frame", "seq", res.Seq, "status", res.Status.String())
			return
		}
		p := res.Pose
		slog.Info("marker pose",
			"seq", res.Seq,
			"rvec", []float64{p.RVec.X, p.RVec.Y, p.RVec.Z},
			"tvec", []float64{p.TVec.X, p.TVec.Y, p.TVec.Z},
			"rms", p.RMSError,
		)
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		proc.Run(ctx)
	}()

	img := gocv.NewMat()
	defer img.Close()

	slog.Info("capturing", "device", device, "marker", cfg.Shape().String())
	captured := 0
	for ctx.Err() == nil && (maxFrames <= 0 || captured < maxFrames) {
		if ok := webcam.Read(&img); !ok {
			slog.Warn("camera closed", "device", device)
			break
		}
		if img.Empty() {
			continue
		}
		f, err := opencv.FromMat(img)
		if err != nil {
			slog.Warn("skipping frame", "error", err)
			continue
		}
		proc.Submit(f)
		captured++
	}

	proc.Close()
	wg.Wait()

	st := proc.Stats()
	slog.Info("capture finished",
		"submitted", st.Submitted,
		"processed", st.Processed,
		"dropped", st.Dropped,
		"detected", st.Detected,
		"not_detected", st.NotDetected,
		"errors", st.Errors,
	)
	return nil
}
