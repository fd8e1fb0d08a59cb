package main

import (
	"fmt"
	"math"

	"checkerpose/internal/config"
	"checkerpose/internal/session"
	"checkerpose/internal/synth"
)

// runSelfTest renders the configured marker frontally at 20 squares through
// the configured camera and checks the recovered distance.
func runSelfTest(sess *session.Session, cfg *config.Config) error {
	const distance = 20
	scene := synth.Frontal(cfg.CameraModel(), cfg.Shape(), distance, 640, 480)

	res, err := sess.Process(scene.Frame())
	if err != nil {
		return err
	}
	printResult("synthetic", res)
	if res.Status != session.StatusDetected {
		return fmt.Errorf("marker not detected")
	}

	want := distance * cfg.Marker.SquareSize
	if got := res.Pose.TVec.Z; math.Abs(got-want) > 0.01*want {
		return fmt.Errorf("distance %.3f, want %.3f", got, want)
	}
	if angle := res.Pose.RVec.Norm() * 180 / math.Pi; angle > 2 {
		return fmt.Errorf("rotation %.2f deg, want ~0", angle)
	}
	fmt.Println("self-test passed")
	return nil
}
