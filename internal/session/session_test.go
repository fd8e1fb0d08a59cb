package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"checkerpose/internal/config"
	"checkerpose/internal/detect"
	"checkerpose/internal/frame"
	"checkerpose/internal/grid"
	"checkerpose/internal/pose"
	"checkerpose/internal/synth"
	"checkerpose/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedDetector struct {
	corners detect.Corners
}

func (d fixedDetector) Detect(frame.Frame, grid.Shape) (detect.Corners, bool) {
	return d.corners, d.corners != nil
}

func startAndWait(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Start(ctx)
	require.NoError(t, s.Wait(ctx))
}

func boardFrame(cfg config.Config) (synth.Scene, frame.Frame) {
	scene := synth.Frontal(cfg.CameraModel(), cfg.Shape(), 20, 640, 480)
	return scene, scene.Frame()
}

func TestProcessBeforeStartPassesThrough(t *testing.T) {
	cfg := config.Default()
	s := New(cfg)
	_, f := boardFrame(cfg)
	f.Seq = 7
	before := append([]byte(nil), f.Pix...)

	res, err := s.Process(f)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, uint64(7), res.Seq)
	assert.Nil(t, res.Corners)
	assert.Equal(t, before, f.Pix)
	assert.Equal(t, StateUninitialized, s.State())
	assert.False(t, s.Ready())
}

func TestStartTransitionsOnce(t *testing.T) {
	s := New(config.Default())
	startAndWait(t, s)
	assert.Equal(t, StateReady, s.State())
	assert.NoError(t, s.Err())

	first := s.setup.Load()
	s.Start(context.Background())
	s.Start(context.Background())
	assert.Same(t, first, s.setup.Load())
	assert.Equal(t, StateReady, s.State())
}

func TestFramesSkippedWhileInitializing(t *testing.T) {
	release := make(chan struct{})
	s := New(config.Default(), WithWarmup(func(ctx context.Context) error {
		<-release
		return nil
	}))

	s.Start(context.Background())
	assert.Equal(t, StateInitializing, s.State())

	res, err := s.Process(synth.Blank(64, 48))
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)

	close(release)
	require.NoError(t, s.Wait(context.Background()))
	assert.True(t, s.Ready())
}

func TestSetupFailures(t *testing.T) {
	badGrid := config.Default()
	badGrid.Marker.Rows = 0

	opencv := config.Default()
	opencv.Detector.Backend = config.BackendOpenCV

	badMethod := config.Default()
	badMethod.Pose.Method = "epnp"

	boom := errors.New("boom")

	tests := []struct {
		name   string
		cfg    config.Config
		opts   []Option
		target error
	}{
		{"invalid grid", badGrid, nil, grid.ErrInvalidShape},
		{"opencv without detector", opencv, nil, nil},
		{"unknown pose method", badMethod, nil, nil},
		{"warmup error", config.Default(), []Option{WithWarmup(func(context.Context) error { return boom })}, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.cfg, tt.opts...)
			s.Start(context.Background())
			err := s.Wait(context.Background())
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Equal(t, StateFailed, s.State())
			assert.Equal(t, err, s.Err())

			res, perr := s.Process(synth.Blank(64, 48))
			require.NoError(t, perr)
			assert.Equal(t, StatusSkipped, res.Status)
		})
	}
}

func TestStartWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(config.Default())
	s.Start(ctx)
	<-s.done
	assert.Equal(t, StateFailed, s.State())
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	s := New(config.Default(), WithWarmup(func(context.Context) error {
		<-release
		return nil
	}))
	s.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}

func TestProcessFrontalMarker(t *testing.T) {
	cfg := config.Default()
	s := New(cfg)
	startAndWait(t, s)

	scene, f := boardFrame(cfg)
	res, err := s.Process(f)
	require.NoError(t, err)
	require.Equal(t, StatusDetected, res.Status)
	require.Len(t, res.Corners, cfg.Shape().Len())

	// Corner 0 is the marker's top-left interior corner.
	truth := scene.Corners()
	assert.InDelta(t, truth[0].X, res.Corners[0].X, 0.5)
	assert.InDelta(t, truth[0].Y, res.Corners[0].Y, 0.5)

	assert.InDelta(t, 20, res.Pose.TVec.Z, 0.2)
	assert.InDelta(t, -3.5, res.Pose.TVec.X, 0.1)
	assert.InDelta(t, -2.5, res.Pose.TVec.Y, 0.1)
	assert.Less(t, res.Pose.RVec.Norm(), 2*math.Pi/180)
	assert.Less(t, res.Pose.RMSError, 0.5)
}

func TestProcessRepeatedFramesAreIdentical(t *testing.T) {
	cfg := config.Default()
	s := New(cfg)
	startAndWait(t, s)

	_, f := boardFrame(cfg)
	a, err := s.Process(f)
	require.NoError(t, err)
	b, err := s.Process(f)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProcessScaledMarker(t *testing.T) {
	cfg := config.Default()
	cfg.Marker.SquareSize = 25 // millimetres
	s := New(cfg)
	startAndWait(t, s)

	_, f := boardFrame(cfg)
	res, err := s.Process(f)
	require.NoError(t, err)
	require.Equal(t, StatusDetected, res.Status)
	assert.InDelta(t, 500, res.Pose.TVec.Z, 5)
}

func TestProcessNoMarker(t *testing.T) {
	s := New(config.Default())
	startAndWait(t, s)

	res, err := s.Process(synth.Blank(640, 480))
	require.NoError(t, err)
	assert.Equal(t, StatusNotDetected, res.Status)
	assert.Nil(t, res.Corners)
}

func TestProcessDetectorContract(t *testing.T) {
	t.Run("count mismatch is an error", func(t *testing.T) {
		s := New(config.Default(), WithDetector(fixedDetector{corners: make(detect.Corners, 5)}))
		startAndWait(t, s)

		_, err := s.Process(synth.Blank(64, 48))
		assert.ErrorIs(t, err, pose.ErrCorrespondenceMismatch)
	})

	t.Run("degenerate corners are not detected", func(t *testing.T) {
		same := make(detect.Corners, 48)
		for i := range same {
			same[i] = geometry.Point2D{X: 100, Y: 100}
		}
		s := New(config.Default(), WithDetector(fixedDetector{corners: same}))
		startAndWait(t, s)

		res, err := s.Process(synth.Blank(64, 48))
		require.NoError(t, err)
		assert.Equal(t, StatusNotDetected, res.Status)
	})
}

func TestConcurrentProcessDuringStart(t *testing.T) {
	cfg := config.Default()
	s := New(cfg)
	_, f := boardFrame(cfg)

	var wg sync.WaitGroup
	results := make([]Status, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Process(f)
			assert.NoError(t, err)
			results[i] = res.Status
		}(i)
		if i == 3 {
			s.Start(context.Background())
		}
	}
	wg.Wait()
	require.NoError(t, s.Wait(context.Background()))

	for _, st := range results {
		assert.Contains(t, []Status{StatusSkipped, StatusDetected}, st)
	}
}
