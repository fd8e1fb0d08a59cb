// Package session gates per-frame marker tracking behind a one-shot
// asynchronous setup. Frames that arrive before setup finishes pass through
// untouched.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"checkerpose/internal/camera"
	"checkerpose/internal/config"
	"checkerpose/internal/detect"
	"checkerpose/internal/frame"
	"checkerpose/internal/grid"
	"checkerpose/internal/pose"

	"github.com/google/uuid"
)

// State is the readiness of a session. It only ever moves forward.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed // setup failed; frames are passed through
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Status classifies a processed frame.
type Status int

const (
	StatusSkipped     Status = iota // session not ready; frame untouched
	StatusNotDetected               // no marker, or no pose for the corners found
	StatusDetected
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusNotDetected:
		return "not_detected"
	case StatusDetected:
		return "detected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome for one frame. Corners and Pose are set only when
// Status is StatusDetected and are valid for that frame alone.
type Result struct {
	Seq     uint64
	Status  Status
	Corners detect.Corners
	Pose    pose.Pose
}

// setup is built once and never modified after publication.
type setup struct {
	grid     grid.Grid
	camera   camera.Model
	detector detect.Detector
	poseOpts pose.Options
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithDetector replaces the detector built from the configuration.
func WithDetector(d detect.Detector) Option {
	return func(s *Session) { s.detector = d }
}

// WithWarmup runs fn during setup, after the grid and camera are built.
// An error fails the session.
func WithWarmup(fn func(ctx context.Context) error) Option {
	return func(s *Session) { s.warmup = fn }
}

// Session owns the marker model, camera model and readiness state for one
// capture session.
type Session struct {
	id     uuid.UUID
	cfg    config.Config
	logger *slog.Logger

	detector detect.Detector
	warmup   func(ctx context.Context) error

	state atomic.Int32
	setup atomic.Pointer[setup]
	err   atomic.Pointer[error]
	done  chan struct{}
}

// New returns an uninitialized session for the given configuration.
func New(cfg config.Config, opts ...Option) *Session {
	s := &Session{
		id:     uuid.New(),
		cfg:    cfg,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id.String())
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current readiness state.
func (s *Session) State() State { return State(s.state.Load()) }

// Ready reports whether frames are being processed.
func (s *Session) Ready() bool { return s.State() == StateReady }

// Err returns the setup error of a failed session.
func (s *Session) Err() error {
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Start begins setup in the background and returns immediately. Only the
// first call has an effect.
func (s *Session) Start(ctx context.Context) {
	if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
		return
	}
	s.logger.Info("session initializing", "marker", s.cfg.Shape().String())
	go s.initialize(ctx)
}

// Wait blocks until setup has finished or ctx is done. It returns the setup
// error for a failed session.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) initialize(ctx context.Context) {
	st, err := s.build(ctx)
	if err != nil {
		s.err.Store(&err)
		s.state.Store(int32(StateFailed))
		close(s.done)
		s.logger.Error("session setup failed", "error", err)
		return
	}

	s.setup.Store(st)
	s.state.Store(int32(StateReady))
	close(s.done)
	s.logger.Info("session ready", "points", st.grid.Len())
}

func (s *Session) build(ctx context.Context) (*setup, error) {
	g, err := grid.Build(s.cfg.Marker.Rows, s.cfg.Marker.Cols)
	if err != nil {
		return nil, fmt.Errorf("failed to build reference grid: %w", err)
	}
	if s.cfg.Marker.SquareSize > 0 && s.cfg.Marker.SquareSize != 1 {
		g = g.Scaled(s.cfg.Marker.SquareSize)
	}

	poseOpts, err := s.cfg.PoseOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to configure pose solver: %w", err)
	}

	det := s.detector
	if det == nil {
		if s.cfg.Detector.Backend == config.BackendOpenCV {
			return nil, fmt.Errorf("detector backend %q must be supplied with WithDetector", config.BackendOpenCV)
		}
		det = detect.NewChessboard(s.cfg.DetectorOptions())
	}

	st := &setup{
		grid:     g,
		camera:   s.cfg.CameraModel(),
		detector: det,
		poseOpts: poseOpts,
	}

	if s.warmup != nil {
		if err := s.warmup(ctx); err != nil {
			return nil, fmt.Errorf("warmup failed: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("setup cancelled: %w", err)
	}
	return st, nil
}

// Process detects the marker in f and solves its pose. Until the session is
// ready the frame is returned as skipped without being read. The only error
// is a corner/grid count mismatch from the detector.
func (s *Session) Process(f frame.Frame) (Result, error) {
	res := Result{Seq: f.Seq, Status: StatusSkipped}
	if s.State() != StateReady {
		return res, nil
	}
	st := s.setup.Load()

	corners, ok := st.detector.Detect(f, st.grid.Shape())
	if !ok {
		res.Status = StatusNotDetected
		s.logger.Debug("marker not found", "seq", f.Seq)
		return res, nil
	}

	p, err := pose.Solve(st.grid, corners, st.camera, st.poseOpts)
	switch {
	case errors.Is(err, pose.ErrCorrespondenceMismatch):
		return res, fmt.Errorf("frame %d: %w", f.Seq, err)
	case err != nil:
		res.Status = StatusNotDetected
		s.logger.Debug("no pose for detected corners", "seq", f.Seq, "error", err)
		return res, nil
	}

	res.Status = StatusDetected
	res.Corners = corners
	res.Pose = p
	s.logger.Debug("marker pose",
		"seq", f.Seq,
		"rvec", []float64{p.RVec.X, p.RVec.Y, p.RVec.Z},
		"tvec", []float64{p.TVec.X, p.TVec.Y, p.TVec.Z},
		"rms", p.RMSError,
	)
	return res, nil
}
