// Package stream delivers camera frames to a tracking session from a
// capture goroutine without ever blocking it.
//
// Frames go through a single-slot mailbox: a frame that has not been picked
// up when the next one arrives is replaced and counted as dropped, so the
// worker always processes the newest frame and latency does not build up
// when processing is slower than capture.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"checkerpose/internal/frame"
	"checkerpose/internal/session"
)

// Tracker processes one frame. *session.Session implements it.
type Tracker interface {
	Process(f frame.Frame) (session.Result, error)
}

// Consumer receives per-frame results on the worker goroutine.
type Consumer interface {
	Consume(ctx context.Context, res session.Result)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, res session.Result)

func (f ConsumerFunc) Consume(ctx context.Context, res session.Result) { f(ctx, res) }

// Stats is a snapshot of the processor counters.
type Stats struct {
	Submitted   uint64
	Dropped     uint64 // replaced in the mailbox before being processed
	Processed   uint64
	Skipped     uint64
	NotDetected uint64
	Detected    uint64
	Errors      uint64
	LastSeq     uint64 // sequence number of the last processed frame
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// Processor owns the mailbox between a frame source and a Tracker.
type Processor struct {
	tracker  Tracker
	consumer Consumer
	logger   *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	slot   *frame.Frame
	seq    uint64
	closed bool

	submitted, dropped, processed        atomic.Uint64
	skipped, notDetected, detected, errs atomic.Uint64
	lastSeq                              atomic.Uint64
}

// New returns a processor feeding t and reporting to c.
func New(t Tracker, c Consumer, opts ...Option) *Processor {
	p := &Processor{
		tracker:  t,
		consumer: c,
		logger:   slog.Default(),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit hands a frame to the worker and returns immediately. The frame is
// given the next sequence number. The caller must not modify f.Pix until the
// frame has been processed or replaced; capture loops normally allocate a
// fresh buffer per frame. Submit returns false after Close.
func (p *Processor) Submit(f frame.Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.seq++
	f.Seq = p.seq
	p.submitted.Add(1)

	if p.slot != nil {
		p.dropped.Add(1)
	}
	p.slot = &f
	p.cond.Signal()
	return true
}

// next blocks until a frame is available or the processor is closed.
func (p *Processor) next() (frame.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.slot == nil && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return frame.Frame{}, false
	}
	f := *p.slot
	p.slot = nil
	return f, true
}

// Close stops Run and rejects further frames. A frame still in the mailbox
// is discarded. Close is idempotent.
func (p *Processor) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.slot = nil
	p.cond.Broadcast()
}

// Run processes frames until ctx is done or Close is called. It must be
// called from a single goroutine. Run returns ctx.Err() when stopped by the
// context and nil after Close.
func (p *Processor) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.Close)
	defer stop()

	p.logger.Info("frame processor started")
	defer p.logger.Info("frame processor stopped", "processed", p.processed.Load(), "dropped", p.dropped.Load())

	for {
		f, ok := p.next()
		if !ok {
			return ctx.Err()
		}

		res, err := p.tracker.Process(f)
		p.processed.Add(1)
		p.lastSeq.Store(f.Seq)
		if err != nil {
			p.errs.Add(1)
			p.logger.Warn("frame processing failed", "seq", f.Seq, "error", err)
			continue
		}

		switch res.Status {
		case session.StatusSkipped:
			p.skipped.Add(1)
		case session.StatusNotDetected:
			p.notDetected.Add(1)
		case session.StatusDetected:
			p.detected.Add(1)
		}
		if p.consumer != nil {
			p.consumer.Consume(ctx, res)
		}
	}
}

// Stats returns the current counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Submitted:   p.submitted.Load(),
		Dropped:     p.dropped.Load(),
		Processed:   p.processed.Load(),
		Skipped:     p.skipped.Load(),
		NotDetected: p.notDetected.Load(),
		Detected:    p.detected.Load(),
		Errors:      p.errs.Load(),
		LastSeq:     p.lastSeq.Load(),
	}
}
