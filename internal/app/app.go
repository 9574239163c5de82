// Package app runs the posture pipeline: it owns the capture worker, serializes source changes
// onto it, and publishes encoded frames and live readings.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/capture"
	"github.com/ayusman/posturecam/internal/detector"
	"github.com/ayusman/posturecam/internal/emitter"
	"github.com/ayusman/posturecam/internal/geometry"
	"github.com/ayusman/posturecam/internal/metrics"
	"github.com/ayusman/posturecam/internal/overlay"
	"github.com/ayusman/posturecam/internal/posture"
)

// Pipeline defaults.
const (
	DefaultFrameYield      = 10 * time.Millisecond
	DefaultJPEGQuality     = 90
	DefaultMotionThreshold = 1.0
)

// ErrStopped is returned when a command is sent to a worker that has exited.
var ErrStopped = errors.New("pipeline stopped")

// ThresholdSource provides the current tolerances.
type ThresholdSource interface {
	Get() posture.Thresholds
}

// Config holds the collaborators and tuning of an App.
type Config struct {
	Manager    *capture.Manager
	Detector   detector.Detector
	Thresholds ThresholdSource
	Emitter    emitter.Emitter
	Metrics    *metrics.Metrics

	// Kind and Index select the source acquired by Start.
	Kind  capture.Kind
	Index *int

	EmitInterval      time.Duration
	FrameYield        time.Duration
	JPEGQuality       int
	MotionThreshold   float64
	TiltRefreshFrames int
}

type command func(ctx context.Context)

// App is the posture pipeline.
type App struct {
	cfg         Config
	manager     *capture.Manager
	detector    detector.Detector
	renderer    overlay.Renderer
	monitor     *capture.SceneMonitor
	throttle    *emitter.Throttle
	broadcaster *FrameBroadcaster
	metrics     *metrics.Metrics
	cmds        chan command

	// worker-owned
	tilt     geometry.Tilt
	lastJPEG []byte

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	latestMu sync.RWMutex
	latest   Output
}

// New creates an App. Zero tuning values select defaults.
func New(cfg Config) *App {
	if cfg.Manager == nil {
		cfg.Manager = capture.NewManager(capture.ManagerConfig{})
	}
	if cfg.Kind == "" {
		cfg.Kind = capture.KindPC
	}
	if cfg.FrameYield <= 0 {
		cfg.FrameYield = DefaultFrameYield
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.MotionThreshold <= 0 {
		cfg.MotionThreshold = DefaultMotionThreshold
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	a := &App{
		cfg:         cfg,
		manager:     cfg.Manager,
		detector:    cfg.Detector,
		monitor:     capture.NewSceneMonitor(cfg.MotionThreshold, cfg.TiltRefreshFrames),
		throttle:    emitter.NewThrottle(cfg.EmitInterval),
		broadcaster: NewFrameBroadcaster(),
		metrics:     cfg.Metrics,
		cmds:        make(chan command),
	}
	a.lastJPEG = a.placeholder()
	return a
}

// Start acquires the configured source and launches the worker. An acquisition failure is not
// fatal: the worker then serves synthetic frames.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if err := a.acquire(ctx, a.cfg.Kind, a.cfg.Index); err != nil {
		log.Warn().Err(err).Msg("starting in degraded mode")
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		a.runPipeline(runCtx)
	}(a.done)

	log.Info().Str("kind", string(a.cfg.Kind)).Msg("pipeline started")
	return nil
}

// Stop cancels the worker and waits for it to release the device.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil

	a.monitor.Close()
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Warn().Err(err).Msg("detector close failed")
		}
	}
	a.metrics.SetDeviceLive(false)
	log.Info().Msg("pipeline stopped")
}

// Running reports whether the worker is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// exec runs fn on the worker, or inline under the lifecycle lock when no worker is running.
// ctx bounds only the wait: once queued, fn runs to completion under the worker's context, so
// a caller that gives up cannot cut a device acquisition short.
func (a *App) exec(ctx context.Context, fn func(ctx context.Context)) error {
	a.mu.Lock()
	if a.cancel == nil {
		defer a.mu.Unlock()
		fn(context.WithoutCancel(ctx))
		return nil
	}
	done := a.done
	a.mu.Unlock()

	finished := make(chan struct{})
	cmd := func(wctx context.Context) {
		defer close(finished)
		fn(wctx)
	}

	select {
	case a.cmds <- cmd:
	case <-done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectSource releases the current device and acquires kind, on the worker. A failed
// acquisition leaves the pipeline degraded and returns an error wrapping
// capture.ErrDeviceUnavailable.
func (a *App) SelectSource(ctx context.Context, kind capture.Kind, index *int) error {
	if _, err := capture.ParseKind(string(kind)); err != nil {
		return err
	}
	var result error
	if err := a.exec(ctx, func(c context.Context) {
		result = a.acquire(c, kind, index)
	}); err != nil {
		return err
	}
	return result
}

// ListSources probes device indices [0, max) on the worker.
func (a *App) ListSources(ctx context.Context, max int) ([]int, error) {
	var out []int
	if err := a.exec(ctx, func(context.Context) {
		out = a.manager.ListAvailable(max)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *App) acquire(ctx context.Context, kind capture.Kind, index *int) error {
	a.metrics.AcquireAttempts.Add(1)
	err := a.manager.Acquire(ctx, kind, index)
	if err != nil {
		a.metrics.AcquireFailures.Add(1)
	}
	a.metrics.SetDeviceLive(a.manager.State() == capture.StateLive)
	a.monitor.Reset()
	return err
}

// Status returns the device manager's status.
func (a *App) Status() capture.Status {
	return a.manager.Status()
}

// Broadcaster returns the frame fan-out used by the MJPEG stream.
func (a *App) Broadcaster() *FrameBroadcaster {
	return a.broadcaster
}

// Metrics returns the pipeline metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Latest returns the most recent pipeline output.
func (a *App) Latest() Output {
	a.latestMu.RLock()
	defer a.latestMu.RUnlock()
	return a.latest
}

// LatestMeasurement returns the most recent measurement, or nil when the last frame had none.
func (a *App) LatestMeasurement() *posture.Measurement {
	out := a.Latest()
	if out.Measurement == nil {
		return nil
	}
	m := *out.Measurement
	return &m
}

func (a *App) setLatest(out Output) {
	a.latestMu.Lock()
	a.latest = out
	a.latestMu.Unlock()
}
