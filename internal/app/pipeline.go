package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/posturecam/internal/capture"
	"github.com/ayusman/posturecam/internal/emitter"
	"github.com/ayusman/posturecam/internal/geometry"
	"github.com/ayusman/posturecam/internal/posture"
)

// Output is the result of one pipeline iteration.
type Output struct {
	JPEG        []byte
	Measurement *posture.Measurement
	Alternate   *geometry.Alternate
	Live        bool
	Timestamp   time.Time
}

// runPipeline drives frames until ctx is cancelled, running queued commands between frames.
// The device is released on every exit path.
//
// Per iteration:
//  1. next frame from the manager (synthetic when degraded)
//  2. mirror, refresh frame tilt when the scene changed, detect, measure, draw
//  3. encode, publish to stream subscribers, emit a throttled live reading
//  4. yield
func (a *App) runPipeline(ctx context.Context) {
	defer a.manager.Release()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.cmds:
			cmd(ctx)
			continue
		default:
		}

		frame := a.manager.NextFrame()
		a.metrics.SetDeviceLive(frame.Live)
		out := a.processFrame(&frame)
		if err := frame.Close(); err != nil {
			log.Debug().Err(err).Msg("frame close failed")
		}
		a.publish(ctx, out)

		timer := time.NewTimer(a.cfg.FrameYield)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case cmd := <-a.cmds:
			timer.Stop()
			cmd(ctx)
		case <-timer.C:
		}
	}
}

// processFrame turns a raw frame into an encoded frame and, when possible, a measurement. It
// never fails: any error or panic yields a synthetic frame for this iteration.
func (a *App) processFrame(frame *capture.Frame) (out Output) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.metrics.PipelinePanics.Add(1)
			log.Error().Interface("panic", r).Msg("frame processing panicked, serving synthetic frame")
			out = a.syntheticOutput()
		}
		a.metrics.FramesProcessed.Add(1)
		a.metrics.UpdateProcessLatency(time.Since(start))
	}()

	if !frame.Live {
		a.metrics.FramesSynthetic.Add(1)
		jpeg, err := a.encode(frame.Mat)
		if err != nil {
			a.metrics.EncodeFailures.Add(1)
			log.Warn().Err(err).Msg("synthetic frame encode failed")
			jpeg = a.lastJPEG
		}
		return Output{JPEG: jpeg, Measurement: frame.Synthetic, Timestamp: frame.Timestamp}
	}

	img := &frame.Mat
	gocv.Flip(*img, img, 1)

	if a.monitor.Observe(img) {
		a.tilt = geometry.FrameTilt(*img)
	}

	out = Output{Live: true, Timestamp: frame.Timestamp}
	out.Measurement, out.Alternate = a.measure(img)

	jpeg, err := a.encode(*img)
	if err != nil {
		a.metrics.EncodeFailures.Add(1)
		log.Warn().Err(err).Msg("frame encode failed, serving synthetic frame")
		return a.syntheticOutput()
	}
	out.JPEG = jpeg
	return out
}

// measure detects landmarks on img, computes the measurement and draws the overlay. It returns
// nil measurements on a detection miss or unusable landmarks, leaving img unannotated.
func (a *App) measure(img *gocv.Mat) (*posture.Measurement, *geometry.Alternate) {
	if a.detector == nil {
		return nil, nil
	}

	pose, err := a.detector.Detect(img)
	if err != nil {
		a.metrics.DetectionMisses.Add(1)
		log.Debug().Err(err).Msg("pose detection failed")
		return nil, nil
	}
	if pose == nil || len(pose.Points) == 0 {
		a.metrics.DetectionMisses.Add(1)
		return nil, nil
	}

	width, height := img.Cols(), img.Rows()
	points := pose.Scale(width, height).Points2D()

	m, err := geometry.Analyze(points, a.tilt)
	if err != nil {
		a.metrics.MeasureFailures.Add(1)
		log.Debug().Err(err).Msg("landmarks not measurable")
		return nil, nil
	}

	var alt *geometry.Alternate
	if v, err := geometry.AnalyzeAlternate(points, float64(width)); err == nil {
		alt = &v
	}

	a.renderer.Draw(img, points, a.tilt, a.thresholds())
	return &m, alt
}

func (a *App) thresholds() posture.Thresholds {
	if a.cfg.Thresholds == nil {
		return posture.DefaultThresholds()
	}
	return a.cfg.Thresholds.Get()
}

func (a *App) encode(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("encode: empty image")
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), a.cfg.JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// placeholder encodes a black frame so a failed encode always has a buffer to fall back on.
func (a *App) placeholder() []byte {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	defer img.Close()
	jpeg, err := a.encode(img)
	if err != nil {
		log.Error().Err(err).Msg("placeholder frame encode failed")
		return nil
	}
	return jpeg
}

func (a *App) syntheticOutput() Output {
	frame := a.manager.Synthetic()
	defer frame.Close()

	a.metrics.FramesSynthetic.Add(1)
	jpeg, err := a.encode(frame.Mat)
	if err != nil {
		a.metrics.EncodeFailures.Add(1)
		jpeg = a.lastJPEG
	}
	return Output{JPEG: jpeg, Measurement: frame.Synthetic, Timestamp: frame.Timestamp}
}

// publish hands out to stream subscribers and the side channel. Emission is throttled and its
// failures are only logged and counted.
func (a *App) publish(ctx context.Context, out Output) {
	if len(out.JPEG) > 0 {
		a.lastJPEG = out.JPEG
		a.broadcaster.Publish(out.JPEG)
	}
	a.metrics.StreamSubscribers.Store(int64(a.broadcaster.Count()))
	a.setLatest(out)

	if a.cfg.Emitter == nil || out.Measurement == nil {
		return
	}
	now := time.Now()
	if !a.throttle.Ready(now) {
		return
	}

	// The attempt consumes the slot whether or not every channel delivers.
	a.throttle.Mark(now)
	reading := emitter.NewReading(*out.Measurement, out.Alternate, a.thresholds(), out.Live, now)
	if err := a.cfg.Emitter.Emit(ctx, reading); err != nil {
		a.metrics.EmitFailures.Add(1)
		log.Warn().Err(err).Msg("live reading not emitted")
		return
	}
	a.metrics.Emissions.Add(1)
}
