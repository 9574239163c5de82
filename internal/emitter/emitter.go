// Package emitter carries live posture readings to side channels: the browser websocket, the
// tray, and an optional MQTT broker.
package emitter

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/ayusman/posturecam/internal/geometry"
	"github.com/ayusman/posturecam/internal/posture"
)

// DefaultInterval is the minimum spacing between two emissions (about 30 per second).
const DefaultInterval = 33 * time.Millisecond

// Reading is one live measurement as published on a side channel.
type Reading struct {
	ShoulderAngle  float64                `json:"shoulder_angle"`
	HipAngle       float64                `json:"hip_angle"`
	TiltAngle      float64                `json:"tilt_angle"`
	Classification posture.Classification `json:"classification"`
	OK             bool                   `json:"ok"`
	Alternate      *geometry.Alternate    `json:"alternate,omitempty"`
	Live           bool                   `json:"live"`
	Timestamp      float64                `json:"timestamp"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NewReading builds a reading from m, rounding angles to two decimals and classifying against t.
func NewReading(m posture.Measurement, alt *geometry.Alternate, t posture.Thresholds, live bool, now time.Time) Reading {
	rounded := posture.Measurement{
		ShoulderAngle: round2(m.ShoulderAngle),
		HipAngle:      round2(m.HipAngle),
		TiltAngle:     round2(m.TiltAngle),
	}
	c := posture.Classify(m, t)
	r := Reading{
		ShoulderAngle:  rounded.ShoulderAngle,
		HipAngle:       rounded.HipAngle,
		TiltAngle:      rounded.TiltAngle,
		Classification: c,
		OK:             c.OK(),
		Live:           live,
		Timestamp:      posture.EpochSeconds(now),
	}
	if alt != nil {
		a := roundAlternate(*alt)
		r.Alternate = &a
	}
	return r
}

func roundAlternate(a geometry.Alternate) geometry.Alternate {
	return geometry.Alternate{
		HeadTilt:     round2(a.HeadTilt),
		ShoulderTilt: round2(a.ShoulderTilt),
		HipShift:     round2(a.HipShift),
	}
}

// Measurement returns the rounded angles of r.
func (r Reading) Measurement() posture.Measurement {
	return posture.Measurement{ShoulderAngle: r.ShoulderAngle, HipAngle: r.HipAngle, TiltAngle: r.TiltAngle}
}

// Emitter delivers readings. Implementations must not block the caller for long.
type Emitter interface {
	Emit(ctx context.Context, r Reading) error
}

// Func adapts a function to Emitter.
type Func func(ctx context.Context, r Reading) error

// Emit calls f.
func (f Func) Emit(ctx context.Context, r Reading) error { return f(ctx, r) }

// Multi fans a reading out to every emitter and joins their errors.
type Multi []Emitter

// Emit delivers r to every emitter in m, even when an earlier one fails.
func (m Multi) Emit(ctx context.Context, r Reading) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Throttle admits at most one emission per interval. It only advances on Mark.
type Throttle struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewThrottle creates a throttle. A non-positive interval uses DefaultInterval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttle{interval: interval}
}

// Ready reports whether an emission at now is allowed.
func (t *Throttle) Ready(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last.IsZero() || now.Sub(t.last) >= t.interval
}

// Mark records an emission attempt at now.
func (t *Throttle) Mark(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = now
}

// Interval returns the configured spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
