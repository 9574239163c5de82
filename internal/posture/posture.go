// Package posture defines the measurement, threshold and classification types shared by the
// capture pipeline, the stores and the HTTP layer.
package posture

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSubmission is returned when a submitted measurement is missing a field or carries a
// non-finite value.
var ErrInvalidSubmission = errors.New("invalid measurement")

// ErrInvalidThresholds is returned when a threshold value is negative or non-finite.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Measurement is a single posture reading. Shoulder and hip angles are degrees of deviation from
// level in [0, 90]; tilt is the signed frame/camera tilt estimate in degrees.
type Measurement struct {
	ShoulderAngle float64 `json:"shoulder_angle"`
	HipAngle      float64 `json:"hip_angle"`
	TiltAngle     float64 `json:"tilt_angle"`
}

// Record is a measurement confirmed by the operator and persisted to the log.
type Record struct {
	ID string `json:"id,omitempty"`
	Measurement
	Timestamp time.Time `json:"-"`
}

type recordJSON struct {
	ID            string  `json:"id,omitempty"`
	ShoulderAngle float64 `json:"shoulder_angle"`
	HipAngle      float64 `json:"hip_angle"`
	TiltAngle     float64 `json:"tilt_angle"`
	Timestamp     float64 `json:"timestamp"`
}

// MarshalJSON writes the timestamp as float epoch seconds.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:            r.ID,
		ShoulderAngle: r.ShoulderAngle,
		HipAngle:      r.HipAngle,
		TiltAngle:     r.TiltAngle,
		Timestamp:     EpochSeconds(r.Timestamp),
	})
}

// EpochSeconds converts t to fractional Unix seconds with microsecond precision.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// FromEpochSeconds converts fractional Unix seconds back to a time, rounded to the microsecond.
func FromEpochSeconds(sec float64) time.Time {
	return time.UnixMicro(int64(math.Round(sec * 1e6)))
}

// Submission is a measurement as submitted by an operator. Every field is required.
type Submission struct {
	ShoulderAngle *float64 `json:"shoulder_angle"`
	HipAngle      *float64 `json:"hip_angle"`
	TiltAngle     *float64 `json:"tilt_angle"`
}

// Validate checks that all three angles are present and finite.
func (s Submission) Validate() error {
	fields := []struct {
		name string
		v    *float64
	}{
		{"shoulder_angle", s.ShoulderAngle},
		{"hip_angle", s.HipAngle},
		{"tilt_angle", s.TiltAngle},
	}
	for _, f := range fields {
		if f.v == nil {
			return fmt.Errorf("%w: missing %s", ErrInvalidSubmission, f.name)
		}
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidSubmission, f.name)
		}
	}
	return nil
}

// Measurement returns the validated submission as a Measurement.
func (s Submission) Measurement() (Measurement, error) {
	if err := s.Validate(); err != nil {
		return Measurement{}, err
	}
	return Measurement{
		ShoulderAngle: *s.ShoulderAngle,
		HipAngle:      *s.HipAngle,
		TiltAngle:     *s.TiltAngle,
	}, nil
}

// Thresholds holds the per-axis tolerances in degrees.
type Thresholds struct {
	Shoulder float64 `json:"shoulder_threshold"`
	Hip      float64 `json:"hip_threshold"`
	Tilt     float64 `json:"tilt_threshold"`
}

// DefaultThresholds returns the tolerances used when nothing has been saved yet.
func DefaultThresholds() Thresholds {
	return Thresholds{Shoulder: 5.0, Hip: 5.0, Tilt: 2.0}
}

// Validate rejects negative or non-finite tolerances.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Shoulder, t.Hip, t.Tilt} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidThresholds, v)
		}
	}
	return nil
}

// For returns the tolerance of the given axis.
func (t Thresholds) For(axis Axis) float64 {
	switch axis {
	case AxisShoulder:
		return t.Shoulder
	case AxisHip:
		return t.Hip
	default:
		return t.Tilt
	}
}

// ThresholdUpdate is a partial update. Nil fields keep their current value.
type ThresholdUpdate struct {
	Shoulder *float64 `json:"shoulder_threshold,omitempty"`
	Hip      *float64 `json:"hip_threshold,omitempty"`
	Tilt     *float64 `json:"tilt_threshold,omitempty"`
}

// Apply returns t with the non-nil fields of u replaced.
func (u ThresholdUpdate) Apply(t Thresholds) Thresholds {
	if u.Shoulder != nil {
		t.Shoulder = *u.Shoulder
	}
	if u.Hip != nil {
		t.Hip = *u.Hip
	}
	if u.Tilt != nil {
		t.Tilt = *u.Tilt
	}
	return t
}

// Empty reports whether the update changes nothing.
func (u ThresholdUpdate) Empty() bool {
	return u.Shoulder == nil && u.Hip == nil && u.Tilt == nil
}
