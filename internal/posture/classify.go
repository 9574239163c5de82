package posture

import "math"

// Axis identifies one of the three tracked deviations.
type Axis int

const (
	AxisShoulder Axis = iota
	AxisHip
	AxisTilt
)

// Axes lists the tracked axes in display order.
var Axes = []Axis{AxisShoulder, AxisHip, AxisTilt}

func (a Axis) String() string {
	switch a {
	case AxisShoulder:
		return "shoulder"
	case AxisHip:
		return "hip"
	case AxisTilt:
		return "tilt"
	default:
		return "unknown"
	}
}

// Value returns the measurement's angle for axis.
func (m Measurement) Value(axis Axis) float64 {
	switch axis {
	case AxisShoulder:
		return m.ShoulderAngle
	case AxisHip:
		return m.HipAngle
	default:
		return m.TiltAngle
	}
}

// Status is the result of comparing one axis against its tolerance.
type Status string

const (
	StatusWithin  Status = "within"
	StatusExceeds Status = "exceeds"
)

// Exceeds reports whether |value| is strictly above threshold.
func Exceeds(value, threshold float64) bool {
	return math.Abs(value) > threshold
}

// Classification holds the per-axis status of a measurement.
type Classification struct {
	Shoulder Status `json:"shoulder"`
	Hip      Status `json:"hip"`
	Tilt     Status `json:"tilt"`
}

// OK reports whether every axis is within tolerance.
func (c Classification) OK() bool {
	return c.Shoulder == StatusWithin && c.Hip == StatusWithin && c.Tilt == StatusWithin
}

// Classify compares each axis of m against t.
func Classify(m Measurement, t Thresholds) Classification {
	status := func(axis Axis) Status {
		if Exceeds(m.Value(axis), t.For(axis)) {
			return StatusExceeds
		}
		return StatusWithin
	}
	return Classification{
		Shoulder: status(AxisShoulder),
		Hip:      status(AxisHip),
		Tilt:     status(AxisTilt),
	}
}

// Level is a three-step grade used by reports.
type Level string

const (
	GradeGood    Level = "good"
	GradeWarning Level = "warning"
	GradeAlert   Level = "alert"
)

// Grade rates value against threshold: good up to t, warning up to 2t, alert beyond.
func Grade(value, threshold float64) Level {
	v := math.Abs(value)
	switch {
	case v <= threshold:
		return GradeGood
	case v <= 2*threshold:
		return GradeWarning
	default:
		return GradeAlert
	}
}
