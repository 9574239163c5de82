package geometry

import (
	"fmt"
	"math"

	"github.com/ayusman/posturecam/internal/detector"
	"github.com/ayusman/posturecam/internal/posture"
)

// Pair is one tracked left/right landmark pair.
type Pair struct {
	Axis  posture.Axis
	Left  int
	Right int
}

// Pairs lists the tracked pairs in drawing order. The reference pair is judged against the
// tilt tolerance.
var Pairs = []Pair{
	{Axis: posture.AxisShoulder, Left: detector.LeftShoulder, Right: detector.RightShoulder},
	{Axis: posture.AxisHip, Left: detector.LeftHip, Right: detector.RightHip},
	{Axis: posture.AxisTilt, Left: detector.ReferenceLeft, Right: detector.ReferenceRight},
}

func at(points []Point, idx int) (Point, error) {
	if idx >= len(points) {
		return Point{}, fmt.Errorf("%w: need index %d, have %d", ErrTooFewLandmarks, idx, len(points))
	}
	return points[idx], nil
}

// Endpoints returns the two points of pair.
func (p Pair) Endpoints(points []Point) (Point, Point, error) {
	a, err := at(points, p.Left)
	if err != nil {
		return Point{}, Point{}, err
	}
	b, err := at(points, p.Right)
	if err != nil {
		return Point{}, Point{}, err
	}
	return a, b, nil
}

// Analyze computes the posture measurement for a pixel-space landmark set.
func Analyze(points []Point, tilt Tilt) (posture.Measurement, error) {
	ls, rs, err := Pairs[0].Endpoints(points)
	if err != nil {
		return posture.Measurement{}, err
	}
	lh, rh, err := Pairs[1].Endpoints(points)
	if err != nil {
		return posture.Measurement{}, err
	}

	shoulder, err := PairAngle(ls, rs, tilt)
	if err != nil {
		return posture.Measurement{}, fmt.Errorf("shoulder: %w", err)
	}
	hip, err := PairAngle(lh, rh, tilt)
	if err != nil {
		return posture.Measurement{}, fmt.Errorf("hip: %w", err)
	}

	m := posture.Measurement{
		ShoulderAngle: shoulder,
		HipAngle:      hip,
		TiltAngle:     OverallTilt(tilt, shoulder, hip),
	}
	if math.IsNaN(m.TiltAngle) || math.IsInf(m.TiltAngle, 0) {
		return posture.Measurement{}, ErrNonFinite
	}
	return m, nil
}

// Alternate is the secondary metric set: raw head and shoulder tilt and the lateral hip shift.
type Alternate struct {
	HeadTilt     float64 `json:"head_tilt"`
	ShoulderTilt float64 `json:"shoulder_tilt"`
	HipShift     float64 `json:"hip_shift"`
}

// Limits for Alternate.Poor.
const (
	AltHeadTiltLimit     = 10.0
	AltShoulderTiltLimit = 10.0
	AltHipShiftLimit     = 15.0
)

// Poor reports whether any alternate metric is outside its limit.
func (a Alternate) Poor() bool {
	return math.Abs(a.HeadTilt) > AltHeadTiltLimit ||
		math.Abs(a.ShoulderTilt) > AltShoulderTiltLimit ||
		math.Abs(a.HipShift) > AltHipShiftLimit
}

// AnalyzeAlternate computes the alternate metrics for a pixel-space landmark set from a frame of
// the given width. The hip shift uses the reference pair.
func AnalyzeAlternate(points []Point, width float64) (Alternate, error) {
	get := func(l, r int) (Point, Point, error) {
		return Pair{Left: l, Right: r}.Endpoints(points)
	}

	le, re, err := get(detector.LeftEar, detector.RightEar)
	if err != nil {
		return Alternate{}, err
	}
	ls, rs, err := get(detector.LeftShoulder, detector.RightShoulder)
	if err != nil {
		return Alternate{}, err
	}
	lp, rp, err := get(detector.ReferenceLeft, detector.ReferenceRight)
	if err != nil {
		return Alternate{}, err
	}

	var alt Alternate
	if alt.HeadTilt, err = HorizontalAngle(le, re); err != nil {
		return Alternate{}, fmt.Errorf("head: %w", err)
	}
	if alt.ShoulderTilt, err = HorizontalAngle(ls, rs); err != nil {
		return Alternate{}, fmt.Errorf("shoulder: %w", err)
	}
	if alt.HipShift, err = LateralShift(lp, rp, width); err != nil {
		return Alternate{}, fmt.Errorf("hip shift: %w", err)
	}
	return alt, nil
}
