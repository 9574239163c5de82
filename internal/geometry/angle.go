// Package geometry turns pose landmarks into posture angles.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrDegenerate is returned when two points are too close to define a direction.
	ErrDegenerate = errors.New("degenerate point pair")
	// ErrNonFinite is returned when a coordinate is NaN or infinite.
	ErrNonFinite = errors.New("non-finite coordinate")
	// ErrTooFewLandmarks is returned when a landmark set does not reach the required index.
	ErrTooFewLandmarks = errors.New("too few landmarks")
)

// Point is a 2-D pixel coordinate.
type Point = r2.Vec

const minSegment = 1e-9

func finite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// HorizontalAngle returns the direction from p1 to p2 in degrees within (-180, 180].
func HorizontalAngle(p1, p2 Point) (float64, error) {
	if !finite(p1) || !finite(p2) {
		return 0, ErrNonFinite
	}
	d := r2.Sub(p2, p1)
	if r2.Norm(d) < minSegment {
		return 0, ErrDegenerate
	}
	a := math.Atan2(d.Y, d.X) * 180 / math.Pi
	if a <= -180 {
		a += 360
	}
	return a, nil
}

// Normalize removes the frame tilt from raw and folds the result into [0, 90], the deviation
// from level regardless of which side is up.
func Normalize(raw float64, tilt Tilt) float64 {
	a := raw
	if tilt.Known {
		a -= tilt.Degrees
	}
	a = math.Mod(math.Abs(a), 180)
	if a > 90 {
		a = 180 - a
	}
	return a
}

// PairAngle is HorizontalAngle followed by Normalize.
func PairAngle(p1, p2 Point, tilt Tilt) (float64, error) {
	raw, err := HorizontalAngle(p1, p2)
	if err != nil {
		return 0, err
	}
	return Normalize(raw, tilt), nil
}

// OverallTilt returns the frame tilt when known, otherwise the mean of the joint angles.
func OverallTilt(tilt Tilt, shoulder, hip float64) float64 {
	if tilt.Known {
		return tilt.Degrees
	}
	return stat.Mean([]float64{shoulder, hip}, nil)
}

// Rotate2D keeps the p1-p2 distance and re-points it from target at angleDeg.
func Rotate2D(p1, p2, target Point, angleDeg float64) Point {
	dist := r2.Norm(r2.Sub(p1, p2))
	rad := angleDeg * math.Pi / 180
	return r2.Add(target, r2.Scale(dist, Point{X: math.Cos(rad), Y: math.Sin(rad)}))
}

// LateralShift returns how far the midpoint of p1 and p2 sits from the horizontal center of a
// frame of the given width, as a percentage of the width. Positive means right of center.
func LateralShift(p1, p2 Point, width float64) (float64, error) {
	if width <= 0 {
		return 0, ErrDegenerate
	}
	if !finite(p1) || !finite(p2) {
		return 0, ErrNonFinite
	}
	center := r2.Scale(0.5, r2.Add(p1, p2))
	return (center.X/width - 0.5) * 100, nil
}
