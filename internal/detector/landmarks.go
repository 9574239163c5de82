// Package detector provides the pose-landmark detection boundary used by the capture pipeline.
package detector

import "gonum.org/v1/gonum/spatial/r2"

// Pose landmark indices. Shoulder and hip indices follow the convention used by the posture
// measurements; ReferenceLeft/ReferenceRight form the third tracked pair.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEar        = 7
	RightEar       = 8
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftHip        = 13
	RightHip       = 14
	ReferenceLeft  = 23
	ReferenceRight = 24
	NumLandmarks   = 33
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseLandmarks is one detected body. Points are normalized to [0,1] image space as returned by
// the detector; use Scale to convert them to pixels.
type PoseLandmarks struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
}

// Scale returns a copy with x and z multiplied by width and y by height.
func (p *PoseLandmarks) Scale(width, height int) *PoseLandmarks {
	if p == nil {
		return nil
	}
	w, h := float64(width), float64(height)
	scaled := &PoseLandmarks{
		Points: make([]Point3D, len(p.Points)),
		Score:  p.Score,
	}
	for i, pt := range p.Points {
		scaled.Points[i] = Point3D{X: pt.X * w, Y: pt.Y * h, Z: pt.Z * w}
	}
	return scaled
}

// Points2D drops the depth coordinate.
func (p *PoseLandmarks) Points2D() []r2.Vec {
	if p == nil {
		return nil
	}
	out := make([]r2.Vec, len(p.Points))
	for i, pt := range p.Points {
		out[i] = r2.Vec{X: pt.X, Y: pt.Y}
	}
	return out
}
