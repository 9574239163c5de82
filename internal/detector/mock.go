package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	pose  *PoseLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose that will be returned by Detect. Nil means no body detected.
func (m *MockDetector) SetPose(pose *PoseLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = pose
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured pose or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*PoseLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.pose == nil {
		return nil, nil
	}
	cp := &PoseLandmarks{Points: append([]Point3D(nil), m.pose.Points...), Score: m.pose.Score}
	return cp, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

func basePose() *PoseLandmarks {
	p := &PoseLandmarks{Points: make([]Point3D, NumLandmarks), Score: 0.9}
	for i := range p.Points {
		p.Points[i] = Point3D{X: 0.5, Y: 0.5}
	}
	p.Points[Nose] = Point3D{X: 0.5, Y: 0.15}
	p.Points[LeftEar] = Point3D{X: 0.46, Y: 0.16}
	p.Points[RightEar] = Point3D{X: 0.54, Y: 0.16}
	p.Points[ReferenceLeft] = Point3D{X: 0.44, Y: 0.75}
	p.Points[ReferenceRight] = Point3D{X: 0.56, Y: 0.75}
	return p
}

// LevelPose returns a preset with shoulders and hips exactly level.
func LevelPose() *PoseLandmarks {
	p := basePose()
	p.Points[LeftShoulder] = Point3D{X: 0.40, Y: 0.30}
	p.Points[RightShoulder] = Point3D{X: 0.60, Y: 0.30}
	p.Points[LeftHip] = Point3D{X: 0.42, Y: 0.55}
	p.Points[RightHip] = Point3D{X: 0.58, Y: 0.55}
	return p
}

// RaisedShoulderPose returns a preset whose right shoulder sits visibly higher than the left
// while the hips stay level.
func RaisedShoulderPose() *PoseLandmarks {
	p := LevelPose()
	p.Points[RightShoulder] = Point3D{X: 0.60, Y: 0.22}
	return p
}
