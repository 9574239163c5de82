package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Scene change constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// DefaultRefreshFrames forces a refresh after this many static frames.
	DefaultRefreshFrames = 30
)

// SceneMonitor decides when per-scene estimates such as frame tilt need recomputing. It compares
// consecutive frames by blurred grayscale differencing and reports the scene as stale when the
// changed-pixel percentage exceeds the threshold, when the frame size changes, or when refresh
// frames have passed since the last refresh.
type SceneMonitor struct {
	threshold     float64
	refresh       int
	prevGray      gocv.Mat
	initialized   bool
	sinceRefresh  int
	changePercent float64
	mu            sync.Mutex
}

// NewSceneMonitor creates a SceneMonitor. threshold is the percentage of pixels that must
// change (1.0 means 1%); refresh <= 0 selects DefaultRefreshFrames.
func NewSceneMonitor(threshold float64, refresh int) *SceneMonitor {
	if refresh <= 0 {
		refresh = DefaultRefreshFrames
	}
	return &SceneMonitor{
		threshold: threshold,
		refresh:   refresh,
		prevGray:  gocv.NewMat(),
	}
}

// Observe records frame and reports whether cached scene estimates are stale.
func (m *SceneMonitor) Observe(frame *gocv.Mat) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		m.sinceRefresh = 0
		m.changePercent = 0
		return true
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	total := thresh.Rows() * thresh.Cols()
	m.changePercent = float64(nonZero) / float64(total) * 100.0

	blurred.CopyTo(&m.prevGray)

	m.sinceRefresh++
	if m.changePercent > m.threshold || m.sinceRefresh >= m.refresh {
		m.sinceRefresh = 0
		return true
	}
	return false
}

// ChangePercent returns the changed-pixel percentage measured by the last Observe.
func (m *SceneMonitor) ChangePercent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changePercent
}

// Reset drops the baseline so the next Observe reports stale.
func (m *SceneMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.sinceRefresh = 0
}

// Close releases resources used by the monitor.
func (m *SceneMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}
