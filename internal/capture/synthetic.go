package capture

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/posturecam/internal/posture"
)

const (
	syntheticStep  = 0.05
	syntheticBands = 8
)

// Synthetic produces the deterministic frames and readings served while no device is usable.
// Output depends only on how many frames have been generated.
type Synthetic struct {
	width  int
	height int
	label  string
	count  uint64
}

// NewSynthetic creates a generator for frames of the given size.
func NewSynthetic(width, height int) *Synthetic {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &Synthetic{width: width, height: height, label: "camera"}
}

// SetLabel sets the source name written onto generated frames.
func (s *Synthetic) SetLabel(label string) {
	s.label = label
}

// Count returns how many frames have been generated.
func (s *Synthetic) Count() uint64 {
	return s.count
}

// SyntheticMeasurement returns the reading for frame number n.
func SyntheticMeasurement(n uint64) posture.Measurement {
	t := float64(n) * syntheticStep
	angle := math.Sin(t) * 10
	return posture.Measurement{
		ShoulderAngle: angle,
		HipAngle:      angle * 0.5,
		TiltAngle:     angle * 0.25,
	}
}

// Next advances the frame counter and returns a new frame with its reading. The caller must
// Close the Mat.
func (s *Synthetic) Next() (gocv.Mat, posture.Measurement) {
	s.count++
	t := float64(s.count) * syntheticStep

	var base [3]float64
	for i := range base {
		base[i] = math.Sin(t+float64(i)*2)*127 + 128
	}

	mat := gocv.NewMatWithSize(s.height, s.width, gocv.MatTypeCV8UC3)
	bandHeight := int(math.Ceil(float64(s.height) / syntheticBands))
	for k := 0; k < syntheticBands; k++ {
		f := 0.6 + 0.4*float64(k)/float64(syntheticBands-1)
		// base is indexed in BGR order; color.RGBA is RGB
		c := color.RGBA{
			R: uint8(base[2] * f),
			G: uint8(base[1] * f),
			B: uint8(base[0] * f),
			A: 255,
		}
		rect := image.Rect(0, k*bandHeight, s.width, min((k+1)*bandHeight, s.height))
		gocv.Rectangle(&mat, rect, c, -1)
	}

	text := fmt.Sprintf("Test Mode - No %s Available", s.label)
	gocv.PutText(&mat, text, image.Pt(50, s.height/2), gocv.FontHersheySimplex, 1,
		color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2)

	return mat, SyntheticMeasurement(s.count)
}
