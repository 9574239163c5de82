// Package overlay draws the posture skeleton, angle labels and correction guides onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/posturecam/internal/geometry"
	"github.com/ayusman/posturecam/internal/posture"
)

// Drawing parameters.
const (
	JointRadius   = 10
	LineThickness = 2
	DotLength     = 2
	DotGap        = 10
)

var (
	colorOK    = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorAlert = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorGuide = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	colorText  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// PairResult is what Draw decided for one tracked pair.
type PairResult struct {
	Axis    posture.Axis
	Angle   float64
	Exceeds bool
}

// Renderer draws onto frames in place. The zero value is ready to use.
type Renderer struct {
	// Pairs overrides geometry.Pairs when set.
	Pairs []geometry.Pair
}

func (r *Renderer) pairs() []geometry.Pair {
	if len(r.Pairs) > 0 {
		return r.Pairs
	}
	return geometry.Pairs
}

// Draw annotates img for every pair whose landmarks are present and well-formed. Pairs that
// cannot be measured are skipped; the frame is never left half-drawn for a pair.
func (r *Renderer) Draw(img *gocv.Mat, points []geometry.Point, tilt geometry.Tilt, t posture.Thresholds) []PairResult {
	if img == nil || img.Empty() {
		return nil
	}

	if tilt.Known {
		gocv.PutText(img, fmt.Sprintf("Frame Tilt: %.2f", tilt.Degrees), image.Pt(10, 30),
			gocv.FontHersheySimplex, 1, colorText, 2)
	}

	results := make([]PairResult, 0, len(r.pairs()))
	for _, pair := range r.pairs() {
		p1, p2, err := pair.Endpoints(points)
		if err != nil {
			continue
		}
		angle, err := geometry.PairAngle(p1, p2, tilt)
		if err != nil {
			continue
		}
		exceeds := posture.Exceeds(angle, t.For(pair.Axis))
		drawPair(img, p1, p2, angle, exceeds, tilt)
		results = append(results, PairResult{Axis: pair.Axis, Angle: angle, Exceeds: exceeds})
	}
	return results
}

func drawPair(img *gocv.Mat, p1, p2 geometry.Point, angle float64, exceeds bool, tilt geometry.Tilt) {
	a, b := toImage(p1), toImage(p2)

	mid := image.Pt((a.X+b.X)/2-40, (a.Y+b.Y)/2-40)
	gocv.PutText(img, fmt.Sprintf("%.1f", angle), mid, gocv.FontHersheySimplex, 0.8, colorText, 2)

	clr := colorOK
	if exceeds {
		clr = colorAlert
	}
	gocv.Circle(img, a, JointRadius, clr, -1)
	gocv.Circle(img, b, JointRadius, clr, -1)
	gocv.Line(img, a, b, clr, LineThickness)

	if !exceeds {
		return
	}
	target := toImage(GuideTarget(p1, p2, tilt))
	gocv.Circle(img, target, JointRadius, colorGuide, -1)
	DottedLine(img, a, target, colorGuide, LineThickness)
}

// GuideTarget is where p2 would sit if the pair were level with the frame: p1-p2 distance kept,
// pointed from p1 along the frame tilt (0 when unknown), reversed when p2 lies left of p1.
func GuideTarget(p1, p2 geometry.Point, tilt geometry.Tilt) geometry.Point {
	target := 0.0
	if tilt.Known {
		target = tilt.Degrees
	}
	if p2.X < p1.X {
		target += 180
	}
	return geometry.Rotate2D(p1, p2, p1, target)
}

// DottedLine draws short dots from start to end separated by DotGap.
func DottedLine(img *gocv.Mat, start, end image.Point, clr color.RGBA, thickness int) {
	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length

	for pos := 0.0; pos < length; pos += DotLength + DotGap {
		stop := math.Min(pos+DotLength, length)
		from := image.Pt(start.X+int(pos*ux), start.Y+int(pos*uy))
		to := image.Pt(start.X+int(stop*ux), start.Y+int(stop*uy))
		gocv.Line(img, from, to, clr, thickness)
	}
}

func toImage(p geometry.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
