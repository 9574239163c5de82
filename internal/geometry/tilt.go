package geometry

import (
	"math"
	"sort"

	"gocv.io/x/gocv"
)

// Hough/Canny parameters for frame tilt estimation.
const (
	CannyLow       = 50
	CannyHigh      = 150
	HoughRho       = 1
	HoughThreshold = 200
)

// Tilt is a frame tilt estimate. Known is false when no dominant lines were found.
type Tilt struct {
	Degrees float64
	Known   bool
}

// FrameTilt estimates camera skew from the dominant straight lines in img and returns their
// median angle relative to horizontal.
func FrameTilt(img gocv.Mat) Tilt {
	if img.Empty() {
		return Tilt{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() > 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, CannyLow, CannyHigh)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, HoughRho, float32(math.Pi/180), HoughThreshold)

	if lines.Empty() || lines.Rows() == 0 {
		return Tilt{}
	}

	angles := make([]float64, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		theta := float64(lines.GetVecfAt(i, 0)[1])
		angles = append(angles, (theta-math.Pi/2)*180/math.Pi)
	}
	return Tilt{Degrees: median(angles), Known: true}
}

// median averages the two middle values for even-length input. values is sorted in place.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
