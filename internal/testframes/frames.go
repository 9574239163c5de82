// Package testframes builds procedural frames for tests so no binary fixtures need to be checked
// in.
package testframes

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// Blank returns a black BGR frame. The caller must Close it.
func Blank(width, height int) gocv.Mat {
	return gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
}

// Lines returns a black frame crossed by count parallel white lines at angleDeg from horizontal
// (positive angles run downward to the right in image coordinates). The caller must Close it.
func Lines(width, height int, angleDeg float64, count int) gocv.Mat {
	mat := Blank(width, height)
	rad := angleDeg * math.Pi / 180
	dx := math.Cos(rad)
	dy := math.Sin(rad)
	half := float64(width) * 0.45
	cx := float64(width) / 2
	for i := 0; i < count; i++ {
		cy := float64(height) * float64(i+1) / float64(count+1)
		p1 := image.Pt(int(math.Round(cx-dx*half)), int(math.Round(cy-dy*half)))
		p2 := image.Pt(int(math.Round(cx+dx*half)), int(math.Round(cy+dy*half)))
		gocv.Line(&mat, p1, p2, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2)
	}
	return mat
}

// Sequence returns n blank frames for camera playback. The caller must Close each of them.
func Sequence(width, height, n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := Blank(width, height)
		frames[i] = &m
	}
	return frames
}

// CloseAll closes every frame in frames.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}
