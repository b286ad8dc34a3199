package faceseq

import (
	"image"
	"math"
)

// IoU calculates the intersection-over-union overlap between two bounding
// boxes. Disjoint or degenerate boxes score 0.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()) + float64(b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// unscaleRect maps a rectangle from detector input space back to original
// pixel space by dividing out the frame scale.
func unscaleRect(r image.Rectangle, scale float64) image.Rectangle {
	if scale == 1.0 {
		return r
	}
	return image.Rect(
		unscaleCoord(r.Min.X, scale),
		unscaleCoord(r.Min.Y, scale),
		unscaleCoord(r.Max.X, scale),
		unscaleCoord(r.Max.Y, scale),
	)
}

// unscalePoint maps a point from detector input space back to original pixel
// space.
func unscalePoint(p image.Point, scale float64) image.Point {
	if scale == 1.0 {
		return p
	}
	return image.Pt(unscaleCoord(p.X, scale), unscaleCoord(p.Y, scale))
}

func unscaleCoord(v int, scale float64) int {
	return int(math.Round(float64(v) / scale))
}
