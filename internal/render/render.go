// Package render draws face geometry onto images: landmark points with
// optional index labels, bounding box outlines, whole faces and whole
// frames. All drawing happens in original pixel coordinates.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/facetrail/facetrail/internal/faceseq"
)

// Style is the stroke configuration for a drawing call. Zero values pick the
// defaults: green hairline marks for landmarks, red hairline outlines for
// boxes.
type Style struct {
	Color     color.RGBA
	Thickness int
}

var (
	DefaultLandmarkStyle = Style{Color: color.RGBA{G: 255, A: 255}, Thickness: 1}
	DefaultBoxStyle      = Style{Color: color.RGBA{R: 255, A: 255}, Thickness: 1}
)

func (s Style) orDefault(d Style) Style {
	if s.Color.A == 0 {
		s.Color = d.Color
	}
	if s.Thickness <= 0 {
		s.Thickness = d.Thickness
	}
	return s
}

// landmarkChains describes the connectivity of the 68 point annotation:
// jaw line, brows, nose, eyes and lips. Other landmark counts are drawn as
// bare points.
var landmarkChains = []struct {
	from, to int
	closed   bool
}{
	{0, 16, false},  // jaw
	{17, 21, false}, // right brow
	{22, 26, false}, // left brow
	{27, 30, false}, // nose bridge
	{31, 35, false}, // nostrils
	{36, 41, true},  // right eye
	{42, 47, true},  // left eye
	{48, 59, true},  // outer lips
	{60, 67, true},  // inner lips
}

// Canvas returns a mutable RGBA copy of img to draw over.
func Canvas(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)
	return dst
}

// ParseColor parses a #rrggbb hex color into an opaque RGBA value.
func ParseColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}

// Landmarks draws the landmark points of one face. The 68 point layout also
// gets its connecting lines; labels adds the zero-based point index next to
// each mark.
func Landmarks(dst *image.RGBA, f faceseq.Face, style Style, labels bool) {
	style = style.orDefault(DefaultLandmarkStyle)

	if len(f.Landmarks) == 68 {
		for _, chain := range landmarkChains {
			for i := chain.from; i < chain.to; i++ {
				drawLine(dst, f.Landmarks[i], f.Landmarks[i+1], style)
			}
			if chain.closed {
				drawLine(dst, f.Landmarks[chain.to], f.Landmarks[chain.from], style)
			}
		}
	}

	for i, p := range f.Landmarks {
		drawMark(dst, p, style)
		if labels {
			drawLabel(dst, p, strconv.Itoa(i), style.Color)
		}
	}
}

// BBox draws a rectangle outline.
func BBox(dst *image.RGBA, box image.Rectangle, style Style) {
	style = style.orDefault(DefaultBoxStyle)
	x1, y1 := box.Min.X, box.Min.Y
	x2, y2 := box.Max.X-1, box.Max.Y-1
	for w := range style.Thickness {
		drawHLine(dst, x1, x2, y1+w, style.Color)
		drawHLine(dst, x1, x2, y2-w, style.Color)
		drawVLine(dst, y1, y2, x1+w, style.Color)
		drawVLine(dst, y1, y2, x2-w, style.Color)
	}
}

// Face draws the bounding box and landmarks of one face.
func Face(dst *image.RGBA, f faceseq.Face, landmarks, box Style, labels bool) {
	BBox(dst, f.BBox, box)
	Landmarks(dst, f, landmarks, labels)
}

// Frame draws every face of a frame.
func Frame(dst *image.RGBA, fr *faceseq.Frame, landmarks, box Style, labels bool) {
	if fr == nil {
		return
	}
	for _, f := range fr.Faces {
		Face(dst, f, landmarks, box, labels)
	}
}

// drawMark fills a square around p sized by the stroke thickness.
func drawMark(dst *image.RGBA, p image.Point, style Style) {
	r := style.Thickness
	for y := p.Y - r; y <= p.Y+r; y++ {
		drawHLine(dst, p.X-r, p.X+r, y, style.Color)
	}
}

// drawHLine draws a horizontal line clipped to the image bounds.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= bounds.Min.X && x < bounds.Max.X {
			dst.Set(x, y, c)
		}
	}
}

// drawVLine draws a vertical line clipped to the image bounds.
func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= bounds.Min.Y && y < bounds.Max.Y {
			dst.Set(x, y, c)
		}
	}
}

// drawLine draws a segment between two points with the stroke thickness.
func drawLine(dst *image.RGBA, a, b image.Point, style Style) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy

	x, y := a.X, a.Y
	for {
		drawMark(dst, image.Pt(x, y), Style{Color: style.Color, Thickness: style.Thickness - 1})
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// drawLabel renders text just above and to the right of p.
func drawLabel(dst *image.RGBA, p image.Point, text string, c color.RGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(p.X+3, p.Y-3),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
