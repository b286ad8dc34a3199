package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/facetrail/facetrail/internal/faceseq"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
)

func blankCanvas(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestCanvasCopies(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src.SetRGBA(5, 5, blue)

	dst := Canvas(src)
	dst.SetRGBA(5, 5, red)

	if src.RGBAAt(5, 5) != blue {
		t.Errorf("drawing on the canvas changed the source pixel: %v", src.RGBAAt(5, 5))
	}
	if dst.RGBAAt(5, 5) != red {
		t.Errorf("canvas pixel = %v, want %v", dst.RGBAAt(5, 5), red)
	}
}

func TestBBoxDrawsOutline(t *testing.T) {
	dst := blankCanvas(20, 20)
	BBox(dst, image.Rect(5, 5, 15, 15), Style{})

	corners := []image.Point{{5, 5}, {14, 5}, {5, 14}, {14, 14}}
	for _, p := range corners {
		if dst.RGBAAt(p.X, p.Y) != red {
			t.Errorf("corner %v = %v, want default red", p, dst.RGBAAt(p.X, p.Y))
		}
	}
	if got := dst.RGBAAt(10, 10); got.A != 0 {
		t.Errorf("box interior painted: %v", got)
	}
}

func TestBBoxCustomStyle(t *testing.T) {
	dst := blankCanvas(30, 30)
	BBox(dst, image.Rect(5, 5, 25, 25), Style{Color: blue, Thickness: 3})

	// Three rows of the top edge are painted.
	for _, y := range []int{5, 6, 7} {
		if dst.RGBAAt(10, y) != blue {
			t.Errorf("pixel (10,%d) = %v, want blue", y, dst.RGBAAt(10, y))
		}
	}
	if got := dst.RGBAAt(10, 8); got.A != 0 {
		t.Errorf("pixel below the stroke painted: %v", got)
	}
}

func TestBBoxClipsToImage(t *testing.T) {
	dst := blankCanvas(10, 10)
	// Box partly outside the canvas must not panic and still paint the
	// visible part.
	BBox(dst, image.Rect(-5, -5, 8, 8), Style{})
	if dst.RGBAAt(3, 7) != red {
		t.Errorf("visible edge pixel = %v, want red", dst.RGBAAt(3, 7))
	}
}

func TestLandmarksDrawsPoints(t *testing.T) {
	dst := blankCanvas(100, 100)
	f := faceseq.Face{
		Landmarks: []image.Point{{20, 20}, {50, 50}, {80, 20}},
	}
	Landmarks(dst, f, Style{}, false)

	for _, p := range f.Landmarks {
		if dst.RGBAAt(p.X, p.Y) != green {
			t.Errorf("landmark %v = %v, want default green", p, dst.RGBAAt(p.X, p.Y))
		}
	}
}

func TestLandmarksLabels(t *testing.T) {
	dst := blankCanvas(60, 60)
	f := faceseq.Face{Landmarks: []image.Point{{20, 30}}}
	Landmarks(dst, f, Style{}, true)

	// The index glyph is drawn up and to the right of the point.
	found := false
	for y := 10; y < 30 && !found; y++ {
		for x := 22; x < 35; x++ {
			if dst.RGBAAt(x, y) == green {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no label pixels drawn next to the landmark")
	}
}

func TestLandmarks68DrawsChains(t *testing.T) {
	points := make([]image.Point, 68)
	for i := range points {
		points[i] = image.Pt(10+(i%10)*25, 10+(i/10)*25)
	}
	dst := blankCanvas(300, 300)
	Landmarks(dst, faceseq.Face{Landmarks: points}, Style{}, false)

	// Points 0 and 1 sit on the same row 25px apart; the jaw chain passes
	// through the midpoint between them.
	if dst.RGBAAt(22, 10) != green {
		t.Errorf("chain midpoint = %v, want green", dst.RGBAAt(22, 10))
	}
}

func TestLandmarksFivePointNoChains(t *testing.T) {
	points := []image.Point{{10, 10}, {40, 10}, {70, 10}, {25, 40}, {55, 40}}
	dst := blankCanvas(100, 100)
	Landmarks(dst, faceseq.Face{Landmarks: points}, Style{}, false)

	// No connecting line between the first two points.
	if got := dst.RGBAAt(25, 10); got.A != 0 {
		t.Errorf("pixel between five-point landmarks painted: %v", got)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		input   string
		want    color.RGBA
		wantErr bool
	}{
		{"#00ff00", color.RGBA{G: 255, A: 255}, false},
		{"#ff0000", color.RGBA{R: 255, A: 255}, false},
		{"#336699", color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 255}, false},
		{"#FFFFFF", color.RGBA{R: 255, G: 255, B: 255, A: 255}, false},
		{"00ff00", color.RGBA{}, true},
		{"#0f0", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseColor(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseColor(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFrameDrawsAllFaces(t *testing.T) {
	dst := blankCanvas(120, 60)
	fr := &faceseq.Frame{
		Faces: []faceseq.Face{
			{BBox: image.Rect(5, 5, 45, 45), Landmarks: []image.Point{{25, 25}}},
			{BBox: image.Rect(65, 5, 105, 45), Landmarks: []image.Point{{85, 25}}},
		},
	}
	Frame(dst, fr, Style{}, Style{}, false)

	if dst.RGBAAt(5, 20) != red || dst.RGBAAt(65, 20) != red {
		t.Error("bounding boxes of both faces not drawn")
	}
	if dst.RGBAAt(25, 25) != green || dst.RGBAAt(85, 25) != green {
		t.Error("landmarks of both faces not drawn")
	}

	Frame(dst, nil, Style{}, Style{}, false) // must not panic
}
