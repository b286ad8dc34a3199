package faceseq

import (
	"image"
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        image.Rectangle
		b        image.Rectangle
		expected float64
	}{
		{
			name:     "identical boxes",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(0, 0, 10, 10),
			expected: 1.0,
		},
		{
			name:     "no overlap",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(20, 20, 30, 30),
			expected: 0.0,
		},
		{
			name:     "touching edges",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(10, 0, 20, 10),
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(5, 5, 15, 15),
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			a:        image.Rect(0, 0, 20, 20),
			b:        image.Rect(5, 5, 15, 15),
			expected: 100.0 / 400.0, // intersection=100, union=400 (larger box)
		},
		{
			name:     "empty box",
			a:        image.Rect(5, 5, 5, 5),
			b:        image.Rect(0, 0, 10, 10),
			expected: 0.0,
		},
		{
			name:     "one pixel shift",
			a:        image.Rect(10, 10, 60, 60),
			b:        image.Rect(12, 11, 62, 62),
			expected: 2352.0 / 2698.0, // intersection=48*49, union=2500+2550-2352
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IoU(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("IoU(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
			// IoU is symmetric
			if rev := IoU(tt.b, tt.a); math.Abs(rev-result) > 0.0001 {
				t.Errorf("IoU(%v, %v) = %v, want %v", tt.b, tt.a, rev, result)
			}
		})
	}
}

func TestUnscaleRect(t *testing.T) {
	tests := []struct {
		name     string
		r        image.Rectangle
		scale    float64
		expected image.Rectangle
	}{
		{
			name:     "identity scale",
			r:        image.Rect(10, 20, 30, 40),
			scale:    1.0,
			expected: image.Rect(10, 20, 30, 40),
		},
		{
			name:     "half scale doubles coordinates",
			r:        image.Rect(5, 10, 15, 20),
			scale:    0.5,
			expected: image.Rect(10, 20, 30, 40),
		},
		{
			name:     "double scale halves coordinates",
			r:        image.Rect(10, 20, 30, 40),
			scale:    2.0,
			expected: image.Rect(5, 10, 15, 20),
		},
		{
			name:     "rounding",
			r:        image.Rect(3, 3, 7, 7),
			scale:    2.0,
			expected: image.Rect(2, 2, 4, 4), // 1.5 and 3.5 round away from zero
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := unscaleRect(tt.r, tt.scale)
			if result != tt.expected {
				t.Errorf("unscaleRect(%v, %v) = %v, want %v", tt.r, tt.scale, result, tt.expected)
			}
		})
	}
}

func TestUnscalePoint(t *testing.T) {
	p := unscalePoint(image.Pt(25, 50), 0.5)
	if p != image.Pt(50, 100) {
		t.Errorf("unscalePoint(25,50, 0.5) = %v, want (50,100)", p)
	}
}
