// Package mock provides a scripted detection backend for testing.
package mock

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/facetrail/facetrail/internal/detect"
)

// MockDetector is a scripted implementation of detect.Detector. Each Detect
// call serves the next scripted face set; landmark points and descriptors
// are derived deterministically from the region geometry so results are
// repeatable.
type MockDetector struct {
	mu     sync.Mutex
	frames [][]image.Rectangle
	points int
	calls  int

	// Error injection
	DetectError   error
	LocateError   error
	DescribeError error

	// Closed is set once Close has been called.
	Closed bool
}

// NewMockDetector creates a detector producing the given landmark count per
// face. Each entry of frames is served by one Detect call, in order; after
// the script runs out the last entry repeats.
func NewMockDetector(points int, frames ...[]image.Rectangle) *MockDetector {
	return &MockDetector{points: points, frames: frames}
}

// Detect serves the next scripted face set.
func (m *MockDetector) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	if m.DetectError != nil {
		return nil, m.DetectError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return nil, nil
	}
	i := m.calls
	if i >= len(m.frames) {
		i = len(m.frames) - 1
	}
	m.calls++
	boxes := make([]image.Rectangle, len(m.frames[i]))
	copy(boxes, m.frames[i])
	return boxes, nil
}

// Locate spreads the landmark points evenly along the region diagonal.
func (m *MockDetector) Locate(ctx context.Context, img image.Image, region image.Rectangle) ([]image.Point, error) {
	if m.LocateError != nil {
		return nil, m.LocateError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Landmarks(region, m.points), nil
}

// LandmarkCount reports the configured points per face.
func (m *MockDetector) LandmarkCount() int { return m.points }

// Describe returns a unit-length descriptor derived from the region center.
func (m *MockDetector) Describe(ctx context.Context, img image.Image, region image.Rectangle) ([]float32, error) {
	if m.DescribeError != nil {
		return nil, m.DescribeError
	}
	return Descriptor(region, 128), nil
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Calls returns how many Detect calls have been served.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Landmarks produces n points spread evenly along the diagonal of region.
// The layout scales with the region, mirroring how real landmarks follow a
// scaled face.
func Landmarks(region image.Rectangle, n int) []image.Point {
	points := make([]image.Point, n)
	for i := 0; i < n; i++ {
		points[i] = image.Pt(
			region.Min.X+(i+1)*region.Dx()/(n+1),
			region.Min.Y+(i+1)*region.Dy()/(n+1),
		)
	}
	return points
}

// Descriptor produces a deterministic dim-length vector from the region
// center, normalized so cosine distances are well defined.
func Descriptor(region image.Rectangle, dim int) []float32 {
	cx := float32(region.Min.X+region.Max.X) / 2
	cy := float32(region.Min.Y+region.Max.Y) / 2
	vec := make([]float32, dim)
	var norm float32
	for i := range vec {
		v := cx + cy*float32(i%7+1)
		vec[i] = v
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	inv := 1 / float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

var (
	_ detect.Detector  = (*MockDetector)(nil)
	_ detect.Describer = (*MockDetector)(nil)
)
