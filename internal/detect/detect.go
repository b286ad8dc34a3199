// Package detect defines the face detection backend interface and its
// implementations: a dlib-backed recognizer and a client for an external
// detection service.
package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
)

// Detector locates faces and their landmark points in images. A backend
// produces a fixed landmark count per loaded model, so landmark index i
// refers to the same anatomical point on every face it reports.
type Detector interface {
	// Detect returns the bounding boxes of all faces found in the image.
	Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error)

	// Locate returns the ordered landmark points for the face inside the
	// given region. The result has exactly LandmarkCount points.
	Locate(ctx context.Context, img image.Image, region image.Rectangle) ([]image.Point, error)

	// LandmarkCount reports the number of points produced per face.
	LandmarkCount() int

	// Close releases backend resources.
	Close() error
}

// Describer is implemented by backends that can compute an identity
// descriptor for a face region. Descriptors from the same backend are
// comparable by cosine distance.
type Describer interface {
	Describe(ctx context.Context, img image.Image, region image.Rectangle) ([]float32, error)
}

// encodeJPEG renders an image to JPEG bytes for backends that consume
// encoded data.
func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), nil
}
