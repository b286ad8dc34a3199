package detect

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"
)

// goFaceLandmarkCount is the point count of the bundled
// shape_predictor_5_face_landmarks.dat model: two points per eye plus one
// under the nose.
const goFaceLandmarkCount = 5

// Recognizer is a dlib-backed Detector built on the go-face bindings. The
// model directory must contain shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat. Calls are serialized; share one
// instance freely between goroutines.
type Recognizer struct {
	modelDir string

	mu        sync.Mutex
	rec       *face.Recognizer
	lastImg   image.Image
	lastFaces []face.Face
}

// NewRecognizer loads the dlib models from dir.
func NewRecognizer(dir string) (*Recognizer, error) {
	rec, err := face.NewRecognizer(dir)
	if err != nil {
		return nil, fmt.Errorf("initializing recognizer from %s: %w", dir, err)
	}
	return &Recognizer{rec: rec, modelDir: dir}, nil
}

// ModelDir returns the directory the models were loaded from.
func (r *Recognizer) ModelDir() string { return r.modelDir }

// Detect returns the bounding boxes of all faces dlib finds in the image.
func (r *Recognizer) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	faces, err := r.recognize(ctx, img)
	if err != nil {
		return nil, err
	}
	boxes := make([]image.Rectangle, 0, len(faces))
	for _, f := range faces {
		boxes = append(boxes, f.Rectangle)
	}
	return boxes, nil
}

// Locate returns the landmark points of the face in the given region.
func (r *Recognizer) Locate(ctx context.Context, img image.Image, region image.Rectangle) ([]image.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.faceAt(ctx, img, region)
	if err != nil {
		return nil, err
	}
	points := make([]image.Point, len(f.Shapes))
	copy(points, f.Shapes)
	return points, nil
}

// LandmarkCount reports the points produced per face.
func (r *Recognizer) LandmarkCount() int { return goFaceLandmarkCount }

// Describe returns the 128-dimension dlib identity descriptor for the face
// in the region.
func (r *Recognizer) Describe(ctx context.Context, img image.Image, region image.Rectangle) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.faceAt(ctx, img, region)
	if err != nil {
		return nil, err
	}
	desc := make([]float32, len(f.Descriptor))
	copy(desc, f.Descriptor[:])
	return desc, nil
}

// Close frees the dlib resources. The recognizer cannot be used afterwards.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec != nil {
		r.rec.Close()
		r.rec = nil
	}
	r.lastImg = nil
	r.lastFaces = nil
	return nil
}

// recognize runs dlib on the image, reusing the previous result while the
// same image is being queried. Callers must hold mu.
func (r *Recognizer) recognize(ctx context.Context, img image.Image) ([]face.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.rec == nil {
		return nil, fmt.Errorf("recognizer is closed")
	}
	if img == r.lastImg && r.lastFaces != nil {
		return r.lastFaces, nil
	}
	data, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	faces, err := r.rec.Recognize(data)
	if err != nil {
		return nil, fmt.Errorf("recognizing faces: %w", err)
	}
	r.lastImg = img
	r.lastFaces = faces
	return faces, nil
}

// faceAt returns the recognized face whose box best overlaps the region.
// Callers must hold mu.
func (r *Recognizer) faceAt(ctx context.Context, img image.Image, region image.Rectangle) (*face.Face, error) {
	faces, err := r.recognize(ctx, img)
	if err != nil {
		return nil, err
	}
	best := -1
	bestArea := 0
	for i := range faces {
		if faces[i].Rectangle == region {
			return &faces[i], nil
		}
		inter := faces[i].Rectangle.Intersect(region)
		if a := inter.Dx() * inter.Dy(); a > bestArea {
			bestArea = a
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("no face found at %v", region)
	}
	return &faces[best], nil
}

var (
	_ Detector  = (*Recognizer)(nil)
	_ Describer = (*Recognizer)(nil)
)
