// Package faceseq maintains face landmark sequences: an append-only list of
// processed frames whose faces carry bounding boxes, ordered landmark points
// and identity IDs that stay stable across frames while tracking is enabled.
// All face geometry is reported in the original pixel space of the input
// frames regardless of the configured detector input scale.
package faceseq

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/facetrail/facetrail/internal/detect"
)

// Sequence accumulates processed frames for one video or image stream. A
// single instance is not safe for concurrent use; clones may run in parallel
// because the shared model handle is read-only after load.
type Sequence struct {
	uid    string
	handle *modelHandle

	frameScale float64
	trackFaces bool

	frames []*Frame
	track  *tracker
}

// New creates an empty sequence without a loaded model. AddFrame fails with
// ErrInvalidState until a backend is attached via SetModel or SetDetector.
func New(frameScale float64, trackFaces bool) (*Sequence, error) {
	if frameScale <= 0 {
		return nil, fmt.Errorf("%w: frame scale %v", ErrInvalidInput, frameScale)
	}
	return &Sequence{
		uid:        uuid.NewString(),
		frameScale: frameScale,
		trackFaces: trackFaces,
		track:      newTracker(DefaultMinIoU),
	}, nil
}

// Open creates a sequence with a dlib landmark model loaded from modelDir.
func Open(modelDir string, frameScale float64, trackFaces bool) (*Sequence, error) {
	s, err := New(frameScale, trackFaces)
	if err != nil {
		return nil, err
	}
	if err := s.SetModel(modelDir); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDetector creates a sequence around an externally managed detection
// backend. Closing the sequence does not close the backend.
func NewWithDetector(det detect.Detector, frameScale float64, trackFaces bool) (*Sequence, error) {
	if det == nil {
		return nil, fmt.Errorf("%w: nil detector", ErrInvalidInput)
	}
	s, err := New(frameScale, trackFaces)
	if err != nil {
		return nil, err
	}
	s.handle = newModelHandle(det, "", false)
	return s, nil
}

// UID returns the sequence identifier assigned at creation. Clones and
// loaded archives carry their own.
func (s *Sequence) UID() string { return s.uid }

// ModelPath returns the model directory of the loaded backend, or "" when
// none is loaded or the backend was injected.
func (s *Sequence) ModelPath() string {
	if s.handle == nil {
		return ""
	}
	return s.handle.path
}

// Detector exposes the active detection backend, or nil.
func (s *Sequence) Detector() detect.Detector {
	if s.handle == nil {
		return nil
	}
	return s.handle.det
}

// FrameScale returns the factor applied to frames before detection.
func (s *Sequence) FrameScale() float64 { return s.frameScale }

// TrackFaces reports whether identity tracking is enabled.
func (s *Sequence) TrackFaces() bool { return s.trackFaces }

// MinIoU returns the overlap threshold used by identity tracking.
func (s *Sequence) MinIoU() float64 { return s.track.minIoU }

// SetModel loads the dlib models from modelDir and swaps the backend in.
// Existing clones keep the previous handle.
func (s *Sequence) SetModel(modelDir string) error {
	rec, err := detect.NewRecognizer(modelDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrModelLoad, modelDir, err)
	}
	old := s.handle
	s.handle = newModelHandle(rec, modelDir, true)
	return old.release()
}

// SetDetector swaps in an externally managed backend. The sequence will not
// close it.
func (s *Sequence) SetDetector(det detect.Detector) error {
	if det == nil {
		return fmt.Errorf("%w: nil detector", ErrInvalidInput)
	}
	old := s.handle
	s.handle = newModelHandle(det, "", false)
	return old.release()
}

// SetFrameScale changes the detector input scale for subsequent frames.
// Face geometry stays in original pixel space either way.
func (s *Sequence) SetFrameScale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("%w: frame scale %v", ErrInvalidInput, scale)
	}
	s.frameScale = scale
	return nil
}

// SetTrackFaces switches identity tracking for subsequent frames. Turning
// tracking on starts matching from the next frame onward; the ID counter is
// left alone so identities are never reused.
func (s *Sequence) SetTrackFaces(track bool) {
	if track && !s.trackFaces {
		s.track.prev = nil
	}
	s.trackFaces = track
}

// SetMinIoU changes the tracking overlap threshold. Valid values are
// strictly between 0 and 1.
func (s *Sequence) SetMinIoU(v float64) error {
	if v <= 0 || v >= 1 {
		return fmt.Errorf("%w: min IoU %v", ErrInvalidInput, v)
	}
	s.track.minIoU = v
	return nil
}

// AddFrame processes one image: detects faces, locates their landmarks,
// assigns identity IDs and appends the frame. The frame ID is the number of
// frames already stored. The returned frame is owned by the sequence and
// must be treated as read-only.
func (s *Sequence) AddFrame(ctx context.Context, img image.Image) (*Frame, error) {
	return s.AddFrameWithID(ctx, img, -1)
}

// AddFrameWithID is AddFrame with a caller-chosen frame ID. A negative id
// selects the automatic one. On error the sequence keeps its previous
// content unchanged.
func (s *Sequence) AddFrameWithID(ctx context.Context, img image.Image, id int) (*Frame, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidInput)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image dimensions %dx%d", ErrInvalidInput, width, height)
	}
	if s.handle == nil {
		return nil, fmt.Errorf("%w: no detection backend loaded", ErrInvalidState)
	}
	det := s.handle.det

	input := img
	if s.frameScale != 1.0 {
		input = scaleImage(img, s.frameScale)
	}

	regions, err := det.Detect(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	faces := make([]Face, 0, len(regions))
	for _, region := range regions {
		points, err := det.Locate(ctx, input, region)
		if err != nil {
			return nil, fmt.Errorf("locating landmarks: %w", err)
		}
		f := Face{ID: -1, BBox: unscaleRect(region, s.frameScale)}
		f.Landmarks = make([]image.Point, len(points))
		for i, p := range points {
			f.Landmarks[i] = unscalePoint(p, s.frameScale)
		}
		faces = append(faces, f)
	}

	if s.trackFaces {
		s.track.assign(faces)
	} else {
		for i := range faces {
			faces[i].ID = i
		}
	}

	frameID := id
	if frameID < 0 {
		frameID = len(s.frames)
	}
	frame := &Frame{ID: frameID, Width: width, Height: height, Faces: faces}
	s.frames = append(s.frames, frame)
	return frame, nil
}

// Frames returns the stored frames in temporal order. The frames are owned
// by the sequence; treat them as read-only.
func (s *Sequence) Frames() []*Frame {
	out := make([]*Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Frame returns the stored frame with the given ID, or nil.
func (s *Sequence) Frame(id int) *Frame {
	for _, f := range s.frames {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Size returns the number of stored frames.
func (s *Sequence) Size() int { return len(s.frames) }

// Clear removes all frames and resets frame and face ID allocation. The
// loaded model and configuration stay in place.
func (s *Sequence) Clear() {
	s.frames = nil
	s.track.reset()
}

// Clone returns an independent sequence sharing this one's loaded model.
// Configuration is copied; frame history and ID counters start fresh.
func (s *Sequence) Clone() *Sequence {
	return &Sequence{
		uid:        uuid.NewString(),
		handle:     s.handle.acquire(),
		frameScale: s.frameScale,
		trackFaces: s.trackFaces,
		track:      newTracker(s.track.minIoU),
	}
}

// Close releases the model handle. A backend shared with clones stays open
// until the last of them closes.
func (s *Sequence) Close() error {
	h := s.handle
	s.handle = nil
	return h.release()
}

// scaleImage resamples img by factor using Catmull-Rom interpolation.
func scaleImage(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	w := int(math.Round(float64(bounds.Dx()) * factor))
	h := int(math.Round(float64(bounds.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
	return scaled
}
