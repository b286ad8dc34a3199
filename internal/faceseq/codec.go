package faceseq

import (
	"encoding/gob"
	"fmt"
	"image"
	"io"
	"os"
	"time"
)

// codecVersion tags the archive layout. Decoders reject every other version.
const codecVersion = 1

// The archive types mirror the logical file schema: a version tag, the
// sequence configuration and the frame list with per-face geometry in
// x/y/width/height form. They are kept separate from the in-memory types so
// the wire layout can stay stable while the API evolves.

type archivePoint struct {
	X, Y int
}

type archiveFace struct {
	ID        int
	X, Y      int
	W, H      int
	Landmarks []archivePoint
}

type archiveFrame struct {
	ID     int
	Width  int
	Height int
	Faces  []archiveFace
}

type archiveData struct {
	Version    int
	UID        string
	SavedAt    time.Time
	ModelPath  string
	FrameScale float64
	TrackFaces bool
	MinIoU     float64
	Frames     []archiveFrame
}

// Encode writes the sequence in its versioned binary layout. An empty
// sequence encodes to a valid empty archive.
func (s *Sequence) Encode(w io.Writer) error {
	data := archiveData{
		Version:    codecVersion,
		UID:        s.uid,
		SavedAt:    time.Now().UTC(),
		ModelPath:  s.ModelPath(),
		FrameScale: s.frameScale,
		TrackFaces: s.trackFaces,
		MinIoU:     s.track.minIoU,
		Frames:     make([]archiveFrame, 0, len(s.frames)),
	}
	for _, fr := range s.frames {
		data.Frames = append(data.Frames, frameToArchive(fr))
	}
	if err := gob.NewEncoder(w).Encode(&data); err != nil {
		return fmt.Errorf("failed to encode sequence: %w", err)
	}
	return nil
}

// Decode replaces the sequence content and configuration with the archive
// read from r. Tracking history is dropped and the ID counter continues past
// the highest restored face ID, so restored identities are never reused. On
// error the sequence keeps its previous content.
func (s *Sequence) Decode(r io.Reader) error {
	var data archiveData
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if data.Version != codecVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptData, data.Version)
	}
	if data.FrameScale <= 0 {
		return fmt.Errorf("%w: frame scale %v", ErrCorruptData, data.FrameScale)
	}
	if data.MinIoU <= 0 || data.MinIoU >= 1 {
		return fmt.Errorf("%w: min IoU %v", ErrCorruptData, data.MinIoU)
	}

	frames := make([]*Frame, 0, len(data.Frames))
	maxID := -1
	for i := range data.Frames {
		fr := frameFromArchive(&data.Frames[i])
		for _, f := range fr.Faces {
			if f.ID > maxID {
				maxID = f.ID
			}
		}
		frames = append(frames, fr)
	}

	if data.UID != "" {
		s.uid = data.UID
	}
	s.frameScale = data.FrameScale
	s.trackFaces = data.TrackFaces
	s.track.minIoU = data.MinIoU
	s.frames = frames
	s.track.resume(maxID + 1)
	return nil
}

// Save writes the sequence to path, replacing any existing file.
func (s *Sequence) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// Load replaces the sequence content with the archive at path. A missing or
// unreadable file is reported as ErrCorruptData.
func (s *Sequence) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	defer f.Close()
	return s.Decode(f)
}

func frameToArchive(fr *Frame) archiveFrame {
	af := archiveFrame{
		ID:     fr.ID,
		Width:  fr.Width,
		Height: fr.Height,
		Faces:  make([]archiveFace, 0, len(fr.Faces)),
	}
	for _, f := range fr.Faces {
		a := archiveFace{
			ID:        f.ID,
			X:         f.BBox.Min.X,
			Y:         f.BBox.Min.Y,
			W:         f.BBox.Dx(),
			H:         f.BBox.Dy(),
			Landmarks: make([]archivePoint, 0, len(f.Landmarks)),
		}
		for _, p := range f.Landmarks {
			a.Landmarks = append(a.Landmarks, archivePoint{X: p.X, Y: p.Y})
		}
		af.Faces = append(af.Faces, a)
	}
	return af
}

func frameFromArchive(af *archiveFrame) *Frame {
	fr := &Frame{
		ID:     af.ID,
		Width:  af.Width,
		Height: af.Height,
		Faces:  make([]Face, 0, len(af.Faces)),
	}
	for _, a := range af.Faces {
		f := Face{
			ID:        a.ID,
			BBox:      image.Rect(a.X, a.Y, a.X+a.W, a.Y+a.H),
			Landmarks: make([]image.Point, 0, len(a.Landmarks)),
		}
		for _, p := range a.Landmarks {
			f.Landmarks = append(f.Landmarks, image.Pt(p.X, p.Y))
		}
		fr.Faces = append(fr.Faces, f)
	}
	return fr
}
