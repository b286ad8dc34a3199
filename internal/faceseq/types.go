package faceseq

import "image"

// Face is one detected face in a frame. ID is stable across frames only
// while tracking is enabled and the identity persists; otherwise it is
// frame-local. BBox and Landmarks are always in original, unscaled pixel
// coordinates. Landmark order is fixed by the loaded model, so index i names
// the same anatomical point on every face.
type Face struct {
	ID        int
	BBox      image.Rectangle
	Landmarks []image.Point
}

// Clone returns a deep copy of the face.
func (f Face) Clone() Face {
	c := f
	if f.Landmarks != nil {
		c.Landmarks = make([]image.Point, len(f.Landmarks))
		copy(c.Landmarks, f.Landmarks)
	}
	return c
}

// Frame is one processed image: the dimensions of the original input and the
// faces found in it, in detection order.
type Frame struct {
	ID     int
	Width  int
	Height int
	Faces  []Face
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	if f.Faces != nil {
		c.Faces = make([]Face, len(f.Faces))
		for i := range f.Faces {
			c.Faces[i] = f.Faces[i].Clone()
		}
	}
	return &c
}
