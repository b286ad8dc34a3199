package handlers

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/facetrail/facetrail/internal/archive"
	"github.com/facetrail/facetrail/internal/faceseq"
	"github.com/facetrail/facetrail/internal/report"
)

// Settings is the mutable processing configuration of the stored sequence.
type Settings struct {
	UID        string
	FrameScale float64
	TrackFaces bool
	MinIoU     float64
}

// Store serializes access to the one sequence shared by all request
// handlers. The sequence itself is single-writer, so every operation runs
// under the lock. Frames handed out are append-only and read-only, which
// makes returning them past the lock safe.
type Store struct {
	mu  sync.Mutex
	seq *faceseq.Sequence
}

// NewStore wraps a sequence for concurrent handler access.
func NewStore(seq *faceseq.Sequence) *Store {
	return &Store{seq: seq}
}

// AddFrame processes one image and appends the resulting frame. A negative
// id selects the automatic frame ID.
func (s *Store) AddFrame(ctx context.Context, img image.Image, id int) (*faceseq.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.AddFrameWithID(ctx, img, id)
}

// Frames returns the stored frames in temporal order.
func (s *Store) Frames() []*faceseq.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.Frames()
}

// Frame returns the stored frame with the given ID, or nil.
func (s *Store) Frame(id int) *faceseq.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.Frame(id)
}

// Stats summarizes the stored frames.
func (s *Store) Stats() faceseq.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.Summarize()
}

// Clear removes all frames and resets ID allocation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.Clear()
}

// Settings returns the current sequence configuration.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Settings{
		UID:        s.seq.UID(),
		FrameScale: s.seq.FrameScale(),
		TrackFaces: s.seq.TrackFaces(),
		MinIoU:     s.seq.MinIoU(),
	}
}

// SetFrameScale changes the detector input scale for subsequent frames.
func (s *Store) SetFrameScale(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.SetFrameScale(v)
}

// SetTrackFaces switches identity tracking for subsequent frames.
func (s *Store) SetTrackFaces(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.SetTrackFaces(v)
}

// SetMinIoU changes the tracking overlap threshold.
func (s *Store) SetMinIoU(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.SetMinIoU(v)
}

// SaveTo snapshots the sequence into the archive under name.
func (s *Store) SaveTo(ctx context.Context, st *archive.Store, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return st.Put(ctx, name, s.seq)
}

// LoadFrom replaces the sequence content with the archived snapshot. On
// error the current content is left unchanged.
func (s *Store) LoadFrom(ctx context.Context, st *archive.Store, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return st.Get(ctx, name, s.seq)
}

// WriteReport renders the tracking report for the current content.
func (s *Store) WriteReport(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return report.WriteHTML(s.seq, w)
}
