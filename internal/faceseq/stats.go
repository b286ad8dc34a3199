package faceseq

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a sequence: how many frames and faces it holds and how
// long its identity tracks live.
type Stats struct {
	Frames int
	Faces  int
	Tracks int

	MeanFacesPerFrame float64
	MaxFacesInFrame   int

	MeanTrackLength   float64
	StdDevTrackLength float64
	MedianTrackLength float64
	LongestTrack      int
}

// Summarize computes statistics over the stored frames. Track lengths count
// the frames each face ID appears in, which is meaningful when the sequence
// was built with tracking enabled.
func (s *Sequence) Summarize() Stats {
	st := Stats{Frames: len(s.frames)}
	perFrame := make([]float64, 0, len(s.frames))
	trackFrames := make(map[int]int)
	for _, fr := range s.frames {
		st.Faces += len(fr.Faces)
		perFrame = append(perFrame, float64(len(fr.Faces)))
		if len(fr.Faces) > st.MaxFacesInFrame {
			st.MaxFacesInFrame = len(fr.Faces)
		}
		for _, f := range fr.Faces {
			trackFrames[f.ID]++
		}
	}
	st.Tracks = len(trackFrames)
	if len(perFrame) > 0 {
		st.MeanFacesPerFrame = stat.Mean(perFrame, nil)
	}
	if len(trackFrames) == 0 {
		return st
	}

	lengths := make([]float64, 0, len(trackFrames))
	for _, n := range trackFrames {
		lengths = append(lengths, float64(n))
		if n > st.LongestTrack {
			st.LongestTrack = n
		}
	}
	sort.Float64s(lengths)
	st.MeanTrackLength = stat.Mean(lengths, nil)
	if len(lengths) > 1 {
		st.StdDevTrackLength = stat.StdDev(lengths, nil)
	}
	st.MedianTrackLength = stat.Quantile(0.5, stat.Empirical, lengths, nil)
	return st
}
