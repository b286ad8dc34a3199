package faceseq

import (
	"image"
	"testing"
)

func ids(faces []Face) []int {
	out := make([]int, len(faces))
	for i, f := range faces {
		out[i] = f.ID
	}
	return out
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTrackerFirstFrame(t *testing.T) {
	tr := newTracker(DefaultMinIoU)
	faces := []Face{
		{BBox: image.Rect(0, 0, 50, 50)},
		{BBox: image.Rect(100, 0, 150, 50)},
		{BBox: image.Rect(200, 0, 250, 50)},
	}
	tr.assign(faces)
	if got := ids(faces); !equalIDs(got, []int{0, 1, 2}) {
		t.Errorf("first frame IDs = %v, want [0 1 2]", got)
	}
}

func TestTrackerContinuesOverlappingIdentity(t *testing.T) {
	tr := newTracker(DefaultMinIoU)
	first := []Face{{BBox: image.Rect(10, 10, 60, 60)}}
	tr.assign(first)

	// shifted by (2,1): IoU ~0.87, well above the threshold
	second := []Face{{BBox: image.Rect(12, 11, 62, 62)}}
	tr.assign(second)
	if second[0].ID != 0 {
		t.Errorf("overlapping face ID = %d, want 0", second[0].ID)
	}
}

func TestTrackerNewIDBelowThreshold(t *testing.T) {
	tr := newTracker(DefaultMinIoU)
	first := []Face{{BBox: image.Rect(0, 0, 50, 50)}}
	tr.assign(first)

	// far away: IoU 0
	second := []Face{{BBox: image.Rect(300, 300, 350, 350)}}
	tr.assign(second)
	if second[0].ID != 1 {
		t.Errorf("non-overlapping face ID = %d, want 1", second[0].ID)
	}
}

func TestTrackerGreedyBestFirst(t *testing.T) {
	tr := newTracker(DefaultMinIoU)
	first := []Face{
		{BBox: image.Rect(0, 0, 100, 100)},
		{BBox: image.Rect(200, 0, 300, 100)},
	}
	tr.assign(first)

	// Both detections overlap previous face 0 only; the higher-IoU one
	// takes its ID and the other gets a fresh one.
	second := []Face{
		{BBox: image.Rect(10, 0, 110, 100)}, // IoU 0.82
		{BBox: image.Rect(5, 0, 105, 100)},  // IoU 0.90
	}
	tr.assign(second)
	if got := ids(second); !equalIDs(got, []int{2, 0}) {
		t.Errorf("greedy assignment IDs = %v, want [2 0]", got)
	}
}

func TestTrackerIdentityFollowsGeometryNotOrder(t *testing.T) {
	tr := newTracker(DefaultMinIoU)
	first := []Face{
		{BBox: image.Rect(0, 0, 100, 100)},
		{BBox: image.Rect(80, 0, 180, 100)},
	}
	tr.assign(first)

	// Detection order is swapped relative to the previous frame.
	second := []Face{
		{BBox: image.Rect(75, 0, 175, 100)}, // best overlap with previous face 1
		{BBox: image.Rect(5, 0, 105, 100)},  // best overlap with previous face 0
	}
	tr.assign(second)
	if got := ids(second); !equalIDs(got, []int{1, 0}) {
		t.Errorf("swapped detection IDs = %v, want [1 0]", got)
	}
}

func TestTrackerNeverReusesIDs(t *testing.T) {
	tr := newTracker(DefaultMinIoU)
	first := []Face{
		{BBox: image.Rect(0, 0, 100, 100)},
		{BBox: image.Rect(200, 0, 300, 100)},
	}
	tr.assign(first)

	// Face 0 disappears.
	second := []Face{{BBox: image.Rect(200, 0, 300, 100)}}
	tr.assign(second)
	if second[0].ID != 1 {
		t.Fatalf("surviving face ID = %d, want 1", second[0].ID)
	}

	// A face at face 0's old position is a new identity: matching only
	// looks one frame back.
	third := []Face{
		{BBox: image.Rect(0, 0, 100, 100)},
		{BBox: image.Rect(200, 0, 300, 100)},
	}
	tr.assign(third)
	if got := ids(third); !equalIDs(got, []int{2, 1}) {
		t.Errorf("reappeared face IDs = %v, want [2 1]", got)
	}
}

func TestTrackerCustomThreshold(t *testing.T) {
	// IoU of these boxes is ~0.60: tracked at 0.5, new identity at 0.7.
	a := image.Rect(0, 0, 100, 100)
	b := image.Rect(0, 25, 100, 125)

	strict := newTracker(0.7)
	strictFirst := []Face{{BBox: a}}
	strict.assign(strictFirst)
	strictSecond := []Face{{BBox: b}}
	strict.assign(strictSecond)
	if strictSecond[0].ID != 1 {
		t.Errorf("strict threshold ID = %d, want 1", strictSecond[0].ID)
	}

	loose := newTracker(0.5)
	looseFirst := []Face{{BBox: a}}
	loose.assign(looseFirst)
	looseSecond := []Face{{BBox: b}}
	loose.assign(looseSecond)
	if looseSecond[0].ID != 0 {
		t.Errorf("loose threshold ID = %d, want 0", looseSecond[0].ID)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := newTracker(DefaultMinIoU)
	faces := []Face{
		{BBox: image.Rect(0, 0, 50, 50)},
		{BBox: image.Rect(100, 0, 150, 50)},
	}
	tr.assign(faces)
	tr.reset()

	again := []Face{{BBox: image.Rect(0, 0, 50, 50)}}
	tr.assign(again)
	if again[0].ID != 0 {
		t.Errorf("ID after reset = %d, want 0", again[0].ID)
	}
}

func TestTrackerResume(t *testing.T) {
	tr := newTracker(DefaultMinIoU)
	tr.resume(7)

	faces := []Face{{BBox: image.Rect(0, 0, 50, 50)}}
	tr.assign(faces)
	if faces[0].ID != 7 {
		t.Errorf("ID after resume(7) = %d, want 7", faces[0].ID)
	}

	// resume never moves the counter backwards
	tr.resume(3)
	more := []Face{{BBox: image.Rect(200, 200, 250, 250)}}
	tr.assign(more)
	if more[0].ID != 8 {
		t.Errorf("ID after resume(3) = %d, want 8", more[0].ID)
	}
}
