package faceseq

import "sort"

// DefaultMinIoU is the overlap threshold above which a detection continues
// an existing track. Exposed so callers can tune identity stability against
// fast-moving subjects.
const DefaultMinIoU = 0.3

// tracker assigns persistent IDs to detected faces by bounding box overlap
// with the previous frame. Its state is the previous face set plus a
// monotonic counter that never reuses an ID.
type tracker struct {
	prev   []Face
	nextID int
	minIoU float64
}

func newTracker(minIoU float64) *tracker {
	return &tracker{minIoU: minIoU}
}

// reset drops tracking history and restarts ID allocation from zero.
func (t *tracker) reset() {
	t.prev = nil
	t.nextID = 0
}

// resume drops tracking history but continues allocating IDs from next, so
// identities restored from an archive are never handed out again.
func (t *tracker) resume(next int) {
	t.prev = nil
	if next > t.nextID {
		t.nextID = next
	}
}

// trackPair is one previous/detected candidate with its overlap score.
type trackPair struct {
	prev int
	det  int
	iou  float64
}

// assign labels the detected faces in place. A detection takes over the ID
// of the best-overlapping previous face above the threshold; candidate pairs
// are consumed greedily in descending IoU order and each side matches at
// most once. Unmatched detections get fresh IDs from the counter, in
// detection order. Ties break on the lower previous index, then the lower
// detection index, so assignment is deterministic.
func (t *tracker) assign(detected []Face) {
	pairs := make([]trackPair, 0, len(t.prev)*len(detected))
	for pi := range t.prev {
		for di := range detected {
			iou := IoU(t.prev[pi].BBox, detected[di].BBox)
			if iou > t.minIoU {
				pairs = append(pairs, trackPair{prev: pi, det: di, iou: iou})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].iou != pairs[j].iou {
			return pairs[i].iou > pairs[j].iou
		}
		if pairs[i].prev != pairs[j].prev {
			return pairs[i].prev < pairs[j].prev
		}
		return pairs[i].det < pairs[j].det
	})

	prevUsed := make([]bool, len(t.prev))
	detUsed := make([]bool, len(detected))
	for _, p := range pairs {
		if prevUsed[p.prev] || detUsed[p.det] {
			continue
		}
		detected[p.det].ID = t.prev[p.prev].ID
		prevUsed[p.prev] = true
		detUsed[p.det] = true
	}

	for i := range detected {
		if !detUsed[i] {
			detected[i].ID = t.nextID
			t.nextID++
		}
	}

	t.prev = detected
}
