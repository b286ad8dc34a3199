package faceseq

import (
	"sync"

	"github.com/facetrail/facetrail/internal/detect"
)

// modelHandle shares one loaded detection backend between a sequence and its
// clones. Holders only read through the backend, so sharing is safe; the
// backend is closed when the last owning holder releases it.
type modelHandle struct {
	det   detect.Detector
	path  string
	owned bool

	mu   sync.Mutex
	refs int
}

// newModelHandle wraps det with a reference count of one. Owned handles
// close the backend on the last release; unowned handles leave closing to
// whoever constructed the detector.
func newModelHandle(det detect.Detector, path string, owned bool) *modelHandle {
	if det == nil {
		return nil
	}
	return &modelHandle{det: det, path: path, owned: owned, refs: 1}
}

// acquire adds a reference and returns the handle for chaining.
func (h *modelHandle) acquire() *modelHandle {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
	return h
}

// release drops a reference, closing the backend when the last owner lets
// go.
func (h *modelHandle) release() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	h.refs--
	last := h.refs == 0
	h.mu.Unlock()
	if last && h.owned {
		return h.det.Close()
	}
	return nil
}
