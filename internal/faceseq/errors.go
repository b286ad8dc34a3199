package faceseq

import "errors"

// Error kinds surfaced by sequence operations. Callers match them with
// errors.Is; wrapped messages carry the failing detail.
var (
	// ErrInvalidInput marks an unusable image or parameter value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelLoad marks a model path that cannot be loaded.
	ErrModelLoad = errors.New("model load failed")

	// ErrCorruptData marks a missing, truncated or version-mismatched archive.
	ErrCorruptData = errors.New("corrupt sequence data")

	// ErrInvalidState marks an operation that is not valid in the current
	// state, such as adding a frame before a detector is attached.
	ErrInvalidState = errors.New("invalid state")
)
