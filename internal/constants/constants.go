// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Similarity search constants
const (
	// DefaultSearchLimit is the default number of similar faces to return
	DefaultSearchLimit = 50

	// DefaultDistanceThreshold is the default maximum cosine distance for face matching
	// Lower values = stricter matching
	DefaultDistanceThreshold = 0.5
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for descriptor enrollment
	WorkerPoolSize = 8

	// MaxImageSize is the maximum dimension (width or height) for rendered output
	MaxImageSize = 1920
)
