// Package constants provides shared constants used across the codebase.
package constants

// File upload constants
const (
	// MaxUploadSize is the maximum frame upload size in bytes (100MB)
	MaxUploadSize = 100 << 20
)
