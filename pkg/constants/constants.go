// Package constants defines the default timeouts and size limits shared
// across the client's packages, so a single place governs what "default"
// means for connection lifetime, buffering, and content size.
package constants

import "time"

// Connection timeouts and limits.
const (
	DefaultConnTimeout  = 10 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
	CleanupInterval     = 30 * time.Second
)

// HTTP limits.
const (
	MaxContentLength   = 1024 * 1024 * 1024 * 1024 // 1TB
	MaxHeaderBlockSize = 64 * 1024
)

// Buffer limits.
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024   // 4MB
	MaxRawBufferSize    = 100 * 1024 * 1024 // 100MB cap for raw buffer
)
