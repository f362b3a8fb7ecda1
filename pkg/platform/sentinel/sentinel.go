package sentinel

import "errors"

// Infrastructure facts returned by stores, caches and brokers, optionally
// wrapped. Services translate them into coded domain errors; they never reach
// a transport unconverted.
//
// For bad input or rejected transitions use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
	ErrCacheMiss   = errors.New("cache miss")
)
