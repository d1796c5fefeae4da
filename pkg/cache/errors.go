package cache

import "errors"

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrUnserializable indicates a value could not be JSON encoded
	ErrUnserializable = errors.New("value is not serializable")

	// ErrBackendUnavailable indicates the distributed tier rejected the call
	// (circuit open, timeout or connection failure)
	ErrBackendUnavailable = errors.New("cache backend unavailable")
)
